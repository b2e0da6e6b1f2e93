package nn

import (
	"github.com/fengrk/pymltools/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// A parameter accumulates either a dense gradient or a sparse
// (IndexedSlices) gradient during the backward pass; embedding weights
// produce the latter. Optimizers read whichever is present and ZeroGrad
// clears both before the next iteration.
type Parameter[B tensor.Backend] struct {
	name       string
	tensor     *tensor.Tensor[float32, B]
	grad       *tensor.Tensor[float32, B]
	sparseGrad *tensor.IndexedSlices
}

// NewParameter creates a new trainable parameter around an initialized
// tensor. Gradients are allocated lazily on the first backward pass.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{name: name, tensor: t}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Grad returns the dense gradient, or nil if none has been accumulated.
func (p *Parameter[B]) Grad() *tensor.Tensor[float32, B] {
	return p.grad
}

// SparseGrad returns the sparse gradient, or nil if none has been
// accumulated.
func (p *Parameter[B]) SparseGrad() *tensor.IndexedSlices {
	return p.sparseGrad
}

// AccumulateGrad adds g to the dense gradient.
func (p *Parameter[B]) AccumulateGrad(g *tensor.Tensor[float32, B]) {
	if p.grad == nil {
		p.grad = g.Clone()
		return
	}
	gv := g.Data()
	dst := p.grad.Data()
	for i := range dst {
		dst[i] += gv[i]
	}
}

// AccumulateSparseGrad merges a sparse gradient contribution. Multiple
// contributions within one step concatenate; consumers treat repeated
// indices additively, so concatenation preserves the sum.
func (p *Parameter[B]) AccumulateSparseGrad(g *tensor.IndexedSlices) {
	if p.sparseGrad == nil {
		p.sparseGrad = g
		return
	}
	p.sparseGrad = concatIndexedSlices(p.sparseGrad, g)
}

// ZeroGrad clears both gradient forms.
// Call before each training iteration to avoid accumulating gradients
// from previous iterations.
func (p *Parameter[B]) ZeroGrad() {
	p.grad = nil
	p.sparseGrad = nil
}

func concatIndexedSlices(a, b *tensor.IndexedSlices) *tensor.IndexedSlices {
	dim := a.Dim()
	n := a.Len() + b.Len()

	idx, err := tensor.NewRaw(tensor.Shape{n}, tensor.Int32, a.Indices.Device())
	if err != nil {
		panic(err)
	}
	vals, err := tensor.NewRaw(tensor.Shape{n, dim}, tensor.Float32, a.Values.Device())
	if err != nil {
		panic(err)
	}

	copy(idx.AsInt32(), a.Indices.AsInt32())
	copy(idx.AsInt32()[a.Len():], b.Indices.AsInt32())
	copy(vals.AsFloat32(), a.Values.AsFloat32())
	copy(vals.AsFloat32()[a.Len()*dim:], b.Values.AsFloat32())

	out, err := tensor.NewIndexedSlices(idx, vals)
	if err != nil {
		panic(err)
	}
	return out
}
