package nn

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/fengrk/pymltools/internal/tensor"
)

// l2NormEps floors the squared norm before division, matching the
// framework convention for l2 normalisation of near-zero vectors.
const l2NormEps = 1e-12

// L2Normalize scales slices of a 2D tensor to unit L2 norm along the
// given axis: axis 1 normalises each row (each embedding becomes a unit
// vector), axis 0 normalises each column (each dimension is scaled by
// batch statistics).
//
// It participates in backprop: Forward caches what Backward needs, and
// Backward applies the exact Jacobian
//
//	dx = (g - y * <g, y>) / norm
//
// per normalised slice.
type L2Normalize[B tensor.Backend] struct {
	Axis int

	input  *tensor.Tensor[float32, B]
	output *tensor.Tensor[float32, B]
	norms  []float32
}

// NewL2Normalize creates the normaliser for the given axis (0 or 1).
func NewL2Normalize[B tensor.Backend](axis int) *L2Normalize[B] {
	if axis != 0 && axis != 1 {
		panic(fmt.Sprintf("l2 normalize: axis must be 0 or 1, got %d", axis))
	}
	return &L2Normalize[B]{Axis: axis}
}

// Forward returns the normalised tensor.
func (l *L2Normalize[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("l2 normalize: expected 2D input, got %v", shape))
	}
	rows, cols := shape[0], shape[1]

	slices, sliceLen := rows, cols
	if l.Axis == 0 {
		slices, sliceLen = cols, rows
	}

	out := tensor.Zeros[float32](shape, input.Backend())
	in := input.Data()
	outData := out.Data()
	norms := make([]float32, slices)

	for s := 0; s < slices; s++ {
		var sum float32
		for k := 0; k < sliceLen; k++ {
			v := in[l.offset(s, k, cols)]
			sum += v * v
		}
		norm := math32.Sqrt(math32.Max(sum, l2NormEps))
		norms[s] = norm
		for k := 0; k < sliceLen; k++ {
			i := l.offset(s, k, cols)
			outData[i] = in[i] / norm
		}
	}

	l.input = input
	l.output = out
	l.norms = norms
	return out
}

// Backward maps the gradient through the normalisation.
func (l *L2Normalize[B]) Backward(gradOut *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if l.input == nil {
		panic("l2 normalize: Forward must run first")
	}

	shape := l.input.Shape()
	rows, cols := shape[0], shape[1]
	slices, sliceLen := rows, cols
	if l.Axis == 0 {
		slices, sliceLen = cols, rows
	}

	grad := tensor.Zeros[float32](shape, gradOut.Backend())
	g := gradOut.Data()
	y := l.output.Data()
	out := grad.Data()

	for s := 0; s < slices; s++ {
		var dot float32
		for k := 0; k < sliceLen; k++ {
			i := l.offset(s, k, cols)
			dot += g[i] * y[i]
		}
		for k := 0; k < sliceLen; k++ {
			i := l.offset(s, k, cols)
			out[i] = (g[i] - y[i]*dot) / l.norms[s]
		}
	}
	return grad
}

// offset maps (slice, element) onto the flat row-major index.
func (l *L2Normalize[B]) offset(s, k, cols int) int {
	if l.Axis == 1 {
		return s*cols + k // slice = row
	}
	return k*cols + s // slice = column
}
