package nn

import (
	"fmt"

	"github.com/fengrk/pymltools/internal/tensor"
)

// Linear implements a fully connected layer: y = x @ W.T + b with
//   - x [batch, inFeatures]
//   - W [outFeatures, inFeatures], Xavier-initialized
//   - b [outFeatures], zero-initialized
//   - y [batch, outFeatures]
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter[B]
	bias        *Parameter[B]
	backend     B

	input *tensor.Tensor[float32, B] // cached by Forward for the backward pass
}

// NewLinear creates a new Linear layer.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	weightTensor := Xavier(inFeatures, outFeatures, tensor.Shape{outFeatures, inFeatures}, backend)
	biasTensor := Zeros(tensor.Shape{outFeatures}, backend)

	return &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", weightTensor),
		bias:        NewParameter("bias", biasTensor),
		backend:     backend,
	}
}

// Forward computes y = x @ W.T + b.
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 2 {
		panic(fmt.Sprintf("Linear.Forward: expected 2D input [batch, features], got shape %v", inputShape))
	}
	if inputShape[1] != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", l.inFeatures, inputShape[1]))
	}

	l.input = input

	w := l.weight.Tensor()                  // [out, in]
	output := input.MatMul(w.Transpose())   // [batch, out]
	bias := l.bias.Tensor().Reshape(1, l.outFeatures)
	return output.Add(bias)
}

// Backward accumulates dW = gradOut.T @ x and db = column sums of
// gradOut, and returns dx = gradOut @ W.
func (l *Linear[B]) Backward(gradOut *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if l.input == nil {
		panic("Linear.Backward: Forward must run first")
	}
	gradShape := gradOut.Shape()
	if len(gradShape) != 2 || gradShape[1] != l.outFeatures {
		panic(fmt.Sprintf("Linear.Backward: expected gradient [batch, %d], got %v", l.outFeatures, gradShape))
	}

	gradW := gradOut.Transpose().MatMul(l.input) // [out, in]
	l.weight.AccumulateGrad(gradW)

	gradB := gradOut.SumDim(0, false) // [out]
	l.bias.AccumulateGrad(gradB)

	return gradOut.MatMul(l.weight.Tensor()) // [batch, in]
}

// Parameters returns the trainable parameters of this layer.
func (l *Linear[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.weight, l.bias}
}

// Weight returns the weight parameter.
func (l *Linear[B]) Weight() *Parameter[B] {
	return l.weight
}

// Bias returns the bias parameter.
func (l *Linear[B]) Bias() *Parameter[B] {
	return l.bias
}

// StateDict returns a map of parameter names to raw tensors.
func (l *Linear[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight": l.weight.Tensor().Raw(),
		"bias":   l.bias.Tensor().Raw(),
	}
}

// LoadStateDict loads parameters from a state dictionary.
func (l *Linear[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if err := loadParam(l.weight, stateDict, "weight", tensor.Shape{l.outFeatures, l.inFeatures}); err != nil {
		return err
	}
	return loadParam(l.bias, stateDict, "bias", tensor.Shape{l.outFeatures})
}

func loadParam[B tensor.Backend](p *Parameter[B], stateDict map[string]*tensor.RawTensor, name string, want tensor.Shape) error {
	raw, ok := stateDict[name]
	if !ok {
		return fmt.Errorf("missing %s in state dict", name)
	}
	if !raw.Shape().Equal(want) {
		return fmt.Errorf("%s shape mismatch: expected %v, got %v", name, want, raw.Shape())
	}
	if raw.DType() != tensor.Float32 {
		return fmt.Errorf("%s dtype mismatch: expected float32, got %v", name, raw.DType())
	}
	copy(p.Tensor().Data(), raw.AsFloat32())
	return nil
}
