package nn

import (
	"github.com/fengrk/pymltools/internal/tensor"
)

// Capability interfaces for backends that implement activation kernels.
// The cpu backend implements all of them.

// ReLUBackend is implemented by backends supporting ReLU and its gradient.
type ReLUBackend interface {
	ReLU(*tensor.RawTensor) *tensor.RawTensor
	ReLUGrad(x, gradOut *tensor.RawTensor) *tensor.RawTensor
}

// SigmoidBackend is implemented by backends supporting Sigmoid and its gradient.
type SigmoidBackend interface {
	Sigmoid(*tensor.RawTensor) *tensor.RawTensor
	SigmoidGrad(x, gradOut *tensor.RawTensor) *tensor.RawTensor
}

// TanhBackend is implemented by backends supporting Tanh and its gradient.
type TanhBackend interface {
	Tanh(*tensor.RawTensor) *tensor.RawTensor
	TanhGrad(x, gradOut *tensor.RawTensor) *tensor.RawTensor
}

// ReLU applies f(x) = max(0, x) element-wise.
type ReLU[B tensor.Backend] struct {
	input *tensor.Tensor[float32, B]
}

// NewReLU creates a new ReLU activation module.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// Forward applies the activation.
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	rb, ok := any(backend).(ReLUBackend)
	if !ok {
		panic("ReLU: backend must implement the ReLU kernels")
	}
	r.input = input
	return tensor.New[float32, B](rb.ReLU(input.Raw()), backend)
}

// Backward masks the incoming gradient where the input was non-positive.
func (r *ReLU[B]) Backward(gradOut *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if r.input == nil {
		panic("ReLU.Backward: Forward must run first")
	}
	backend := gradOut.Backend()
	rb := any(backend).(ReLUBackend)
	return tensor.New[float32, B](rb.ReLUGrad(r.input.Raw(), gradOut.Raw()), backend)
}

// Parameters returns nil: activations have no trainable parameters.
func (r *ReLU[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns an empty dict.
func (r *ReLU[B]) StateDict() map[string]*tensor.RawTensor { return map[string]*tensor.RawTensor{} }

// LoadStateDict is a no-op for parameter-free modules.
func (r *ReLU[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }

// Sigmoid applies f(x) = 1/(1+exp(-x)) element-wise.
type Sigmoid[B tensor.Backend] struct {
	input *tensor.Tensor[float32, B]
}

// NewSigmoid creates a new Sigmoid activation module.
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] {
	return &Sigmoid[B]{}
}

// Forward applies the activation.
func (s *Sigmoid[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	sb, ok := any(backend).(SigmoidBackend)
	if !ok {
		panic("Sigmoid: backend must implement the Sigmoid kernels")
	}
	s.input = input
	return tensor.New[float32, B](sb.Sigmoid(input.Raw()), backend)
}

// Backward applies the sigmoid gradient to the incoming gradient.
func (s *Sigmoid[B]) Backward(gradOut *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if s.input == nil {
		panic("Sigmoid.Backward: Forward must run first")
	}
	backend := gradOut.Backend()
	sb := any(backend).(SigmoidBackend)
	return tensor.New[float32, B](sb.SigmoidGrad(s.input.Raw(), gradOut.Raw()), backend)
}

// Parameters returns nil: activations have no trainable parameters.
func (s *Sigmoid[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns an empty dict.
func (s *Sigmoid[B]) StateDict() map[string]*tensor.RawTensor { return map[string]*tensor.RawTensor{} }

// LoadStateDict is a no-op for parameter-free modules.
func (s *Sigmoid[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }

// Tanh applies the hyperbolic tangent element-wise.
type Tanh[B tensor.Backend] struct {
	input *tensor.Tensor[float32, B]
}

// NewTanh creates a new Tanh activation module.
func NewTanh[B tensor.Backend]() *Tanh[B] {
	return &Tanh[B]{}
}

// Forward applies the activation.
func (t *Tanh[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	tb, ok := any(backend).(TanhBackend)
	if !ok {
		panic("Tanh: backend must implement the Tanh kernels")
	}
	t.input = input
	return tensor.New[float32, B](tb.Tanh(input.Raw()), backend)
}

// Backward applies the tanh gradient to the incoming gradient.
func (t *Tanh[B]) Backward(gradOut *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if t.input == nil {
		panic("Tanh.Backward: Forward must run first")
	}
	backend := gradOut.Backend()
	tb := any(backend).(TanhBackend)
	return tensor.New[float32, B](tb.TanhGrad(t.input.Raw(), gradOut.Raw()), backend)
}

// Parameters returns nil: activations have no trainable parameters.
func (t *Tanh[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns an empty dict.
func (t *Tanh[B]) StateDict() map[string]*tensor.RawTensor { return map[string]*tensor.RawTensor{} }

// LoadStateDict is a no-op for parameter-free modules.
func (t *Tanh[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }
