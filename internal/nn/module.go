// Package nn implements the neural-network building blocks used by the
// estimator glue: parameters, layers with explicit backward passes, and
// the loss functions of the two supported model heads.
//
// Modules carry their own backward pass instead of relying on a taped
// autodiff graph: Forward caches what the gradient needs, Backward
// accumulates parameter gradients and returns the gradient with respect
// to the input. Embedding layers accumulate sparse gradients as
// tensor.IndexedSlices so sparse-aware optimizers can apply them without
// densifying.
package nn

import (
	"github.com/fengrk/pymltools/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Forward computes the output for an input batch and caches whatever the
// backward pass will need. Backward consumes the gradient of the loss
// with respect to the module output, accumulates parameter gradients,
// and returns the gradient with respect to the module input.
//
// Modules compose:
//
//	model := nn.NewSequential(
//	    nn.NewLinear(784, 128, backend),
//	    nn.NewReLU[B](),
//	    nn.NewLinear(128, 10, backend),
//	)
type Module[B tensor.Backend] interface {
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
	Backward(gradOut *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module.
	// Modules without trainable parameters return nil.
	Parameters() []*Parameter[B]

	// StateDict exports parameter tensors by name; LoadStateDict is its
	// inverse. Parameter-free modules export an empty dict.
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}
