// Package optim implements optimization algorithms for training neural networks.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//   - MaskedAdam: Adam variant whose sparse step updates only touched rows
//
// Design inspired by PyTorch's torch.optim but adapted for Go with type safety.
//
// Example usage:
//
//	// Create optimizer
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{
//	    LR: 0.001,
//	}, backend)
//
//	// Training loop
//	for step := range steps {
//	    optimizer.ZeroGrad()
//	    logits := model.Forward(input)
//	    loss := lossFn.Forward(logits, labels)
//	    model.Backward(lossFn.Backward())
//
//	    // Update parameters
//	    optimizer.Step(denseGrads(model))
//	    optimizer.StepSparse(sparseGrads(model))
//	}
package optim

import (
	"github.com/fengrk/pymltools/internal/nn"
	"github.com/fengrk/pymltools/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
//
// Optimizers update model parameters based on computed gradients to
// minimize the loss function during training. Dense gradients flow
// through Step; embedding layers produce IndexedSlices gradients that
// flow through StepSparse. A training iteration may invoke both, each
// covering a disjoint set of parameters.
type Optimizer interface {
	// Step applies dense gradient updates to all parameters.
	//
	// Takes a RawTensor -> gradient map and updates matching parameters
	// in-place. Parameters without an entry are skipped.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// StepSparse applies sparse (IndexedSlices) gradient updates.
	//
	// Duplicate indices within one IndexedSlices accumulate additively,
	// never overwrite. Parameters without an entry are skipped.
	StepSparse(grads map[*tensor.RawTensor]*tensor.IndexedSlices)

	// ZeroGrad clears all parameter gradients.
	//
	// This should be called before each backward pass to prevent
	// gradient accumulation from previous iterations.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32

	// SetLR updates the learning rate. Used by schedules during training.
	SetLR(lr float32)
}

// Config is the base configuration for all optimizers.
type Config struct {
	LR float32 // Learning rate
}

// getGradient safely retrieves the dense gradient for a parameter.
//
// Returns nil if no gradient is found (parameter received none this step).
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	return grads[param.Tensor().Raw()]
}

// getSparseGradient safely retrieves the sparse gradient for a parameter.
func getSparseGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.IndexedSlices) *tensor.IndexedSlices {
	if param == nil {
		return nil
	}
	return grads[param.Tensor().Raw()]
}

// DenseGrads collects the dense gradients accumulated on params into the
// map form Step consumes.
func DenseGrads[B tensor.Backend](params []*nn.Parameter[B]) map[*tensor.RawTensor]*tensor.RawTensor {
	grads := make(map[*tensor.RawTensor]*tensor.RawTensor)
	for _, p := range params {
		if g := p.Grad(); g != nil {
			grads[p.Tensor().Raw()] = g.Raw()
		}
	}
	return grads
}

// SparseGrads collects the sparse gradients accumulated on params into
// the map form StepSparse consumes.
func SparseGrads[B tensor.Backend](params []*nn.Parameter[B]) map[*tensor.RawTensor]*tensor.IndexedSlices {
	grads := make(map[*tensor.RawTensor]*tensor.IndexedSlices)
	for _, p := range params {
		if g := p.SparseGrad(); g != nil {
			grads[p.Tensor().Raw()] = g
		}
	}
	return grads
}
