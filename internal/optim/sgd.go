package optim

import (
	"fmt"

	"github.com/fengrk/pymltools/internal/nn"
	"github.com/fengrk/pymltools/internal/tensor"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
//
// Momentum helps accelerate SGD in relevant directions and dampens oscillations.
//
// The sparse path touches only the rows named by the IndexedSlices
// gradient; velocity state for those rows decays and updates row-locally.
type SGD[B tensor.Backend] struct {
	params     []*nn.Parameter[B]
	lr         float32
	momentum   float32
	velocities map[*nn.Parameter[B]]*tensor.Tensor[float32, B]
	backend    B
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float32 // Learning rate (default: 0.01)
	Momentum float32 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
//
// Example:
//
//	sgd := optim.NewSGD(model.Parameters(), optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	}, backend)
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, backend B) *SGD[B] {
	// Set defaults
	if config.LR == 0 {
		config.LR = 0.01
	}

	return &SGD[B]{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B]),
		backend:    backend,
	}
}

// Step performs a single optimization step over dense gradients.
//
// Applies gradient descent update to all parameters:
//   - Without momentum: param -= lr * grad
//   - With momentum: velocity = momentum * velocity + grad, param -= lr * velocity
//
// Parameters with no gradient are skipped.
func (s *SGD[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for _, param := range s.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}

		if s.momentum == 0 {
			s.updateParameter(param, grad)
		} else {
			s.updateParameterWithMomentum(param, grad)
		}
	}
}

// updateParameter performs simple SGD update without momentum.
func (s *SGD[B]) updateParameter(param *nn.Parameter[B], grad *tensor.RawTensor) {
	paramData := param.Tensor().Raw().AsFloat32()
	gradData := grad.AsFloat32()
	for i := range paramData {
		paramData[i] -= s.lr * gradData[i]
	}
}

// updateParameterWithMomentum performs SGD update with momentum.
func (s *SGD[B]) updateParameterWithMomentum(param *nn.Parameter[B], grad *tensor.RawTensor) {
	velocity := s.velocity(param)

	velocityData := velocity.Raw().AsFloat32()
	gradData := grad.AsFloat32()
	paramData := param.Tensor().Raw().AsFloat32()

	for i := range paramData {
		// velocity = momentum * velocity + grad
		velocityData[i] = s.momentum*velocityData[i] + gradData[i]
		// param -= lr * velocity
		paramData[i] -= s.lr * velocityData[i]
	}
}

// StepSparse applies SGD updates to the rows named by each sparse
// gradient. Rows absent from the gradient are left untouched, including
// their velocity state.
func (s *SGD[B]) StepSparse(grads map[*tensor.RawTensor]*tensor.IndexedSlices) {
	for _, param := range s.params {
		grad := getSparseGradient(param, grads)
		if grad == nil {
			continue
		}

		if s.momentum == 0 {
			s.updateRows(param, grad)
		} else {
			s.updateRowsWithMomentum(param, grad)
		}
	}
}

// updateRows performs the plain sparse update p[row] -= lr * g.
//
// Duplicate indices need no pre-aggregation here: sequential subtraction
// of each contribution equals subtracting the sum.
func (s *SGD[B]) updateRows(param *nn.Parameter[B], grad *tensor.IndexedSlices) {
	paramData := param.Tensor().Raw().AsFloat32()
	idx := grad.Indices.AsInt32()
	vals := grad.Values.AsFloat32()
	dim := grad.Dim()

	for n, i := range idx {
		row := paramData[int(i)*dim : (int(i)+1)*dim]
		g := vals[n*dim : (n+1)*dim]
		for d := range row {
			row[d] -= s.lr * g[d]
		}
	}
}

// updateRowsWithMomentum decays and updates velocity only for touched
// rows. Duplicates are summed first so each row decays exactly once.
func (s *SGD[B]) updateRowsWithMomentum(param *nn.Parameter[B], grad *tensor.IndexedSlices) {
	velocity := s.velocity(param)

	unique := grad.Unique()
	velocityData := velocity.Raw().AsFloat32()
	paramData := param.Tensor().Raw().AsFloat32()
	idx := unique.Indices.AsInt32()
	vals := unique.Values.AsFloat32()
	dim := unique.Dim()

	for n, i := range idx {
		vRow := velocityData[int(i)*dim : (int(i)+1)*dim]
		pRow := paramData[int(i)*dim : (int(i)+1)*dim]
		g := vals[n*dim : (n+1)*dim]
		for d := range vRow {
			vRow[d] = s.momentum*vRow[d] + g[d]
			pRow[d] -= s.lr * vRow[d]
		}
	}
}

// velocity returns the velocity buffer for param, creating it on first use.
func (s *SGD[B]) velocity(param *nn.Parameter[B]) *tensor.Tensor[float32, B] {
	velocity, exists := s.velocities[param]
	if !exists {
		velocity = tensor.Zeros[float32](param.Tensor().Shape(), s.backend)
		s.velocities[param] = velocity
	}
	return velocity
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD[B]) ZeroGrad() {
	for _, param := range s.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (s *SGD[B]) GetLR() float32 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD[B]) SetLR(lr float32) {
	s.lr = lr
}

// StateDict returns the optimizer state for serialization.
//
// For SGD with momentum, this exports velocity buffers for each parameter.
// Without momentum, returns an empty map.
//
// State keys: "velocity.{param_index}" -> velocity tensor.
func (s *SGD[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)

	if s.momentum == 0 {
		return stateDict
	}

	for i, param := range s.params {
		velocity, exists := s.velocities[param]
		if !exists {
			continue // No velocity yet (hasn't been used in training)
		}
		stateDict[fmt.Sprintf("velocity.%d", i)] = velocity.Raw()
	}

	return stateDict
}

// LoadStateDict loads optimizer state from serialization.
//
// Restores velocity buffers for SGD with momentum. If momentum is 0,
// ignores the provided state (no velocities needed).
//
// Returns an error if velocity shapes don't match parameter shapes.
func (s *SGD[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	if s.momentum == 0 {
		return nil
	}

	s.velocities = make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B])

	for i, param := range s.params {
		velocityRaw, exists := stateDict[fmt.Sprintf("velocity.%d", i)]
		if !exists {
			// No velocity for this parameter - initialized on first step
			continue
		}

		if !velocityRaw.Shape().Equal(param.Tensor().Shape()) {
			return fmt.Errorf("velocity shape mismatch for parameter %d: expected %v, got %v",
				i, param.Tensor().Shape(), velocityRaw.Shape())
		}

		s.velocities[param] = tensor.New[float32, B](velocityRaw, s.backend)
	}

	return nil
}
