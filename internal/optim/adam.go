package optim

import (
	"fmt"
	"math"

	"github.com/fengrk/pymltools/internal/nn"
	"github.com/fengrk/pymltools/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Adam combines ideas from RMSprop and momentum:
//   - Maintains exponential moving averages of gradients (first moment)
//   - Maintains exponential moving averages of squared gradients (second moment)
//   - Applies bias correction to compensate for initialization at zero
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)   // Parameter update
//
// The sparse path follows the published algorithm exactly: both moment
// accumulators decay over the whole tensor, gradient contributions
// scatter-add into the touched rows, and the parameter update applies
// densely, so rows with stale momentum keep moving. Bias correction is
// folded into the step size:
//
//	lr_t = lr * sqrt(1 - beta2^t) / (1 - beta1^t)
//
// Timesteps are tracked per parameter, so a model mixing densely and
// sparsely updated parameters bias-corrects each one by its own count.
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam[B tensor.Backend] struct {
	params  []*nn.Parameter[B]
	lr      float32
	beta1   float32
	beta2   float32
	eps     float32
	steps   map[*nn.Parameter[B]]int                        // Per-parameter timestep for bias correction
	m       map[*nn.Parameter[B]]*tensor.Tensor[float32, B] // First moment estimates
	v       map[*nn.Parameter[B]]*tensor.Tensor[float32, B] // Second moment estimates
	backend B
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float32    // Learning rate (default: 0.001)
	Betas [2]float32 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float32    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer.
//
// Default hyperparameters:
//   - LR: 0.001
//   - Beta1: 0.9
//   - Beta2: 0.999
//   - Eps: 1e-8
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	// Set defaults
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam[B]{
		params:  params,
		lr:      config.LR,
		beta1:   config.Betas[0],
		beta2:   config.Betas[1],
		eps:     config.Eps,
		steps:   make(map[*nn.Parameter[B]]int),
		m:       make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B]),
		v:       make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B]),
		backend: backend,
	}
}

// Step performs a single optimization step over dense gradients.
//
// Applies the Adam update to every parameter present in the gradient
// map:
//  1. Update biased first moment estimate
//  2. Update biased second moment estimate
//  3. Compute bias-corrected moment estimates
//  4. Update parameters
//
// Parameters with no gradient are skipped and their timestep does not
// advance.
func (a *Adam[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for _, param := range a.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}

		a.steps[param]++
		t := a.steps[param]
		biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(t)))
		biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(t)))

		a.updateParameter(param, grad, biasCorrection1, biasCorrection2)
	}
}

// updateParameter performs the dense Adam update for a single parameter.
func (a *Adam[B]) updateParameter(
	param *nn.Parameter[B],
	grad *tensor.RawTensor,
	biasCorrection1, biasCorrection2 float32,
) {
	gradData := grad.AsFloat32()
	mData := a.moment(a.m, param).Raw().AsFloat32()
	vData := a.moment(a.v, param).Raw().AsFloat32()
	paramData := param.Tensor().Raw().AsFloat32()

	for i := range paramData {
		g := gradData[i]

		// m_t = beta1 * m_{t-1} + (1-beta1) * grad
		mData[i] = a.beta1*mData[i] + (1.0-a.beta1)*g

		// v_t = beta2 * v_{t-1} + (1-beta2) * grad²
		vData[i] = a.beta2*vData[i] + (1.0-a.beta2)*g*g

		mHat := mData[i] / biasCorrection1
		vHat := vData[i] / biasCorrection2

		// param = param - lr * m_hat / (sqrt(v_hat) + eps)
		paramData[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
	}
}

// StepSparse performs a single optimization step over sparse gradients.
//
// Moments decay everywhere, the gradient scatter-adds into touched rows,
// and the parameter update applies densely over the whole tensor.
func (a *Adam[B]) StepSparse(grads map[*tensor.RawTensor]*tensor.IndexedSlices) {
	for _, param := range a.params {
		grad := getSparseGradient(param, grads)
		if grad == nil {
			continue
		}

		lrT, mData, vData := a.sparseMoments(param, grad.Unique())

		paramData := param.Tensor().Raw().AsFloat32()
		for i := range paramData {
			paramData[i] -= lrT * mData[i] / (float32(math.Sqrt(float64(vData[i]))) + a.eps)
		}
	}
}

// sparseMoments advances the parameter's timestep and applies the shared
// sparse moment update: decay m and v over the full tensor, then
// scatter-add the gradient rows. The caller must pass a deduplicated
// gradient. Returns the bias-corrected step size and the updated moment
// buffers.
func (a *Adam[B]) sparseMoments(param *nn.Parameter[B], unique *tensor.IndexedSlices) (float32, []float32, []float32) {
	a.steps[param]++
	t := a.steps[param]

	// lr_t = lr * sqrt(1 - beta2^t) / (1 - beta1^t)
	lrT := a.lr *
		float32(math.Sqrt(1.0-math.Pow(float64(a.beta2), float64(t)))) /
		float32(1.0-math.Pow(float64(a.beta1), float64(t)))

	mData := a.moment(a.m, param).Raw().AsFloat32()
	vData := a.moment(a.v, param).Raw().AsFloat32()

	// Decay both accumulators over the whole tensor.
	for i := range mData {
		mData[i] *= a.beta1
		vData[i] *= a.beta2
	}

	// Scatter the gradient contributions into the touched rows.
	// Duplicates have been summed, so each row receives its full sum.
	idx := unique.Indices.AsInt32()
	vals := unique.Values.AsFloat32()
	dim := unique.Dim()

	for n, i := range idx {
		mRow := mData[int(i)*dim : (int(i)+1)*dim]
		vRow := vData[int(i)*dim : (int(i)+1)*dim]
		g := vals[n*dim : (n+1)*dim]
		for d := range g {
			mRow[d] += (1.0 - a.beta1) * g[d]
			vRow[d] += (1.0 - a.beta2) * g[d] * g[d]
		}
	}

	return lrT, mData, vData
}

// moment returns the moment buffer for param from the given map,
// creating it zero-filled on first use.
func (a *Adam[B]) moment(buffers map[*nn.Parameter[B]]*tensor.Tensor[float32, B], param *nn.Parameter[B]) *tensor.Tensor[float32, B] {
	buf, exists := buffers[param]
	if !exists {
		buf = tensor.Zeros[float32](param.Tensor().Shape(), a.backend)
		buffers[param] = buf
	}
	return buf
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam[B]) ZeroGrad() {
	for _, param := range a.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (a *Adam[B]) GetLR() float32 {
	return a.lr
}

// SetLR updates the learning rate.
//
// Useful for learning rate scheduling during training.
func (a *Adam[B]) SetLR(lr float32) {
	a.lr = lr
}

// Timestep returns the current timestep for the given parameter.
//
// Useful for monitoring optimizer state.
func (a *Adam[B]) Timestep(param *nn.Parameter[B]) int {
	return a.steps[param]
}

// StateDict returns the optimizer state for serialization.
//
// Exports both moment buffers and the per-parameter timestep.
//
// State keys: "m.{i}", "v.{i}" -> moment tensors, "step.{i}" -> int64
// scalar timestep.
func (a *Adam[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)

	for i, param := range a.params {
		m, exists := a.m[param]
		if !exists {
			continue // Parameter hasn't been updated yet
		}
		stateDict[fmt.Sprintf("m.%d", i)] = m.Raw()
		stateDict[fmt.Sprintf("v.%d", i)] = a.v[param].Raw()
		stateDict[fmt.Sprintf("step.%d", i)] = stepTensor(a.steps[param], param.Tensor().Raw().Device())
	}

	return stateDict
}

// LoadStateDict loads optimizer state from serialization.
//
// Returns an error if moment shapes don't match parameter shapes.
func (a *Adam[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	a.steps = make(map[*nn.Parameter[B]]int)
	a.m = make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B])
	a.v = make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B])

	for i, param := range a.params {
		mRaw, exists := stateDict[fmt.Sprintf("m.%d", i)]
		if !exists {
			// No state for this parameter - initialized on first step
			continue
		}
		vRaw, exists := stateDict[fmt.Sprintf("v.%d", i)]
		if !exists {
			return fmt.Errorf("adam state for parameter %d has m but no v", i)
		}

		if !mRaw.Shape().Equal(param.Tensor().Shape()) {
			return fmt.Errorf("moment shape mismatch for parameter %d: expected %v, got %v",
				i, param.Tensor().Shape(), mRaw.Shape())
		}
		if !vRaw.Shape().Equal(param.Tensor().Shape()) {
			return fmt.Errorf("moment shape mismatch for parameter %d: expected %v, got %v",
				i, param.Tensor().Shape(), vRaw.Shape())
		}

		a.m[param] = tensor.New[float32, B](mRaw, a.backend)
		a.v[param] = tensor.New[float32, B](vRaw, a.backend)

		if stepRaw, ok := stateDict[fmt.Sprintf("step.%d", i)]; ok {
			a.steps[param] = int(stepRaw.AsInt64()[0])
		}
	}

	return nil
}

// stepTensor wraps a timestep in a one-element int64 tensor so it rides
// along in the RawTensor state map.
func stepTensor(t int, device tensor.Device) *tensor.RawTensor {
	raw, err := tensor.NewRaw(tensor.Shape{1}, tensor.Int64, device)
	if err != nil {
		panic(err)
	}
	raw.AsInt64()[0] = int64(t)
	return raw
}
