package optim

import (
	"math"

	"github.com/fengrk/pymltools/internal/nn"
	"github.com/fengrk/pymltools/internal/tensor"
)

// MaskedAdam is an Adam variant whose sparse step writes only the rows
// that actually received gradient.
//
// Standard Adam applies the sparse parameter update densely: moment
// accumulators decay everywhere and every row of the parameter moves,
// including rows whose gradient was zero this step (their stale momentum
// keeps pushing them). For embedding tables where most rows go untouched
// for long stretches, that dense drift is usually unwanted.
//
// MaskedAdam keeps Adam's moment bookkeeping identical (both
// accumulators still decay over the whole tensor and gradient rows
// still scatter-add) but masks the parameter update to the touched
// rows:
//
//	m = beta1 * m;  m[rows] += (1-beta1) * g
//	v = beta2 * v;  v[rows] += (1-beta2) * g²
//	lr_t = lr * sqrt(1 - beta2^t) / (1 - beta1^t)
//	p[rows] -= lr_t * m[rows] / (sqrt(v[rows]) + eps)
//
// Untouched rows are bit-identical before and after the step. The dense
// path is inherited from Adam unchanged, as is all serialization state.
type MaskedAdam[B tensor.Backend] struct {
	*Adam[B]
}

// NewMaskedAdam creates a new MaskedAdam optimizer. Configuration and
// defaults match NewAdam.
func NewMaskedAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *MaskedAdam[B] {
	return &MaskedAdam[B]{NewAdam(params, config, backend)}
}

// StepSparse performs a single optimization step over sparse gradients,
// updating only the touched parameter rows.
//
// Duplicate indices accumulate into their row before the update, so the
// row is written exactly once per step.
func (ma *MaskedAdam[B]) StepSparse(grads map[*tensor.RawTensor]*tensor.IndexedSlices) {
	for _, param := range ma.params {
		grad := getSparseGradient(param, grads)
		if grad == nil {
			continue
		}

		unique := grad.Unique()
		lrT, mData, vData := ma.sparseMoments(param, unique)

		// The mask: gather moments at the touched indices and update
		// only those parameter rows.
		idx := unique.Indices.AsInt32()
		dim := unique.Dim()
		paramData := param.Tensor().Raw().AsFloat32()

		for _, i := range idx {
			pRow := paramData[int(i)*dim : (int(i)+1)*dim]
			mRow := mData[int(i)*dim : (int(i)+1)*dim]
			vRow := vData[int(i)*dim : (int(i)+1)*dim]
			for d := range pRow {
				pRow[d] -= lrT * mRow[d] / (float32(math.Sqrt(float64(vRow[d]))) + ma.eps)
			}
		}
	}
}
