package nn

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/fengrk/pymltools/internal/tensor"
)

// BatchHardTripletLoss implements the batch-hard mining strategy for
// triplet embedding losses: within each batch every example acts as an
// anchor, paired with its hardest positive (same label, largest
// distance) and hardest negative (different label, smallest distance).
//
//	loss = mean_i( max( d(a_i, hardest_pos_i) - d(a_i, hardest_neg_i) + margin, 0 ) )
//
// Distances are Euclidean by default; Squared selects squared Euclidean
// distances. Anchors without any positive or any negative in the batch
// contribute zero loss and zero gradient.
//
// Reference: "In Defense of the Triplet Loss for Person
// Re-Identification" (Hermans, Beyer, Leibe, 2017).
type BatchHardTripletLoss[B tensor.Backend] struct {
	Margin  float32
	Squared bool

	backend B

	embeddings *tensor.Tensor[float32, B]
	dist       []float32 // [batch*batch] pairwise distances
	hardestPos []int     // per-anchor hardest positive, -1 when none
	hardestNeg []int     // per-anchor hardest negative, -1 when none
	active     []bool    // per-anchor: hinge strictly positive
}

// NewBatchHardTripletLoss creates the loss function.
func NewBatchHardTripletLoss[B tensor.Backend](margin float32, squared bool, backend B) *BatchHardTripletLoss[B] {
	return &BatchHardTripletLoss[B]{Margin: margin, Squared: squared, backend: backend}
}

// Forward computes the batch-hard triplet loss over an embedding batch
// [batch, dim] with labels [batch]. Inputs are cached for Backward.
func (t *BatchHardTripletLoss[B]) Forward(
	embeddings *tensor.Tensor[float32, B],
	labels *tensor.Tensor[int64, B],
) float32 {
	shape := embeddings.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("batch-hard triplet loss: embeddings must be 2D [batch, dim], got %v", shape))
	}
	batch := shape[0]

	labelData := labels.Data()
	if len(labelData) != batch {
		panic(fmt.Sprintf("batch-hard triplet loss: %d labels for batch of %d", len(labelData), batch))
	}

	t.embeddings = embeddings
	t.dist = pairwiseDistances(embeddings, t.Squared)
	t.hardestPos = make([]int, batch)
	t.hardestNeg = make([]int, batch)
	t.active = make([]bool, batch)

	var total float32
	for i := 0; i < batch; i++ {
		pos, neg := -1, -1
		for j := 0; j < batch; j++ {
			if j == i {
				continue
			}
			d := t.dist[i*batch+j]
			if labelData[j] == labelData[i] {
				if pos < 0 || d > t.dist[i*batch+pos] {
					pos = j
				}
			} else {
				if neg < 0 || d < t.dist[i*batch+neg] {
					neg = j
				}
			}
		}
		t.hardestPos[i] = pos
		t.hardestNeg[i] = neg

		if pos < 0 || neg < 0 {
			continue // Degenerate batch for this anchor: no triplet exists.
		}
		hinge := t.dist[i*batch+pos] - t.dist[i*batch+neg] + t.Margin
		if hinge > 0 {
			t.active[i] = true
			total += hinge
		}
	}

	return total / float32(batch)
}

// Backward returns dLoss/dEmbeddings for the cached forward inputs.
//
// Each active anchor contributes the exact subgradient of its hinge
// through the distance terms; zero-distance pairs use the zero
// subgradient of sqrt.
func (t *BatchHardTripletLoss[B]) Backward() *tensor.Tensor[float32, B] {
	if t.embeddings == nil {
		panic("batch-hard triplet loss: Forward must run first")
	}

	shape := t.embeddings.Shape()
	batch, dim := shape[0], shape[1]

	grad := tensor.Zeros[float32](shape, t.backend)
	gradData := grad.Data()
	emb := t.embeddings.Data()
	coef := 1.0 / float32(batch)

	for i := 0; i < batch; i++ {
		if !t.active[i] {
			continue
		}
		t.accumulatePair(gradData, emb, batch, dim, i, t.hardestPos[i], coef)
		t.accumulatePair(gradData, emb, batch, dim, i, t.hardestNeg[i], -coef)
	}
	return grad
}

// accumulatePair adds g * d d(e_i, e_j)/d e into the gradient for both
// endpoints of the pair.
func (t *BatchHardTripletLoss[B]) accumulatePair(gradData, emb []float32, batch, dim, i, j int, g float32) {
	var scale float32
	if t.Squared {
		scale = 2 * g
	} else {
		d := t.dist[i*batch+j]
		if d == 0 {
			return
		}
		scale = g / d
	}

	ei := emb[i*dim : (i+1)*dim]
	ej := emb[j*dim : (j+1)*dim]
	gi := gradData[i*dim : (i+1)*dim]
	gj := gradData[j*dim : (j+1)*dim]
	for k := 0; k < dim; k++ {
		diff := scale * (ei[k] - ej[k])
		gi[k] += diff
		gj[k] -= diff
	}
}

// pairwiseDistances computes the [batch, batch] distance matrix from
// the Gram matrix, clamping tiny negative values caused by float error.
func pairwiseDistances[B tensor.Backend](embeddings *tensor.Tensor[float32, B], squared bool) []float32 {
	shape := embeddings.Shape()
	batch, dim := shape[0], shape[1]
	emb := embeddings.Data()

	sq := make([]float32, batch)
	for i := 0; i < batch; i++ {
		row := emb[i*dim : (i+1)*dim]
		var s float32
		for _, v := range row {
			s += v * v
		}
		sq[i] = s
	}

	dist := make([]float32, batch*batch)
	for i := 0; i < batch; i++ {
		ei := emb[i*dim : (i+1)*dim]
		for j := i + 1; j < batch; j++ {
			ej := emb[j*dim : (j+1)*dim]
			var dot float32
			for k := 0; k < dim; k++ {
				dot += ei[k] * ej[k]
			}
			d2 := sq[i] - 2*dot + sq[j]
			if d2 < 0 {
				d2 = 0
			}
			d := d2
			if !squared {
				d = math32.Sqrt(d2)
			}
			dist[i*batch+j] = d
			dist[j*batch+i] = d
		}
	}
	return dist
}

// EmbeddingMeanNorm returns the mean L2 row norm of an embedding batch.
// The triplet model fn reports it as a training summary and eval metric.
func EmbeddingMeanNorm[B tensor.Backend](embeddings *tensor.Tensor[float32, B]) float32 {
	shape := embeddings.Shape()
	batch, dim := shape[0], shape[1]
	emb := embeddings.Data()

	var total float32
	for i := 0; i < batch; i++ {
		row := emb[i*dim : (i+1)*dim]
		var s float32
		for _, v := range row {
			s += v * v
		}
		total += math32.Sqrt(s)
	}
	return total / float32(batch)
}
