package nn

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/fengrk/pymltools/internal/tensor"
)

// SparseSoftmaxCrossEntropy computes mean cross-entropy between raw
// logits and integer class labels, using the LogSoftmax + NLL
// decomposition with the log-sum-exp trick for numerical stability.
//
//	loss     = mean_b( -log_softmax(logits[b])[labels[b]] )
//	gradient = (softmax(logits) - onehot(labels)) / batch
type SparseSoftmaxCrossEntropy[B tensor.Backend] struct {
	backend B

	logits *tensor.Tensor[float32, B]
	labels *tensor.Tensor[int64, B]
}

// NewSparseSoftmaxCrossEntropy creates the loss function.
func NewSparseSoftmaxCrossEntropy[B tensor.Backend](backend B) *SparseSoftmaxCrossEntropy[B] {
	return &SparseSoftmaxCrossEntropy[B]{backend: backend}
}

// Forward computes the mean loss over the batch.
//
// logits must be [batch, classes]; labels [batch] with values in
// [0, classes). The inputs are cached for Backward.
func (c *SparseSoftmaxCrossEntropy[B]) Forward(
	logits *tensor.Tensor[float32, B],
	labels *tensor.Tensor[int64, B],
) float32 {
	shape := logits.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("sparse softmax cross-entropy: logits must be 2D [batch, classes], got %v", shape))
	}
	batch, classes := shape[0], shape[1]

	labelData := labels.Data()
	if len(labelData) != batch {
		panic(fmt.Sprintf("sparse softmax cross-entropy: %d labels for batch of %d", len(labelData), batch))
	}

	logitData := logits.Data()

	var total float32
	for b := 0; b < batch; b++ {
		row := logitData[b*classes : (b+1)*classes]
		label := int(labelData[b])
		if label < 0 || label >= classes {
			panic(fmt.Sprintf("sparse softmax cross-entropy: label %d out of range [0, %d)", label, classes))
		}
		total += -logSoftmax(row)[label]
	}

	c.logits = logits
	c.labels = labels
	return total / float32(batch)
}

// Backward returns dLoss/dLogits for the cached forward inputs.
func (c *SparseSoftmaxCrossEntropy[B]) Backward() *tensor.Tensor[float32, B] {
	if c.logits == nil {
		panic("sparse softmax cross-entropy: Forward must run first")
	}

	shape := c.logits.Shape()
	batch, classes := shape[0], shape[1]

	grad := tensor.Zeros[float32](shape, c.backend)
	gradData := grad.Data()
	logitData := c.logits.Data()
	labelData := c.labels.Data()

	for b := 0; b < batch; b++ {
		probs := softmaxRow(logitData[b*classes : (b+1)*classes])
		label := int(labelData[b])
		for i := 0; i < classes; i++ {
			g := probs[i]
			if i == label {
				g -= 1.0
			}
			gradData[b*classes+i] = g / float32(batch)
		}
	}
	return grad
}

// logSoftmax computes log(softmax(z)) via z - (max + log sum exp(z-max)).
func logSoftmax(z []float32) []float32 {
	result := make([]float32, len(z))

	maxZ := z[0]
	for _, v := range z[1:] {
		if v > maxZ {
			maxZ = v
		}
	}

	var sumExp float32
	for _, v := range z {
		sumExp += math32.Exp(v - maxZ)
	}
	logSumExp := maxZ + math32.Log(sumExp)

	for i, v := range z {
		result[i] = v - logSumExp
	}
	return result
}

// softmaxRow computes softmax(z) = exp(logSoftmax(z)).
func softmaxRow(z []float32) []float32 {
	logProbs := logSoftmax(z)
	result := make([]float32, len(logProbs))
	for i, lp := range logProbs {
		result[i] = math32.Exp(lp)
	}
	return result
}

// Accuracy computes argmax classification accuracy for a batch of
// logits against integer labels.
func Accuracy[B tensor.Backend](
	logits *tensor.Tensor[float32, B],
	labels *tensor.Tensor[int64, B],
) float32 {
	shape := logits.Shape()
	batch, classes := shape[0], shape[1]

	logitData := logits.Data()
	labelData := labels.Data()

	correct := 0
	for b := 0; b < batch; b++ {
		row := logitData[b*classes : (b+1)*classes]
		predicted, best := 0, row[0]
		for i, v := range row[1:] {
			if v > best {
				best, predicted = v, i+1
			}
		}
		if int64(predicted) == labelData[b] {
			correct++
		}
	}
	return float32(correct) / float32(batch)
}
