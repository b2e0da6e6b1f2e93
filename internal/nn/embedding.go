package nn

import (
	"fmt"
	"math/rand"

	"github.com/fengrk/pymltools/internal/tensor"
)

// Embedding is a lookup table mapping discrete int32 indices to dense
// learnable vectors.
//
// It does not implement Module: its input is an index tensor, not a
// float batch. Lookup caches the indices; Backward produces a SPARSE
// gradient (tensor.IndexedSlices) holding one value row per looked-up
// index, which is exactly the gradient form the sparse optimizer paths
// consume.
type Embedding[B tensor.Backend] struct {
	Weight   *Parameter[B] // [NumEmbed, EmbedDim]
	NumEmbed int
	EmbedDim int

	indices *tensor.Tensor[int32, B] // cached by Lookup
}

// NewEmbedding creates an Embedding layer with weights drawn from N(0, 1).
func NewEmbedding[B tensor.Backend](numEmbeddings, embeddingDim int, backend B) *Embedding[B] {
	weightData := make([]float32, numEmbeddings*embeddingDim)
	for i := range weightData {
		//nolint:gosec // math/rand is appropriate for weight initialization
		weightData[i] = float32(rand.NormFloat64())
	}

	weight, err := tensor.FromSlice[float32, B](weightData, tensor.Shape{numEmbeddings, embeddingDim}, backend)
	if err != nil {
		panic(fmt.Sprintf("failed to create embedding weight: %v", err))
	}
	return NewEmbeddingWithWeight(weight)
}

// NewEmbeddingWithWeight creates an Embedding layer around a
// pre-initialized [numEmbeddings, embeddingDim] weight tensor.
func NewEmbeddingWithWeight[B tensor.Backend](weight *tensor.Tensor[float32, B]) *Embedding[B] {
	shape := weight.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("embedding weight must be 2D, got shape %v", shape))
	}
	return &Embedding[B]{
		Weight:   NewParameter("embedding.weight", weight),
		NumEmbed: shape[0],
		EmbedDim: shape[1],
	}
}

// Lookup returns the embedding rows for the given indices, shaped
// [indices..., EmbedDim]. Panics if any index is out of [0, NumEmbed).
func (e *Embedding[B]) Lookup(indices *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	e.indices = indices
	return e.Weight.Tensor().Embedding(indices)
}

// Backward accumulates the sparse weight gradient: one value row per
// looked-up index. Duplicate indices stay duplicated here; consumers
// sum them (see tensor.IndexedSlices).
func (e *Embedding[B]) Backward(gradOut *tensor.Tensor[float32, B]) {
	if e.indices == nil {
		panic("Embedding.Backward: Lookup must run first")
	}

	n := e.indices.NumElements()
	gradShape := gradOut.Shape()
	if gradShape.NumElements() != n*e.EmbedDim {
		panic(fmt.Sprintf("Embedding.Backward: gradient shape %v does not match %d lookups of dim %d",
			gradShape, n, e.EmbedDim))
	}

	values := gradOut.Backend().Reshape(gradOut.Raw(), tensor.Shape{n, e.EmbedDim})
	flatIdx := gradOut.Backend().Reshape(e.indices.Raw(), tensor.Shape{n})

	sparse, err := tensor.NewIndexedSlices(flatIdx, values)
	if err != nil {
		panic(err)
	}
	e.Weight.AccumulateSparseGrad(sparse)
}

// Parameters returns the trainable parameters.
func (e *Embedding[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{e.Weight}
}

// StateDict exports the weight tensor.
func (e *Embedding[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{"weight": e.Weight.Tensor().Raw()}
}

// LoadStateDict loads the weight tensor.
func (e *Embedding[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return loadParam(e.Weight, stateDict, "weight", tensor.Shape{e.NumEmbed, e.EmbedDim})
}
