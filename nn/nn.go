// Copyright 2025 The pymltools Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides neural network building blocks for pymltools.
//
// Modules compute their own gradients: Forward caches what Backward
// needs, Backward propagates the output gradient and accumulates
// parameter gradients.
//
// Example:
//
//	backend := cpu.New()
//	model := nn.NewSequential[*cpu.Backend](
//	    nn.NewLinear(784, 256, backend),
//	    nn.NewReLU[*cpu.Backend](),
//	    nn.NewLinear(256, 64, backend),
//	)
//	out := model.Forward(x)
package nn

import (
	"github.com/fengrk/pymltools/internal/nn"
	"github.com/fengrk/pymltools/tensor"
)

// Module is the interface all network components implement.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter is a trainable tensor with accumulated dense and sparse
// gradients.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter wraps a tensor as a named trainable parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// Linear is a fully connected layer: y = x·W + b.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a fully connected layer with Xavier-initialized
// weights and zero bias.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, backend)
}

// Sequential chains modules, feeding each output into the next.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a sequential container from the given modules.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// ReLU applies max(0, x) element-wise.
type ReLU[B tensor.Backend] = nn.ReLU[B]

// NewReLU creates a ReLU activation module.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return nn.NewReLU[B]()
}

// Sigmoid applies 1/(1+e^-x) element-wise.
type Sigmoid[B tensor.Backend] = nn.Sigmoid[B]

// NewSigmoid creates a sigmoid activation module.
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] {
	return nn.NewSigmoid[B]()
}

// Tanh applies the hyperbolic tangent element-wise.
type Tanh[B tensor.Backend] = nn.Tanh[B]

// NewTanh creates a tanh activation module.
func NewTanh[B tensor.Backend]() *Tanh[B] {
	return nn.NewTanh[B]()
}

// Embedding is a lookup table whose backward pass produces sparse
// IndexedSlices gradients instead of dense ones.
type Embedding[B tensor.Backend] = nn.Embedding[B]

// NewEmbedding creates an embedding table of numEmbeddings rows of
// embeddingDim values with normal-initialized weights.
func NewEmbedding[B tensor.Backend](numEmbeddings, embeddingDim int, backend B) *Embedding[B] {
	return nn.NewEmbedding(numEmbeddings, embeddingDim, backend)
}

// NewEmbeddingWithWeight creates an embedding table around an existing
// weight tensor.
func NewEmbeddingWithWeight[B tensor.Backend](weight *tensor.Tensor[float32, B]) *Embedding[B] {
	return nn.NewEmbeddingWithWeight(weight)
}

// L2Normalize scales rows (or the whole tensor) to unit L2 norm.
type L2Normalize[B tensor.Backend] = nn.L2Normalize[B]

// NewL2Normalize creates an L2 normalization module over the given
// axis. Axis 1 normalizes each row of a [batch, dim] tensor.
func NewL2Normalize[B tensor.Backend](axis int) *L2Normalize[B] {
	return nn.NewL2Normalize[B](axis)
}

// SparseSoftmaxCrossEntropy is softmax cross-entropy loss against
// integer class labels.
type SparseSoftmaxCrossEntropy[B tensor.Backend] = nn.SparseSoftmaxCrossEntropy[B]

// NewSparseSoftmaxCrossEntropy creates the loss.
func NewSparseSoftmaxCrossEntropy[B tensor.Backend](backend B) *SparseSoftmaxCrossEntropy[B] {
	return nn.NewSparseSoftmaxCrossEntropy(backend)
}

// BatchHardTripletLoss is triplet loss with batch-hard mining: for
// each anchor, the hardest positive and hardest negative in the batch.
type BatchHardTripletLoss[B tensor.Backend] = nn.BatchHardTripletLoss[B]

// NewBatchHardTripletLoss creates the loss with the given margin.
// When squared is true, squared Euclidean distances are used.
func NewBatchHardTripletLoss[B tensor.Backend](margin float32, squared bool, backend B) *BatchHardTripletLoss[B] {
	return nn.NewBatchHardTripletLoss(margin, squared, backend)
}

// Accuracy returns the fraction of rows whose argmax matches the label.
func Accuracy[B tensor.Backend](logits *tensor.Tensor[float32, B], labels *tensor.Tensor[int64, B]) float32 {
	return nn.Accuracy(logits, labels)
}

// EmbeddingMeanNorm returns the mean L2 norm of the embedding rows, a
// cheap health signal for embedding training.
func EmbeddingMeanNorm[B tensor.Backend](embeddings *tensor.Tensor[float32, B]) float32 {
	return nn.EmbeddingMeanNorm(embeddings)
}
