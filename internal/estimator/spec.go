package estimator

import (
	"github.com/fengrk/pymltools/internal/optim"
	"github.com/fengrk/pymltools/internal/tensor"
)

// Prediction output keys.
const (
	PredictionEmbedding = "embedding"
	PredictionClass     = "class"
	PredictionProb      = "prob"
	PredictionFilename  = "filename"
)

// Metric names.
const (
	MetricLoss              = "loss"
	MetricAccuracy          = "accuracy"
	MetricEmbeddingMeanNorm = "embedding_mean_norm"
)

// Spec is what a model function returns for one batch in one mode.
//
// Exactly the fields for the mode are set: Predict specs carry
// Predictions and nothing else; Eval specs carry Loss and Metrics;
// Train specs carry Loss, Metrics and a TrainOp.
type Spec[B any] struct {
	Mode ModeKeys

	// Predictions maps output keys to per-batch values: a
	// *tensor.RawTensor with leading batch dimension, or []string for
	// filenames. Set in Predict mode.
	Predictions map[string]any

	// Loss is the scalar batch loss. Set in Train and Eval modes.
	Loss float32

	// Metrics holds per-batch scalar metrics by name. The estimator
	// aggregates them across batches, weighted by batch size.
	Metrics map[string]float32

	// BatchSize weights the metrics during aggregation.
	BatchSize int

	// TrainOp applies one optimizer step for this batch. Set in Train
	// mode only.
	TrainOp func() error
}

// ModelFn builds a Spec for one batch. Implementations own their
// network and optimizer so training state persists across calls; the
// estimator reaches both for checkpointing.
type ModelFn[B any] interface {
	Call(features *Features, mode ModeKeys, step int64) (*Spec[B], error)

	// StateDict exports the network state for checkpointing.
	StateDict() map[string]*tensor.RawTensor
	// LoadStateDict restores the network state.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error

	// Optimizer returns the train-op optimizer.
	Optimizer() optim.Optimizer
	// OptimizerType names the optimizer for checkpoint metadata.
	OptimizerType() OptimizerType
}
