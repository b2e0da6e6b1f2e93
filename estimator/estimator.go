// Copyright 2025 The pymltools Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package estimator provides the high-level train/evaluate/predict
// loop for pymltools models.
//
// A model function maps a batch of features and a mode to a Spec
// describing what to run: predictions for Predict, loss and metrics
// for Eval, and additionally a train op for Train. The Estimator
// drives the loop, tracks the global step, and checkpoints to a model
// directory.
//
// Example:
//
//	backend := cpu.New()
//	network := estimator.WrapModule[*cpu.Backend](nn.NewLinear(784, 64, backend))
//	modelFn, err := estimator.NewTripletModelFn(backend, network,
//	    estimator.WithOptimizer(estimator.OptimizerMaskedAdam),
//	    estimator.WithMargin(0.5),
//	    estimator.WithL2Normalize(1),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	est := estimator.New[*cpu.Backend](modelFn, estimator.RunConfig{ModelDir: "out"})
//	err = est.Train(ctx, inputFn, 10000)
package estimator

import (
	"github.com/fengrk/pymltools/internal/estimator"
	"github.com/fengrk/pymltools/internal/nn"
	"github.com/fengrk/pymltools/internal/schedule"
	"github.com/fengrk/pymltools/tensor"
)

// ModeKeys selects the behavior of a model function call.
type ModeKeys = estimator.ModeKeys

// Modes.
const (
	Train   ModeKeys = estimator.Train
	Eval    ModeKeys = estimator.Eval
	Predict ModeKeys = estimator.Predict
)

// OptimizerType names an optimizer in configs.
type OptimizerType = estimator.OptimizerType

// Optimizer types.
const (
	OptimizerSGD        OptimizerType = estimator.OptimizerSGD
	OptimizerAdam       OptimizerType = estimator.OptimizerAdam
	OptimizerMaskedAdam OptimizerType = estimator.OptimizerMaskedAdam
)

// ParseOptimizerType parses an optimizer name, case-insensitively.
func ParseOptimizerType(s string) (OptimizerType, error) {
	return estimator.ParseOptimizerType(s)
}

// Prediction keys present in Spec.Predictions and Predict output.
const (
	PredictionEmbedding = estimator.PredictionEmbedding
	PredictionClass     = estimator.PredictionClass
	PredictionProb      = estimator.PredictionProb
	PredictionFilename  = estimator.PredictionFilename
)

// Metric names present in Spec.Metrics and Evaluate output.
const (
	MetricLoss              = estimator.MetricLoss
	MetricAccuracy          = estimator.MetricAccuracy
	MetricEmbeddingMeanNorm = estimator.MetricEmbeddingMeanNorm
)

// Features is one batch of model input.
type Features = estimator.Features

// Spec describes what a model function call produced for its mode.
type Spec[B tensor.Backend] = estimator.Spec[B]

// ModelFn builds mode-dependent Specs and owns the model state.
type ModelFn[B tensor.Backend] = estimator.ModelFn[B]

// Network is a trainable feature extractor: a module plus a training
// flag on Forward.
type Network[B tensor.Backend] = estimator.Network[B]

// WrapModule adapts a plain module into a Network that ignores the
// training flag.
func WrapModule[B tensor.Backend](m nn.Module[B]) Network[B] {
	return estimator.WrapModule[B](m)
}

// TripletModelFn learns embeddings with batch-hard triplet loss.
type TripletModelFn[B tensor.Backend] = estimator.TripletModelFn[B]

// NewTripletModelFn creates a triplet-loss model function around the
// given network.
func NewTripletModelFn[B tensor.Backend](backend B, network Network[B], opts ...Option) (*TripletModelFn[B], error) {
	return estimator.NewTripletModelFn(backend, network, opts...)
}

// SoftmaxModelFn learns a classifier with softmax cross-entropy.
type SoftmaxModelFn[B tensor.Backend] = estimator.SoftmaxModelFn[B]

// NewSoftmaxModelFn creates a softmax classification model function
// around the given network.
func NewSoftmaxModelFn[B tensor.Backend](backend B, network Network[B], opts ...Option) (*SoftmaxModelFn[B], error) {
	return estimator.NewSoftmaxModelFn(backend, network, opts...)
}

// Option configures a model function.
type Option = estimator.Option

// WithOptimizer selects the optimizer (default Adam).
func WithOptimizer(t OptimizerType) Option { return estimator.WithOptimizer(t) }

// WithSchedule sets the learning rate schedule (default constant 0.001).
func WithSchedule(s schedule.Schedule) Option { return estimator.WithSchedule(s) }

// WithMargin sets the triplet loss margin (default 0.5).
func WithMargin(m float32) Option { return estimator.WithMargin(m) }

// WithSquaredDistance switches triplet mining to squared Euclidean
// distances.
func WithSquaredDistance() Option { return estimator.WithSquaredDistance() }

// WithL2Normalize normalizes embeddings to unit L2 norm over the given
// axis before the loss and in predictions.
func WithL2Normalize(axis int) Option { return estimator.WithL2Normalize(axis) }

// InputFn produces a fresh batch iterator for each pass over the data.
type InputFn = estimator.InputFn

// RunConfig configures an Estimator run.
type RunConfig = estimator.RunConfig

// Estimator drives training, evaluation and prediction.
type Estimator[B tensor.Backend] = estimator.Estimator[B]

// New creates an estimator around a model function.
func New[B tensor.Backend](modelFn ModelFn[B], config RunConfig) *Estimator[B] {
	return estimator.New[B](modelFn, config)
}
