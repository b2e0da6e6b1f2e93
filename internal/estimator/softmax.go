package estimator

import (
	"fmt"

	"github.com/fengrk/pymltools/internal/nn"
	"github.com/fengrk/pymltools/internal/optim"
	"github.com/fengrk/pymltools/internal/tensor"
)

// SoftmaxModelFn trains a classification network with sparse softmax
// cross-entropy. Predictions carry the argmax class, the class
// probabilities, and the example filenames.
type SoftmaxModelFn[B tensor.Backend] struct {
	backend   B
	network   Network[B]
	opts      options
	optimizer optim.Optimizer
}

// NewSoftmaxModelFn builds the softmax-head model function around a
// user network. The network output is taken as raw logits
// [batch, classes].
func NewSoftmaxModelFn[B tensor.Backend](backend B, network Network[B], opts ...Option) (*SoftmaxModelFn[B], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	optimizer, err := newOptimizer(o.optimizer, o.sched.LR(0), network.Parameters(), backend)
	if err != nil {
		return nil, fmt.Errorf("softmax model fn: %w", err)
	}

	return &SoftmaxModelFn[B]{
		backend:   backend,
		network:   network,
		opts:      o,
		optimizer: optimizer,
	}, nil
}

// Call implements ModelFn.
func (m *SoftmaxModelFn[B]) Call(features *Features, mode ModeKeys, step int64) (*Spec[B], error) {
	x := tensor.New[float32](features.X, m.backend)

	logits := m.network.Forward(x, mode == Train)

	if mode == Predict {
		return &Spec[B]{
			Mode: Predict,
			Predictions: map[string]any{
				PredictionClass:    logits.Argmax(1).Raw(),
				PredictionProb:     logits.Softmax(1).Raw(),
				PredictionFilename: features.Filenames,
			},
			BatchSize: features.BatchSize(),
		}, nil
	}

	if features.Labels == nil {
		return nil, fmt.Errorf("softmax model fn: %s mode requires labels", mode)
	}
	labels := tensor.New[int64](features.Labels, m.backend)

	lossFn := nn.NewSparseSoftmaxCrossEntropy(m.backend)
	loss := lossFn.Forward(logits, labels)

	spec := &Spec[B]{
		Mode:      mode,
		Loss:      loss,
		Metrics:   map[string]float32{},
		BatchSize: features.BatchSize(),
	}

	if mode == Eval {
		spec.Metrics[MetricAccuracy] = nn.Accuracy(logits, labels)
	}

	if mode == Train {
		spec.TrainOp = func() error {
			m.optimizer.SetLR(m.opts.sched.LR(step))
			m.optimizer.ZeroGrad()

			m.network.Backward(lossFn.Backward())

			params := m.network.Parameters()
			m.optimizer.Step(optim.DenseGrads(params))
			m.optimizer.StepSparse(optim.SparseGrads(params))
			return nil
		}
	}

	return spec, nil
}

// StateDict implements ModelFn.
func (m *SoftmaxModelFn[B]) StateDict() map[string]*tensor.RawTensor {
	return m.network.StateDict()
}

// LoadStateDict implements ModelFn.
func (m *SoftmaxModelFn[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return m.network.LoadStateDict(stateDict)
}

// Optimizer implements ModelFn.
func (m *SoftmaxModelFn[B]) Optimizer() optim.Optimizer {
	return m.optimizer
}

// OptimizerType implements ModelFn.
func (m *SoftmaxModelFn[B]) OptimizerType() OptimizerType {
	return m.opts.optimizer
}
