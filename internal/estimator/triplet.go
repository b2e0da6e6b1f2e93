package estimator

import (
	"fmt"

	"github.com/fengrk/pymltools/internal/nn"
	"github.com/fengrk/pymltools/internal/optim"
	"github.com/fengrk/pymltools/internal/tensor"
)

// TripletModelFn trains an embedding network with batch-hard triplet
// loss. Predictions are the embedding vectors themselves, paired with
// the example filenames.
type TripletModelFn[B tensor.Backend] struct {
	backend   B
	network   Network[B]
	opts      options
	optimizer optim.Optimizer
}

// NewTripletModelFn builds the triplet-head model function around a
// user network. The network output is taken as the embedding batch
// [batch, dim].
func NewTripletModelFn[B tensor.Backend](backend B, network Network[B], opts ...Option) (*TripletModelFn[B], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	optimizer, err := newOptimizer(o.optimizer, o.sched.LR(0), network.Parameters(), backend)
	if err != nil {
		return nil, fmt.Errorf("triplet model fn: %w", err)
	}

	return &TripletModelFn[B]{
		backend:   backend,
		network:   network,
		opts:      o,
		optimizer: optimizer,
	}, nil
}

// Call implements ModelFn.
func (m *TripletModelFn[B]) Call(features *Features, mode ModeKeys, step int64) (*Spec[B], error) {
	x := tensor.New[float32](features.X, m.backend)

	embeddings := m.network.Forward(x, mode == Train)

	// Take the norm before normalization: with L2 on, the normalized
	// rows all have norm 1 and the metric would say nothing about the
	// raw network output.
	meanNorm := nn.EmbeddingMeanNorm(embeddings)

	var l2 *nn.L2Normalize[B]
	if m.opts.l2 {
		l2 = nn.NewL2Normalize[B](m.opts.l2Axis)
		embeddings = l2.Forward(embeddings)
	}

	if mode == Predict {
		return &Spec[B]{
			Mode: Predict,
			Predictions: map[string]any{
				PredictionEmbedding: embeddings.Raw(),
				PredictionFilename:  features.Filenames,
			},
			BatchSize: features.BatchSize(),
		}, nil
	}

	if features.Labels == nil {
		return nil, fmt.Errorf("triplet model fn: %s mode requires labels", mode)
	}
	labels := tensor.New[int64](features.Labels, m.backend)

	lossFn := nn.NewBatchHardTripletLoss(m.opts.margin, m.opts.squared, m.backend)
	loss := lossFn.Forward(embeddings, labels)

	spec := &Spec[B]{
		Mode: mode,
		Loss: loss,
		Metrics: map[string]float32{
			MetricEmbeddingMeanNorm: meanNorm,
		},
		BatchSize: features.BatchSize(),
	}

	if mode == Train {
		spec.TrainOp = func() error {
			m.optimizer.SetLR(m.opts.sched.LR(step))
			m.optimizer.ZeroGrad()

			grad := lossFn.Backward()
			if l2 != nil {
				grad = l2.Backward(grad)
			}
			m.network.Backward(grad)

			params := m.network.Parameters()
			m.optimizer.Step(optim.DenseGrads(params))
			m.optimizer.StepSparse(optim.SparseGrads(params))
			return nil
		}
	}

	return spec, nil
}

// StateDict implements ModelFn.
func (m *TripletModelFn[B]) StateDict() map[string]*tensor.RawTensor {
	return m.network.StateDict()
}

// LoadStateDict implements ModelFn.
func (m *TripletModelFn[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	return m.network.LoadStateDict(stateDict)
}

// Optimizer implements ModelFn.
func (m *TripletModelFn[B]) Optimizer() optim.Optimizer {
	return m.optimizer
}

// OptimizerType implements ModelFn.
func (m *TripletModelFn[B]) OptimizerType() OptimizerType {
	return m.opts.optimizer
}
