package estimator_test

import (
	"context"
	"testing"

	"github.com/fengrk/pymltools/internal/backend/cpu"
	"github.com/fengrk/pymltools/internal/dataset"
	"github.com/fengrk/pymltools/internal/estimator"
	"github.com/fengrk/pymltools/internal/nn"
	"github.com/fengrk/pymltools/internal/schedule"
	"github.com/fengrk/pymltools/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoClusterData builds a linearly separable two-class dataset in 2D.
func twoClusterData(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New(
		[]float32{
			1, 1,
			1.2, 0.8,
			0.9, 1.1,
			1.1, 1.2,
			-1, -1,
			-1.2, -0.8,
			-0.9, -1.1,
			-1.1, -1.2,
		},
		[]int64{0, 0, 0, 0, 1, 1, 1, 1},
		nil, 2,
	)
	require.NoError(t, err)
	return ds
}

func inputFn(ds *dataset.Dataset, cfg dataset.BatchConfig) estimator.InputFn {
	return func() (*dataset.Iterator, error) {
		return ds.Batches(cfg), nil
	}
}

func TestModeKeys_String(t *testing.T) {
	assert.Equal(t, "train", estimator.Train.String())
	assert.Equal(t, "eval", estimator.Eval.String())
	assert.Equal(t, "predict", estimator.Predict.String())
}

func TestParseOptimizerType(t *testing.T) {
	for input, want := range map[string]estimator.OptimizerType{
		"sgd":         estimator.OptimizerSGD,
		"Adam":        estimator.OptimizerAdam,
		"masked_adam": estimator.OptimizerMaskedAdam,
		"MaskedAdam":  estimator.OptimizerMaskedAdam,
	} {
		got, err := estimator.ParseOptimizerType(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}

	_, err := estimator.ParseOptimizerType("rmsprop")
	assert.Error(t, err)
}

func TestStreamingMean(t *testing.T) {
	var m estimator.Mean
	m.Update(1.0, 2)
	m.Update(4.0, 1)
	assert.InDelta(t, 2.0, m.Result(), 1e-6)
	m.Reset()
	assert.Equal(t, float32(0), m.Result())

	// Per-batch accuracy fractions weighted by batch size recover the
	// overall count: 3/4 over 4 plus 1/4 over 4 is 4/8.
	var acc estimator.Mean
	acc.Update(0.75, 4)
	acc.Update(0.25, 4)
	assert.InDelta(t, 0.5, acc.Result(), 1e-6)
}

func TestTripletModelFn_ModeDispatch(t *testing.T) {
	backend := cpu.New()
	network := estimator.WrapModule[*cpu.CPUBackend](nn.NewLinear(2, 4, backend))
	modelFn, err := estimator.NewTripletModelFn(backend, network,
		estimator.WithOptimizer(estimator.OptimizerMaskedAdam),
		estimator.WithMargin(0.5),
	)
	require.NoError(t, err)

	ds := twoClusterData(t)
	it := ds.Batches(dataset.BatchConfig{BatchSize: 8})
	batch, ok := it.Next()
	require.True(t, ok)
	features := estimator.FromBatch(batch)

	// Predict: predictions only.
	spec, err := modelFn.Call(features, estimator.Predict, 0)
	require.NoError(t, err)
	assert.Equal(t, estimator.Predict, spec.Mode)
	assert.Nil(t, spec.TrainOp)
	assert.Zero(t, spec.Loss)
	emb, ok := spec.Predictions[estimator.PredictionEmbedding].(*tensor.RawTensor)
	require.True(t, ok)
	assert.Equal(t, tensor.Shape{8, 4}, emb.Shape())
	assert.Len(t, spec.Predictions[estimator.PredictionFilename], 8)

	// Eval: loss and metrics, no train op.
	spec, err = modelFn.Call(features, estimator.Eval, 0)
	require.NoError(t, err)
	assert.Nil(t, spec.TrainOp)
	assert.GreaterOrEqual(t, spec.Loss, float32(0))
	assert.Contains(t, spec.Metrics, estimator.MetricEmbeddingMeanNorm)

	// Train: loss and train op.
	spec, err = modelFn.Call(features, estimator.Train, 0)
	require.NoError(t, err)
	require.NotNil(t, spec.TrainOp)
	require.NoError(t, spec.TrainOp())

	// Labels are required outside predict.
	unlabeled := &estimator.Features{X: features.X, Filenames: features.Filenames}
	_, err = modelFn.Call(unlabeled, estimator.Train, 0)
	assert.Error(t, err)
}

func TestTripletModelFn_L2NormalizedPredictions(t *testing.T) {
	backend := cpu.New()
	network := estimator.WrapModule[*cpu.CPUBackend](nn.NewLinear(2, 4, backend))
	modelFn, err := estimator.NewTripletModelFn(backend, network,
		estimator.WithL2Normalize(1),
	)
	require.NoError(t, err)

	ds := twoClusterData(t)
	it := ds.Batches(dataset.BatchConfig{BatchSize: 8})
	batch, _ := it.Next()

	spec, err := modelFn.Call(estimator.FromBatch(batch), estimator.Predict, 0)
	require.NoError(t, err)

	emb := spec.Predictions[estimator.PredictionEmbedding].(*tensor.RawTensor)
	data := emb.AsFloat32()
	for r := 0; r < 8; r++ {
		var norm2 float32
		for d := 0; d < 4; d++ {
			v := data[r*4+d]
			norm2 += v * v
		}
		assert.InDelta(t, 1.0, norm2, 1e-4, "row %d should be unit-normalized", r)
	}
}

func TestTripletModelFn_MeanNormTakenBeforeNormalization(t *testing.T) {
	backend := cpu.New()

	// An identity network, so the embeddings are the inputs themselves.
	linear := nn.NewLinear(2, 2, backend)
	identity, err := tensor.FromSlice([]float32{1, 0, 0, 1}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)
	zeroBias, err := tensor.FromSlice([]float32{0, 0}, tensor.Shape{2}, backend)
	require.NoError(t, err)
	require.NoError(t, linear.LoadStateDict(map[string]*tensor.RawTensor{
		"weight": identity.Raw(),
		"bias":   zeroBias.Raw(),
	}))

	network := estimator.WrapModule[*cpu.CPUBackend](linear)
	modelFn, err := estimator.NewTripletModelFn(backend, network,
		estimator.WithL2Normalize(1),
	)
	require.NoError(t, err)

	// Every input row has norm 5. With normalization on, the metric
	// must still report the raw norm, not the post-normalization 1.0.
	ds, err := dataset.New([]float32{3, 4, 0, 5}, []int64{0, 1}, nil, 2)
	require.NoError(t, err)
	it := ds.Batches(dataset.BatchConfig{BatchSize: 2})
	batch, ok := it.Next()
	require.True(t, ok)

	spec, err := modelFn.Call(estimator.FromBatch(batch), estimator.Eval, 0)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, spec.Metrics[estimator.MetricEmbeddingMeanNorm], 1e-4)
}

func TestSoftmaxModelFn_ModeDispatch(t *testing.T) {
	backend := cpu.New()
	network := estimator.WrapModule[*cpu.CPUBackend](nn.NewLinear(2, 2, backend))
	modelFn, err := estimator.NewSoftmaxModelFn(backend, network)
	require.NoError(t, err)

	ds := twoClusterData(t)
	it := ds.Batches(dataset.BatchConfig{BatchSize: 8})
	batch, _ := it.Next()
	features := estimator.FromBatch(batch)

	spec, err := modelFn.Call(features, estimator.Predict, 0)
	require.NoError(t, err)
	classes, ok := spec.Predictions[estimator.PredictionClass].(*tensor.RawTensor)
	require.True(t, ok)
	assert.Equal(t, tensor.Shape{8}, classes.Shape())
	probs, ok := spec.Predictions[estimator.PredictionProb].(*tensor.RawTensor)
	require.True(t, ok)
	assert.Equal(t, tensor.Shape{8, 2}, probs.Shape())
	// Probability rows sum to 1.
	pData := probs.AsFloat32()
	for r := 0; r < 8; r++ {
		assert.InDelta(t, 1.0, pData[r*2]+pData[r*2+1], 1e-5)
	}

	spec, err = modelFn.Call(features, estimator.Eval, 0)
	require.NoError(t, err)
	assert.Contains(t, spec.Metrics, estimator.MetricAccuracy)
	assert.Nil(t, spec.TrainOp)

	spec, err = modelFn.Call(features, estimator.Train, 0)
	require.NoError(t, err)
	require.NotNil(t, spec.TrainOp)
}

func TestEstimator_TrainAdvancesGlobalStep(t *testing.T) {
	backend := cpu.New()
	network := estimator.WrapModule[*cpu.CPUBackend](nn.NewLinear(2, 2, backend))
	modelFn, err := estimator.NewSoftmaxModelFn(backend, network,
		estimator.WithSchedule(schedule.Constant{Rate: 0.05}),
	)
	require.NoError(t, err)

	est := estimator.New[*cpu.CPUBackend](modelFn, estimator.RunConfig{})
	ds := twoClusterData(t)

	err = est.Train(context.Background(), inputFn(ds, dataset.BatchConfig{
		BatchSize: 4, Shuffle: true, DropTail: true, Seed: 1,
	}), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), est.GlobalStep())
}

func TestEstimator_TrainingReducesLoss(t *testing.T) {
	backend := cpu.New()
	network := estimator.WrapModule[*cpu.CPUBackend](nn.NewLinear(2, 2, backend))
	modelFn, err := estimator.NewSoftmaxModelFn(backend, network,
		estimator.WithSchedule(schedule.Constant{Rate: 0.05}),
	)
	require.NoError(t, err)

	ds := twoClusterData(t)
	evalInput := inputFn(ds, dataset.BatchConfig{BatchSize: 8})

	est := estimator.New[*cpu.CPUBackend](modelFn, estimator.RunConfig{})

	before, err := est.Evaluate(context.Background(), evalInput)
	require.NoError(t, err)

	err = est.Train(context.Background(), inputFn(ds, dataset.BatchConfig{
		BatchSize: 4, Shuffle: true, DropTail: true, Seed: 1,
	}), 200)
	require.NoError(t, err)

	after, err := est.Evaluate(context.Background(), evalInput)
	require.NoError(t, err)

	assert.Less(t, after[estimator.MetricLoss], before[estimator.MetricLoss])
	assert.GreaterOrEqual(t, after[estimator.MetricAccuracy], float32(0.75))
}

func TestEstimator_EvaluateEmptyDataset(t *testing.T) {
	backend := cpu.New()
	network := estimator.WrapModule[*cpu.CPUBackend](nn.NewLinear(2, 2, backend))
	modelFn, err := estimator.NewSoftmaxModelFn(backend, network)
	require.NoError(t, err)

	est := estimator.New[*cpu.CPUBackend](modelFn, estimator.RunConfig{})
	empty, err := dataset.New(nil, nil, []string{}, 1)
	require.NoError(t, err)

	_, err = est.Evaluate(context.Background(), inputFn(empty, dataset.BatchConfig{BatchSize: 4}))
	assert.Error(t, err)
}

func TestEstimator_PredictFlattensExamples(t *testing.T) {
	backend := cpu.New()
	network := estimator.WrapModule[*cpu.CPUBackend](nn.NewLinear(2, 3, backend))
	modelFn, err := estimator.NewSoftmaxModelFn(backend, network)
	require.NoError(t, err)

	est := estimator.New[*cpu.CPUBackend](modelFn, estimator.RunConfig{})
	ds := twoClusterData(t)

	preds, err := est.Predict(context.Background(), inputFn(ds, dataset.BatchConfig{BatchSize: 3}))
	require.NoError(t, err)
	require.Len(t, preds, 8)

	for i, p := range preds {
		assert.IsType(t, int64(0), p[estimator.PredictionClass], "example %d", i)
		probs, ok := p[estimator.PredictionProb].([]float32)
		require.True(t, ok)
		assert.Len(t, probs, 3)
		assert.Equal(t, ds.Filenames[i], p[estimator.PredictionFilename])
	}
}

func TestEstimator_CheckpointResume(t *testing.T) {
	backend := cpu.New()
	dir := t.TempDir()
	ds := twoClusterData(t)
	trainInput := inputFn(ds, dataset.BatchConfig{
		BatchSize: 4, Shuffle: true, DropTail: true, Seed: 1,
	})

	build := func() estimator.ModelFn[*cpu.CPUBackend] {
		network := estimator.WrapModule[*cpu.CPUBackend](nn.NewLinear(2, 2, backend))
		modelFn, err := estimator.NewSoftmaxModelFn(backend, network,
			estimator.WithOptimizer(estimator.OptimizerAdam),
		)
		require.NoError(t, err)
		return modelFn
	}

	cfg := estimator.RunConfig{ModelDir: dir, CheckpointEvery: 5}
	first := estimator.New[*cpu.CPUBackend](build(), cfg)
	require.NoError(t, first.Train(context.Background(), trainInput, 10))
	assert.Equal(t, int64(10), first.GlobalStep())

	// A fresh estimator picks up at the checkpointed step and runs only
	// the remaining steps.
	second := estimator.New[*cpu.CPUBackend](build(), cfg)
	require.NoError(t, second.Train(context.Background(), trainInput, 15))
	assert.Equal(t, int64(15), second.GlobalStep())

	// Already past max steps: nothing to do.
	third := estimator.New[*cpu.CPUBackend](build(), cfg)
	require.NoError(t, third.Train(context.Background(), trainInput, 15))
	assert.Equal(t, int64(15), third.GlobalStep())
}

func TestEstimator_ContextCancellation(t *testing.T) {
	backend := cpu.New()
	network := estimator.WrapModule[*cpu.CPUBackend](nn.NewLinear(2, 2, backend))
	modelFn, err := estimator.NewSoftmaxModelFn(backend, network)
	require.NoError(t, err)

	est := estimator.New[*cpu.CPUBackend](modelFn, estimator.RunConfig{})
	ds := twoClusterData(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = est.Train(ctx, inputFn(ds, dataset.BatchConfig{BatchSize: 4, DropTail: true}), 100)
	assert.ErrorIs(t, err, context.Canceled)
}
