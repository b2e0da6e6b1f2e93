package estimator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/fengrk/pymltools/internal/checkpoint"
	"github.com/fengrk/pymltools/internal/dataset"
	"github.com/fengrk/pymltools/internal/tensor"
)

// InputFn produces one pass over the input data. Train calls it again
// for every epoch; Evaluate and Predict consume a single pass.
type InputFn func() (*dataset.Iterator, error)

// RunConfig controls the training driver.
type RunConfig struct {
	// ModelDir receives checkpoints. Empty disables checkpointing and
	// resume.
	ModelDir string
	// LogEvery is the step interval between progress log lines.
	LogEvery int64
	// CheckpointEvery is the step interval between checkpoints.
	CheckpointEvery int64
}

// Estimator drives a model function through training, evaluation and
// prediction, owning the global step and checkpoint lifecycle.
type Estimator[B tensor.Backend] struct {
	modelFn    ModelFn[B]
	config     RunConfig
	globalStep int64
	restored   bool
}

// optimizerState is implemented by optimizers whose state can be
// checkpointed.
type optimizerState interface {
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// New creates an estimator around a model function.
func New[B tensor.Backend](modelFn ModelFn[B], config RunConfig) *Estimator[B] {
	if config.LogEvery <= 0 {
		config.LogEvery = 100
	}
	if config.CheckpointEvery <= 0 {
		config.CheckpointEvery = 1000
	}
	return &Estimator[B]{modelFn: modelFn, config: config}
}

// GlobalStep returns the number of train ops executed so far, including
// steps restored from a checkpoint.
func (e *Estimator[B]) GlobalStep() int64 {
	return e.globalStep
}

// Train runs train ops until the global step reaches maxSteps, resuming
// from the latest checkpoint in ModelDir when one exists. The input
// function is re-invoked for every pass over the data.
func (e *Estimator[B]) Train(ctx context.Context, inputFn InputFn, maxSteps int64) error {
	if err := e.restoreIfAvailable(); err != nil {
		return err
	}
	if e.globalStep >= maxSteps {
		log.Printf("estimator: step %d already at max steps %d, nothing to do", e.globalStep, maxSteps)
		return nil
	}

	var lastLoss float32
	for e.globalStep < maxSteps {
		it, err := inputFn()
		if err != nil {
			return fmt.Errorf("train input: %w", err)
		}

		batches := 0
		for e.globalStep < maxSteps {
			if err := ctx.Err(); err != nil {
				return err
			}
			batch, ok := it.Next()
			if !ok {
				break
			}
			batches++

			spec, err := e.modelFn.Call(FromBatch(batch), Train, e.globalStep)
			if err != nil {
				return fmt.Errorf("train step %d: %w", e.globalStep, err)
			}
			if spec.TrainOp == nil {
				return fmt.Errorf("train step %d: model fn returned no train op", e.globalStep)
			}
			if err := spec.TrainOp(); err != nil {
				return fmt.Errorf("train step %d: %w", e.globalStep, err)
			}
			e.globalStep++
			lastLoss = spec.Loss

			if e.globalStep%e.config.LogEvery == 0 {
				log.Printf("estimator: step=%d loss=%.6f lr=%.6g%s",
					e.globalStep, spec.Loss, e.modelFn.Optimizer().GetLR(), formatMetrics(spec.Metrics))
			}
			if e.config.ModelDir != "" && e.globalStep%e.config.CheckpointEvery == 0 {
				if err := e.saveCheckpoint(spec.Loss); err != nil {
					return err
				}
			}
		}

		if batches == 0 {
			return errors.New("train: input function produced an empty pass")
		}
	}

	if e.config.ModelDir != "" {
		if err := e.saveCheckpoint(lastLoss); err != nil {
			return err
		}
	}
	log.Printf("estimator: training finished at step %d", e.globalStep)
	return nil
}

// Evaluate runs one pass over the input and returns the aggregated
// metrics, always including "loss". Restores the latest checkpoint
// first when ModelDir has one.
func (e *Estimator[B]) Evaluate(ctx context.Context, inputFn InputFn) (map[string]float32, error) {
	if err := e.restoreIfAvailable(); err != nil {
		return nil, err
	}

	it, err := inputFn()
	if err != nil {
		return nil, fmt.Errorf("eval input: %w", err)
	}

	means := make(map[string]*Mean)
	lossMean := &Mean{}
	batches := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch, ok := it.Next()
		if !ok {
			break
		}
		batches++

		spec, err := e.modelFn.Call(FromBatch(batch), Eval, e.globalStep)
		if err != nil {
			return nil, fmt.Errorf("eval batch %d: %w", batches, err)
		}

		lossMean.Update(spec.Loss, spec.BatchSize)
		for name, value := range spec.Metrics {
			m, exists := means[name]
			if !exists {
				m = &Mean{}
				means[name] = m
			}
			m.Update(value, spec.BatchSize)
		}
	}

	if batches == 0 {
		return nil, errors.New("evaluate: empty dataset")
	}

	results := map[string]float32{MetricLoss: lossMean.Result()}
	for name, m := range means {
		results[name] = m.Result()
	}
	log.Printf("estimator: eval step=%d%s", e.globalStep, formatMetrics(results))
	return results, nil
}

// Predict runs one pass over the input and returns one prediction map
// per example. Restores the latest checkpoint first when ModelDir has
// one.
func (e *Estimator[B]) Predict(ctx context.Context, inputFn InputFn) ([]map[string]any, error) {
	if err := e.restoreIfAvailable(); err != nil {
		return nil, err
	}

	it, err := inputFn()
	if err != nil {
		return nil, fmt.Errorf("predict input: %w", err)
	}

	var out []map[string]any
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch, ok := it.Next()
		if !ok {
			break
		}

		spec, err := e.modelFn.Call(FromBatch(batch), Predict, e.globalStep)
		if err != nil {
			return nil, fmt.Errorf("predict batch: %w", err)
		}

		for i := 0; i < spec.BatchSize; i++ {
			example := make(map[string]any, len(spec.Predictions))
			for key, value := range spec.Predictions {
				v, err := sliceExample(value, i)
				if err != nil {
					return nil, fmt.Errorf("predict output %q: %w", key, err)
				}
				example[key] = v
			}
			out = append(out, example)
		}
	}
	return out, nil
}

// Restore loads the latest checkpoint from ModelDir into the model
// function. Returns checkpoint.ErrNoCheckpoint when none exists.
func (e *Estimator[B]) Restore() error {
	path, err := checkpoint.LatestPath(e.config.ModelDir)
	if err != nil {
		return err
	}
	state, err := checkpoint.Load(path)
	if err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}
	if err := e.modelFn.LoadStateDict(state.Model); err != nil {
		return fmt.Errorf("restore %s: %w", path, err)
	}
	if len(state.Optimizer) > 0 {
		if s, ok := e.modelFn.Optimizer().(optimizerState); ok {
			if err := s.LoadStateDict(state.Optimizer); err != nil {
				return fmt.Errorf("restore %s: %w", path, err)
			}
		}
	}
	e.globalStep = state.Step
	e.restored = true
	log.Printf("estimator: restored step %d from %s", state.Step, path)
	return nil
}

// restoreIfAvailable resumes from ModelDir once per estimator;
// a missing checkpoint is not an error.
func (e *Estimator[B]) restoreIfAvailable() error {
	if e.restored || e.config.ModelDir == "" {
		return nil
	}
	err := e.Restore()
	if errors.Is(err, checkpoint.ErrNoCheckpoint) {
		e.restored = true
		return nil
	}
	return err
}

// saveCheckpoint writes the model and optimizer state to ModelDir.
func (e *Estimator[B]) saveCheckpoint(loss float32) error {
	state := &checkpoint.State{
		Step:          e.globalStep,
		Loss:          float64(loss),
		OptimizerType: e.modelFn.OptimizerType().String(),
		Model:         e.modelFn.StateDict(),
	}
	if s, ok := e.modelFn.Optimizer().(optimizerState); ok {
		state.Optimizer = s.StateDict()
	}
	path, err := checkpoint.SaveStep(e.config.ModelDir, state)
	if err != nil {
		return fmt.Errorf("checkpoint at step %d: %w", e.globalStep, err)
	}
	log.Printf("estimator: saved checkpoint %s", path)
	return nil
}

// sliceExample extracts example i from a batch-level prediction value.
func sliceExample(value any, i int) (any, error) {
	switch v := value.(type) {
	case []string:
		return v[i], nil
	case *tensor.RawTensor:
		shape := v.Shape()
		if len(shape) == 1 {
			switch v.DType() {
			case tensor.Int64:
				return v.AsInt64()[i], nil
			case tensor.Float32:
				return v.AsFloat32()[i], nil
			}
		}
		if len(shape) == 2 && v.DType() == tensor.Float32 {
			dim := shape[1]
			row := make([]float32, dim)
			copy(row, v.AsFloat32()[i*dim:(i+1)*dim])
			return row, nil
		}
		return nil, fmt.Errorf("unsupported prediction tensor: %s %v", v.DType(), shape)
	default:
		return nil, fmt.Errorf("unsupported prediction value type %T", value)
	}
}

// formatMetrics renders a metric map as sorted key=value pairs for log
// lines.
func formatMetrics(metrics map[string]float32) string {
	if len(metrics) == 0 {
		return ""
	}
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, " %s=%.6f", name, metrics[name])
	}
	return b.String()
}
