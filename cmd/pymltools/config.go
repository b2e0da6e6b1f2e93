package main

import (
	"fmt"
	"os"

	"github.com/fengrk/pymltools/internal/backend/cpu"
	"github.com/fengrk/pymltools/internal/estimator"
	"github.com/fengrk/pymltools/internal/nn"
	"github.com/fengrk/pymltools/internal/schedule"
	"gopkg.in/yaml.v3"
)

// Experiment is the YAML description of a training run: the network,
// the head attached to it, and how to optimize it.
//
//	model:
//	  head: triplet
//	  input_dim: 784
//	  hidden: [256, 128]
//	  output_dim: 64
//	  activation: relu
//	  l2_normalize: true
//	  margin: 0.5
//	optimizer:
//	  type: masked_adam
//	  lr: 0.001
//	  schedule:
//	    type: exponential
//	    decay_rate: 0.96
//	    decay_steps: 1000
//	train:
//	  batch_size: 64
//	  max_steps: 10000
//	  shuffle_seed: 42
type Experiment struct {
	Model     ModelConfig     `yaml:"model"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Train     TrainConfig     `yaml:"train"`
}

type ModelConfig struct {
	Head       string `yaml:"head"` // "triplet" or "softmax"
	InputDim   int    `yaml:"input_dim"`
	Hidden     []int  `yaml:"hidden"`
	OutputDim  int    `yaml:"output_dim"`
	Activation string `yaml:"activation"` // relu (default), sigmoid, tanh

	// Triplet head only.
	L2Normalize     bool    `yaml:"l2_normalize"`
	Margin          float32 `yaml:"margin"`
	SquaredDistance bool    `yaml:"squared_distance"`
}

type OptimizerConfig struct {
	Type     estimator.OptimizerType `yaml:"type"`
	LR       float32                 `yaml:"lr"`
	Schedule ScheduleConfig          `yaml:"schedule"`
}

type ScheduleConfig struct {
	Type        string  `yaml:"type"` // constant (default), exponential, cosine
	DecayRate   float32 `yaml:"decay_rate"`
	DecaySteps  int64   `yaml:"decay_steps"`
	Staircase   bool    `yaml:"staircase"`
	WarmupSteps int64   `yaml:"warmup_steps"`
	TotalSteps  int64   `yaml:"total_steps"`
	MinLR       float32 `yaml:"min_lr"`
}

type TrainConfig struct {
	BatchSize       int   `yaml:"batch_size"`
	MaxSteps        int64 `yaml:"max_steps"`
	ShuffleSeed     int64 `yaml:"shuffle_seed"`
	LogEvery        int64 `yaml:"log_every"`
	CheckpointEvery int64 `yaml:"checkpoint_every"`
}

func loadExperiment(path string) (*Experiment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("while reading experiment config: %w", err)
	}

	exp := &Experiment{}
	if err := yaml.Unmarshal(raw, exp); err != nil {
		return nil, fmt.Errorf("while parsing experiment config: %w", err)
	}
	if err := exp.validate(); err != nil {
		return nil, err
	}
	return exp, nil
}

func (e *Experiment) validate() error {
	switch e.Model.Head {
	case "triplet", "softmax":
	case "":
		return fmt.Errorf("model.head is required")
	default:
		return fmt.Errorf("unknown model head %q", e.Model.Head)
	}
	if e.Model.InputDim <= 0 {
		return fmt.Errorf("model.input_dim must be positive, got %d", e.Model.InputDim)
	}
	if e.Model.OutputDim <= 0 {
		return fmt.Errorf("model.output_dim must be positive, got %d", e.Model.OutputDim)
	}
	if e.Optimizer.Type == "" {
		e.Optimizer.Type = estimator.OptimizerAdam
	}
	if e.Optimizer.LR == 0 {
		e.Optimizer.LR = 0.001
	}
	if e.Train.BatchSize <= 0 {
		e.Train.BatchSize = 32
	}
	return nil
}

func (e *Experiment) buildSchedule() (schedule.Schedule, error) {
	cfg := e.Optimizer.Schedule
	switch cfg.Type {
	case "", "constant":
		return schedule.Constant{Rate: e.Optimizer.LR}, nil
	case "exponential":
		if cfg.DecaySteps <= 0 {
			return nil, fmt.Errorf("exponential schedule needs decay_steps")
		}
		return schedule.ExponentialDecay{
			Base:       e.Optimizer.LR,
			Rate:       cfg.DecayRate,
			DecaySteps: cfg.DecaySteps,
			Staircase:  cfg.Staircase,
		}, nil
	case "cosine":
		if cfg.TotalSteps <= 0 {
			return nil, fmt.Errorf("cosine schedule needs total_steps")
		}
		return schedule.CosineAnnealing{
			Base:        e.Optimizer.LR,
			Min:         cfg.MinLR,
			WarmupSteps: cfg.WarmupSteps,
			TotalSteps:  cfg.TotalSteps,
		}, nil
	default:
		return nil, fmt.Errorf("unknown schedule type %q", cfg.Type)
	}
}

func (e *Experiment) buildNetwork(backend *cpu.CPUBackend) (estimator.Network[*cpu.CPUBackend], error) {
	activation := func() nn.Module[*cpu.CPUBackend] {
		switch e.Model.Activation {
		case "sigmoid":
			return nn.NewSigmoid[*cpu.CPUBackend]()
		case "tanh":
			return nn.NewTanh[*cpu.CPUBackend]()
		default:
			return nn.NewReLU[*cpu.CPUBackend]()
		}
	}
	switch e.Model.Activation {
	case "", "relu", "sigmoid", "tanh":
	default:
		return nil, fmt.Errorf("unknown activation %q", e.Model.Activation)
	}

	seq := nn.NewSequential[*cpu.CPUBackend]()
	in := e.Model.InputDim
	for _, width := range e.Model.Hidden {
		seq.Add(nn.NewLinear(in, width, backend))
		seq.Add(activation())
		in = width
	}
	seq.Add(nn.NewLinear(in, e.Model.OutputDim, backend))
	return estimator.WrapModule[*cpu.CPUBackend](seq), nil
}

// buildModelFn assembles the full model function described by the
// experiment: network, head, optimizer and schedule.
func (e *Experiment) buildModelFn(backend *cpu.CPUBackend) (estimator.ModelFn[*cpu.CPUBackend], error) {
	network, err := e.buildNetwork(backend)
	if err != nil {
		return nil, err
	}
	sched, err := e.buildSchedule()
	if err != nil {
		return nil, err
	}

	opts := []estimator.Option{
		estimator.WithOptimizer(e.Optimizer.Type),
		estimator.WithSchedule(sched),
	}

	switch e.Model.Head {
	case "triplet":
		if e.Model.Margin > 0 {
			opts = append(opts, estimator.WithMargin(e.Model.Margin))
		}
		if e.Model.SquaredDistance {
			opts = append(opts, estimator.WithSquaredDistance())
		}
		if e.Model.L2Normalize {
			opts = append(opts, estimator.WithL2Normalize(1))
		}
		return estimator.NewTripletModelFn(backend, network, opts...)
	case "softmax":
		return estimator.NewSoftmaxModelFn(backend, network, opts...)
	default:
		return nil, fmt.Errorf("unknown model head %q", e.Model.Head)
	}
}

func (e *Experiment) runConfig(modelDir string) estimator.RunConfig {
	return estimator.RunConfig{
		ModelDir:        modelDir,
		LogEvery:        e.Train.LogEvery,
		CheckpointEvery: e.Train.CheckpointEvery,
	}
}
