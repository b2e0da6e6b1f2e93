package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fengrk/pymltools/internal/backend/cpu"
	"github.com/fengrk/pymltools/internal/estimator"
	"github.com/fengrk/pymltools/internal/schedule"
	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadExperiment(t *testing.T) {
	path := writeConfig(t, `
model:
  head: triplet
  input_dim: 784
  hidden: [256, 128]
  output_dim: 64
  activation: relu
  l2_normalize: true
  margin: 0.3
optimizer:
  type: masked_adam
  lr: 0.01
  schedule:
    type: exponential
    decay_rate: 0.96
    decay_steps: 1000
    staircase: true
train:
  batch_size: 64
  max_steps: 5000
  shuffle_seed: 7
`)

	got, err := loadExperiment(path)
	if err != nil {
		t.Fatal(err)
	}

	want := &Experiment{
		Model: ModelConfig{
			Head:        "triplet",
			InputDim:    784,
			Hidden:      []int{256, 128},
			OutputDim:   64,
			Activation:  "relu",
			L2Normalize: true,
			Margin:      0.3,
		},
		Optimizer: OptimizerConfig{
			Type: estimator.OptimizerMaskedAdam,
			LR:   0.01,
			Schedule: ScheduleConfig{
				Type:       "exponential",
				DecayRate:  0.96,
				DecaySteps: 1000,
				Staircase:  true,
			},
		},
		Train: TrainConfig{
			BatchSize:   64,
			MaxSteps:    5000,
			ShuffleSeed: 7,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("experiment mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadExperiment_Defaults(t *testing.T) {
	path := writeConfig(t, `
model:
  head: softmax
  input_dim: 10
  output_dim: 2
`)

	exp, err := loadExperiment(path)
	if err != nil {
		t.Fatal(err)
	}
	if exp.Optimizer.Type != estimator.OptimizerAdam {
		t.Errorf("default optimizer = %q, want adam", exp.Optimizer.Type)
	}
	if exp.Optimizer.LR != 0.001 {
		t.Errorf("default lr = %v, want 0.001", exp.Optimizer.LR)
	}
	if exp.Train.BatchSize != 32 {
		t.Errorf("default batch size = %d, want 32", exp.Train.BatchSize)
	}
}

func TestLoadExperiment_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing head":   "model:\n  input_dim: 4\n  output_dim: 2\n",
		"unknown head":   "model:\n  head: gan\n  input_dim: 4\n  output_dim: 2\n",
		"bad input dim":  "model:\n  head: softmax\n  input_dim: 0\n  output_dim: 2\n",
		"bad optimizer":  "model:\n  head: softmax\n  input_dim: 4\n  output_dim: 2\noptimizer:\n  type: rmsprop\n",
		"malformed yaml": "model: [",
	}
	for name, body := range cases {
		if _, err := loadExperiment(writeConfig(t, body)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestBuildSchedule(t *testing.T) {
	exp := &Experiment{Optimizer: OptimizerConfig{LR: 0.1}}

	s, err := exp.buildSchedule()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(schedule.Constant); !ok {
		t.Errorf("default schedule = %T, want Constant", s)
	}

	exp.Optimizer.Schedule = ScheduleConfig{Type: "cosine", TotalSteps: 100, WarmupSteps: 10}
	s, err = exp.buildSchedule()
	if err != nil {
		t.Fatal(err)
	}
	cos, ok := s.(schedule.CosineAnnealing)
	if !ok {
		t.Fatalf("schedule = %T, want CosineAnnealing", s)
	}
	if cos.Base != 0.1 || cos.TotalSteps != 100 {
		t.Errorf("cosine schedule = %+v", cos)
	}

	exp.Optimizer.Schedule = ScheduleConfig{Type: "exponential"}
	if _, err := exp.buildSchedule(); err == nil {
		t.Error("exponential without decay_steps should error")
	}
}

func TestBuildModelFn(t *testing.T) {
	backend := cpu.New()
	exp := &Experiment{
		Model: ModelConfig{
			Head:      "softmax",
			InputDim:  4,
			Hidden:    []int{8},
			OutputDim: 2,
		},
		Optimizer: OptimizerConfig{Type: estimator.OptimizerSGD, LR: 0.01},
	}

	modelFn, err := exp.buildModelFn(backend)
	if err != nil {
		t.Fatal(err)
	}
	if got := modelFn.OptimizerType(); got != estimator.OptimizerSGD {
		t.Errorf("optimizer type = %q, want sgd", got)
	}

	exp.Model.Activation = "swish"
	if _, err := exp.buildModelFn(backend); err == nil {
		t.Error("unknown activation should error")
	}
}
