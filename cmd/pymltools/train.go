package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/pprof"

	"github.com/fengrk/pymltools/internal/backend/cpu"
	"github.com/fengrk/pymltools/internal/dataset"
	"github.com/fengrk/pymltools/internal/estimator"
	"github.com/google/subcommands"
)

type TrainCommand struct {
	configFile string
	dataFile   string
	modelDir   string
	maxSteps   int64

	cpuProfileFile string
}

var _ subcommands.Command = (*TrainCommand)(nil)

func (*TrainCommand) Name() string {
	return "train"
}

func (*TrainCommand) Synopsis() string {
	return "Train the model described by the experiment config"
}

func (*TrainCommand) Usage() string {
	return ``
}

func (c *TrainCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configFile, "config", "experiment.yaml", "Path to the YAML experiment config")
	f.StringVar(&c.dataFile, "data", "", "Path to the training data npz archive")
	f.StringVar(&c.modelDir, "model-dir", "", "Directory for checkpoints; training resumes from the latest one")
	f.Int64Var(&c.maxSteps, "max-steps", 0, "Stop at this global step (overrides train.max_steps)")

	f.StringVar(&c.cpuProfileFile, "cpu-profile", "", "Write a CPU profile")
}

func (c *TrainCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *TrainCommand) executeErr(ctx context.Context) error {
	if c.cpuProfileFile != "" {
		f, err := os.Create(c.cpuProfileFile)
		if err != nil {
			return fmt.Errorf("while creating CPU profile file: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("while starting CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	exp, err := loadExperiment(c.configFile)
	if err != nil {
		return err
	}
	maxSteps := exp.Train.MaxSteps
	if c.maxSteps > 0 {
		maxSteps = c.maxSteps
	}
	if maxSteps <= 0 {
		return fmt.Errorf("no step limit: set train.max_steps or --max-steps")
	}
	if c.dataFile == "" {
		return fmt.Errorf("--data is required")
	}

	ds, err := dataset.FromNPZ(c.dataFile)
	if err != nil {
		return fmt.Errorf("while loading training data: %w", err)
	}
	if ds.Dim != exp.Model.InputDim {
		return fmt.Errorf("data has dimension %d but model.input_dim is %d", ds.Dim, exp.Model.InputDim)
	}
	log.Printf("loaded %d training examples of dimension %d", ds.Len(), ds.Dim)

	backend := cpu.New()
	modelFn, err := exp.buildModelFn(backend)
	if err != nil {
		return err
	}

	est := estimator.New[*cpu.CPUBackend](modelFn, exp.runConfig(c.modelDir))

	inputFn := ds.Passes(dataset.BatchConfig{
		BatchSize: exp.Train.BatchSize,
		Shuffle:   true,
		DropTail:  true,
		Seed:      exp.Train.ShuffleSeed,
	})

	return est.Train(ctx, inputFn, maxSteps)
}
