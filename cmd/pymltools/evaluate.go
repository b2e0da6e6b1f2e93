package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"

	"github.com/fengrk/pymltools/internal/backend/cpu"
	"github.com/fengrk/pymltools/internal/dataset"
	"github.com/fengrk/pymltools/internal/estimator"
	"github.com/google/subcommands"
)

type EvaluateCommand struct {
	configFile string
	dataFile   string
	modelDir   string
	batchSize  int
}

var _ subcommands.Command = (*EvaluateCommand)(nil)

func (*EvaluateCommand) Name() string {
	return "evaluate"
}

func (*EvaluateCommand) Synopsis() string {
	return "Evaluate the latest checkpoint on a labeled dataset"
}

func (*EvaluateCommand) Usage() string {
	return ``
}

func (c *EvaluateCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configFile, "config", "experiment.yaml", "Path to the YAML experiment config")
	f.StringVar(&c.dataFile, "data", "", "Path to the evaluation data npz archive")
	f.StringVar(&c.modelDir, "model-dir", "", "Directory holding the checkpoint to evaluate")
	f.IntVar(&c.batchSize, "batch-size", 0, "Evaluation batch size (defaults to train.batch_size)")
}

func (c *EvaluateCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *EvaluateCommand) executeErr(ctx context.Context) error {
	exp, err := loadExperiment(c.configFile)
	if err != nil {
		return err
	}
	if c.dataFile == "" {
		return fmt.Errorf("--data is required")
	}

	ds, err := dataset.FromNPZ(c.dataFile)
	if err != nil {
		return fmt.Errorf("while loading evaluation data: %w", err)
	}

	backend := cpu.New()
	modelFn, err := exp.buildModelFn(backend)
	if err != nil {
		return err
	}

	batchSize := c.batchSize
	if batchSize <= 0 {
		batchSize = exp.Train.BatchSize
	}

	est := estimator.New[*cpu.CPUBackend](modelFn, exp.runConfig(c.modelDir))
	metrics, err := est.Evaluate(ctx, func() (*dataset.Iterator, error) {
		return ds.Batches(dataset.BatchConfig{BatchSize: batchSize}), nil
	})
	if err != nil {
		return err
	}

	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%s\t%.6f\n", name, metrics[name])
	}
	return nil
}
