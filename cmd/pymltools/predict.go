package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/fengrk/pymltools/internal/backend/cpu"
	"github.com/fengrk/pymltools/internal/dataset"
	"github.com/fengrk/pymltools/internal/estimator"
	"github.com/google/subcommands"
)

type PredictCommand struct {
	configFile string
	dataFile   string
	modelDir   string
	outputFile string
	batchSize  int
}

var _ subcommands.Command = (*PredictCommand)(nil)

func (*PredictCommand) Name() string {
	return "predict"
}

func (*PredictCommand) Synopsis() string {
	return "Run inference with the latest checkpoint and write predictions as TSV"
}

func (*PredictCommand) Usage() string {
	return ``
}

func (c *PredictCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configFile, "config", "experiment.yaml", "Path to the YAML experiment config")
	f.StringVar(&c.dataFile, "data", "", "Path to the input data npz archive")
	f.StringVar(&c.modelDir, "model-dir", "", "Directory holding the checkpoint to load")
	f.StringVar(&c.outputFile, "output", "", "Write predictions here instead of stdout")
	f.IntVar(&c.batchSize, "batch-size", 256, "Inference batch size")
}

func (c *PredictCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *PredictCommand) executeErr(ctx context.Context) error {
	exp, err := loadExperiment(c.configFile)
	if err != nil {
		return err
	}
	if c.dataFile == "" {
		return fmt.Errorf("--data is required")
	}

	ds, err := dataset.FromNPZ(c.dataFile)
	if err != nil {
		return fmt.Errorf("while loading input data: %w", err)
	}

	backend := cpu.New()
	modelFn, err := exp.buildModelFn(backend)
	if err != nil {
		return err
	}

	est := estimator.New[*cpu.CPUBackend](modelFn, exp.runConfig(c.modelDir))
	predictions, err := est.Predict(ctx, func() (*dataset.Iterator, error) {
		return ds.Batches(dataset.BatchConfig{BatchSize: c.batchSize}), nil
	})
	if err != nil {
		return err
	}

	out := os.Stdout
	if c.outputFile != "" {
		f, err := os.Create(c.outputFile)
		if err != nil {
			return fmt.Errorf("while creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	w := bufio.NewWriter(out)
	defer w.Flush()
	for _, pred := range predictions {
		if err := writePrediction(w, pred); err != nil {
			return err
		}
	}
	return nil
}

// writePrediction emits one TSV line per example: the filename followed
// by the class and probabilities for a softmax head, or the embedding
// values for a triplet head.
func writePrediction(w *bufio.Writer, pred map[string]any) error {
	if name, ok := pred[estimator.PredictionFilename].(string); ok {
		w.WriteString(name)
	}
	if class, ok := pred[estimator.PredictionClass].(int64); ok {
		w.WriteByte('\t')
		w.WriteString(strconv.FormatInt(class, 10))
	}
	for _, key := range []string{estimator.PredictionProb, estimator.PredictionEmbedding} {
		values, ok := pred[key].([]float32)
		if !ok {
			continue
		}
		for _, v := range values {
			w.WriteByte('\t')
			w.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
		}
	}
	if err := w.WriteByte('\n'); err != nil {
		return fmt.Errorf("while writing predictions: %w", err)
	}
	return nil
}
