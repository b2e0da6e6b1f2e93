// Command pymltools trains and runs embedding and classification
// models described by a YAML experiment file.
//
// To train: `pymltools train --config=experiment.yaml --data=train.npz --model-dir=out/`
//
// To evaluate: `pymltools evaluate --config=experiment.yaml --data=test.npz --model-dir=out/`
//
// To predict: `pymltools predict --config=experiment.yaml --data=images.npz --model-dir=out/`
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(&TrainCommand{}, "")
	subcommands.Register(&EvaluateCommand{}, "")
	subcommands.Register(&PredictCommand{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}
