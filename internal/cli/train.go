package cli

import (
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"vowpipe/internal/engine"
	"vowpipe/internal/vwline"
)

// TrainOptions holds flags for the train command.
type TrainOptions struct {
	*RootOptions
	Common string
}

// NewTrainCommand creates the train command.
func NewTrainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TrainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "train [examples-file]",
		Short: "Train through the blocking engine",
		Long: `Train the engine on labeled examples through the blocking engine.

Each input line is "label [weight] |item features...": a label, an optional
weight, then the item's part of the VW line starting at the first '|'.
Set write_only in the config to skip reading acknowledgements back, which
speeds training up considerably.

Example:
  vowpipe train --config vw.yaml --common '|u user42' examples.txt`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Common, "common", "", "common part of every line (must start with '|')")

	return cmd
}

func runTrain(opts *TrainOptions, args []string) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if cfg.AuditMode {
		return NewExitError(ExitCommandError, "config enables audit_mode; use the explain command")
	}

	in, err := openInput(args)
	if err != nil {
		return err
	}
	defer in.Close()

	rl, err := openRunLog(cfg)
	if err != nil {
		return err
	}
	if rl != nil {
		defer rl.Close()
	}

	engOpts := cfg.Options()
	if rl != nil {
		engOpts = append(engOpts, engine.WithRunLog(rl))
	}
	eng, err := engine.NewBlocking(vwline.Passthrough{}, cfg.Args, engOpts...)
	if err != nil {
		return WrapExitError(ExitFailure, "starting engine", err)
	}

	var parseErr error
	examples := func(yield func(engine.TrainExample) bool) {
		for line := range lineSeq(in) {
			ex, err := parseTrainLine(line.(string))
			if err != nil {
				parseErr = err
				return
			}
			if !yield(ex) {
				return
			}
		}
	}
	if err := eng.Train(opts.Common, iter.Seq[engine.TrainExample](examples)); err != nil {
		_ = eng.Close()
		return WrapExitError(ExitFailure, "training", err)
	}
	if parseErr != nil {
		_ = eng.Close()
		return WrapExitError(ExitCommandError, "parsing examples", parseErr)
	}
	if err := eng.Close(); err != nil {
		return WrapExitError(ExitFailure, "closing engine", err)
	}
	return nil
}

// parseTrainLine splits "label [weight] |item..." into a TrainExample.
func parseTrainLine(line string) (engine.TrainExample, error) {
	idx := strings.IndexByte(line, '|')
	if idx < 0 {
		return engine.TrainExample{}, fmt.Errorf("line %q has no '|' feature separator", line)
	}
	head := strings.Fields(line[:idx])
	if len(head) == 0 || len(head) > 2 {
		return engine.TrainExample{}, fmt.Errorf("line %q: want \"label [weight]\" before features", line)
	}
	label, err := strconv.ParseFloat(head[0], 64)
	if err != nil {
		return engine.TrainExample{}, fmt.Errorf("line %q: label: %w", line, err)
	}
	ex := engine.TrainExample{Item: line[idx:], Label: label}
	if len(head) == 2 {
		w, err := strconv.ParseFloat(head[1], 64)
		if err != nil {
			return engine.TrainExample{}, fmt.Errorf("line %q: weight: %w", line, err)
		}
		ex.Weight = &w
	}
	return ex, nil
}
