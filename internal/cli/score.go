package cli

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"vowpipe/internal/engine"
	"vowpipe/internal/vwline"
)

// ScoreOptions holds flags for the score command.
type ScoreOptions struct {
	*RootOptions
	Common  string
	Timeout time.Duration
}

// NewScoreCommand creates the score command.
func NewScoreCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "score [items-file]",
		Short: "Score item lines through the non-blocking engine",
		Long: `Score item lines through the non-blocking prediction engine.

Each input line is one item's part of a VW line; the --common flag supplies
the part shared by every item. Scores print one per line, in input order.
With --timeout, the output may be shorter than the input: unresolved items
are truncated, not failed.

Example:
  vowpipe score --config vw.yaml --common '|u user42' items.txt
  cat items.txt | vowpipe score --timeout 10ms`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Common, "common", "", "common part of every line (must start with '|')")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "overall deadline for the call (0 = none)")

	return cmd
}

func runScore(opts *ScoreOptions, args []string, cmd *cobra.Command) error {
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
	eng, err := engine.NewNonBlocking(vwline.Passthrough{}, cfg.Args, engOpts...)
	if err != nil {
		return WrapExitError(ExitFailure, "starting engine", err)
	}

	var callOpts []engine.CallOption
	if opts.Timeout > 0 {
		callOpts = append(callOpts, engine.WithTimeout(opts.Timeout))
	}
	var metrics engine.CallMetrics
	callOpts = append(callOpts, engine.WithMetrics(&metrics))

	out := cmd.OutOrStdout()
	var scores []float64
	for score, perr := range eng.Predict(opts.Common, lineSeq(in), callOpts...) {
		if perr != nil {
			_ = eng.Close()
			return WrapExitError(ExitFailure, "predicting", perr)
		}
		if opts.Format == "json" {
			scores = append(scores, score)
			continue
		}
		fmt.Fprintln(out, strconv.FormatFloat(score, 'g', -1, 64))
	}
	slog.Debug("predict call finished",
		"num_lines", metrics.NumLines,
		"total", metrics.TotalTime,
		"cleanup", metrics.CleanupTime,
		"prepare", metrics.PrepareTime)

	if err := eng.Close(); err != nil {
		return WrapExitError(ExitFailure, "closing engine", err)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: out, Verbose: opts.Verbose}
		return formatter.Success(map[string]any{"scores": scores, "num_lines": metrics.NumLines}, nil)
	}
	return nil
}
