package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"vowpipe/internal/engine"
	"vowpipe/internal/vwline"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	LinkFunction bool
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain [vw-line]",
		Short: "Score one line in audit mode and explain the prediction",
		Long: `Score one already-composed VW line in audit mode and render the engine's
explanation: every feature's learned weight, its potential (value times
weight) and its relative share of the prediction, most influential first.

The engine is launched in audit mode regardless of the config. The line
comes from the argument, or from the first line of stdin.

Example:
  vowpipe explain --config vw.yaml '|u user42 |i item7'`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.LinkFunction, "link-function", false, "model uses a link function (consumes the extra linked-score line)")

	return cmd
}

func runExplain(opts *ExplainOptions, args []string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}

	line := ""
	if len(args) == 1 {
		line = args[0]
	} else {
		sc := bufio.NewScanner(os.Stdin)
		if !sc.Scan() {
			return NewExitError(ExitCommandError, "no input line on stdin")
		}
		line = sc.Text()
	}
	if strings.TrimSpace(line) == "" {
		return NewExitError(ExitCommandError, "empty input line")
	}

	engOpts := append(cfg.Options(), engine.WithAuditMode())
	eng, err := engine.NewNonBlocking(vwline.Passthrough{}, cfg.Args, engOpts...)
	if err != nil {
		return WrapExitError(ExitFailure, "starting engine", err)
	}

	score, explanation, err := eng.Explain(line, opts.LinkFunction)
	if err != nil {
		_ = eng.Close()
		return WrapExitError(ExitFailure, "explaining", err)
	}
	contribs, err := vwline.ParseExplanation(explanation)
	if err != nil {
		_ = eng.Close()
		return WrapExitError(ExitFailure, "parsing explanation", err)
	}
	if err := eng.Close(); err != nil {
		return WrapExitError(ExitFailure, "closing engine", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	return formatter.Success(
		map[string]any{"score": score, "features": contribs},
		func(w io.Writer) {
			fmt.Fprintf(w, "score: %g\n\n", score)
			io.WriteString(w, vwline.RenderExplanation(contribs))
		},
	)
}
