package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"vowpipe/internal/config"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a config file against the schema",
		Long: `Validate a YAML config file against the embedded CUE schema without
starting an engine.

Example:
  vowpipe validate vw.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	cfg, err := config.Load(path)
	if err != nil {
		_ = formatter.Error("invalid_config", err.Error(), nil)
		return NewExitError(ExitFailure, "config validation failed")
	}
	return formatter.Success(cfg, func(w io.Writer) {
		fmt.Fprintf(w, "%s: configuration valid\n", path)
	})
}
