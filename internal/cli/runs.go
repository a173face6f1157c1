package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"vowpipe/internal/runlog"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent calls from the run log",
		Long: `Show recent predict/train calls recorded in the run-log database.

The database comes from --db, or from the config file's "database" key.

Example:
  vowpipe runs --db ./vowpipe.db --limit 50`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the run-log SQLite database")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum rows to show")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	path := opts.Database
	if path == "" {
		cfg, err := loadConfig(opts.RootOptions)
		if err != nil {
			return err
		}
		path = cfg.Database
	}
	if path == "" {
		return NewExitError(ExitCommandError, "no run-log database configured (--db or config database key)")
	}

	l, err := runlog.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening run log", err)
	}
	defer l.Close()

	recs, err := l.Recent(cmd.Context(), opts.Limit)
	if err != nil {
		return WrapExitError(ExitFailure, "querying run log", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	return formatter.Success(recs, func(out io.Writer) {
		w := tabwriter.NewWriter(out, 2, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tKIND\tLINES\tTOTAL\tCLEANUP\tPENDING BEFORE/AFTER\tID")
		for _, r := range recs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%d/%d\t%s\n",
				r.StartedAt.Format(time.RFC3339), r.Kind, r.NumLines,
				r.TotalTime, r.CleanupTime, r.PendingBefore, r.PendingAfter, r.ID)
		}
		w.Flush()
	})
}
