package cli

import (
	"bufio"
	"io"
	"iter"
	"os"

	"vowpipe/internal/config"
	"vowpipe/internal/runlog"
)

// loadConfig resolves the effective configuration: the file named by
// --config, or defaults.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	if opts.Config == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "loading config", err)
	}
	return cfg, nil
}

// openInput opens the positional input file, or stdin when none is given.
func openInput(args []string) (io.ReadCloser, error) {
	if len(args) == 0 {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "opening input", err)
	}
	return f, nil
}

// lineSeq lazily yields input lines. Lines are pulled only as the engine
// asks for them, so item generation overlaps pipe I/O the same way it does
// for library callers.
func lineSeq(r io.Reader) iter.Seq[any] {
	return func(yield func(any) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			if !yield(sc.Text()) {
				return
			}
		}
	}
}

// openRunLog opens the configured run-log database, or nil when none is
// configured.
func openRunLog(cfg *config.Config) (*runlog.Log, error) {
	if cfg.Database == "" {
		return nil, nil
	}
	l, err := runlog.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "opening run log", err)
	}
	return l, nil
}
