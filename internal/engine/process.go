package engine

import (
	"fmt"
	"os/exec"
	"slices"
	"time"
)

// Prediction sinks enforced by the engine. The caller's argument list is
// passed through opaquely except for "-p", which the engine owns: results
// must stream where the client expects them.
const (
	sinkStdout = "/dev/stdout"
	sinkNull   = "/dev/null"
)

// buildArgs assembles the child's argument list from the caller-supplied
// args. Audit mode drops "-t" and ensures "-a".
func buildArgs(callerArgs []string, sink string, audit bool) ([]string, error) {
	args := []string{"-p", sink}
	for _, a := range callerArgs {
		if a == "-p" {
			return nil, errorf(ErrCodeMisuse, "the -p argument is managed by the engine and must not be supplied")
		}
		if audit && a == "-t" {
			continue
		}
		args = append(args, a)
	}
	if audit && !slices.Contains(callerArgs, "-a") {
		args = append(args, "-a")
	}
	return args, nil
}

// waitExit waits for the child to exit, bounded by d. The child is
// expected to exit on its own once its stdin closes; a child that
// overstays is killed. A non-zero exit code is fatal.
func waitExit(cmd *exec.Cmd, d time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-time.After(d):
		_ = cmd.Process.Kill()
		err = fmt.Errorf("no exit within %v: %w", d, <-done)
	}
	if err != nil {
		return wrapError(ErrCodeProcessExit, err, "engine process did not exit cleanly")
	}
	return nil
}
