package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"os/exec"
	"time"

	"vowpipe/internal/pipe"
	"vowpipe/internal/runlog"
	"vowpipe/internal/vwline"
)

// NonBlocking runs the scoring process over non-blocking pipes.
//
// Nothing here ever blocks the calling goroutine on pipe I/O: writes that
// the OS rejects are buffered and retried, reads that find no data return
// empty-handed, and a caller-supplied timeout bounds each predict call.
// Not safe for concurrent use.
type NonBlocking struct {
	set settings
	cmd *exec.Cmd

	stdin  *pipe.File
	stdout *pipe.File

	// Audit mode talks over plain blocking pipes; only Explain is legal.
	auditIn   io.WriteCloser
	auditOut  *bufio.Reader
	auditOutC io.Closer

	send    *sendBuffer
	recv    *recvBuffer
	pending ledger

	closed bool

	// now is the time source; tests substitute a deterministic clock.
	now func() time.Time
}

// NewNonBlocking spawns the scoring process and wires up its pipes.
// vwArgs are passed through opaquely; "-p" is engine-managed and rejected.
func NewNonBlocking(formatter vwline.Formatter, vwArgs []string, opts ...Option) (*NonBlocking, error) {
	set := defaultSettings(formatter, vwArgs)
	for _, opt := range opts {
		opt(&set)
	}
	if set.writeOnly {
		return nil, errorf(ErrCodeMisuse, "write-only mode is only supported by the blocking engine")
	}

	args, err := buildArgs(set.args, sinkStdout, set.audit)
	if err != nil {
		return nil, err
	}
	set.log.Info("starting engine process",
		"binary", set.binary, "args", args,
		"batch_size", set.batchSize, "max_pending_lines", set.maxPending,
		"audit_mode", set.audit)

	e := &NonBlocking{set: set, now: time.Now}
	cmd := exec.Command(set.binary, args...)

	if set.audit {
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("open stdin pipe: %w", err)
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("open stdout pipe: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start %s: %w", set.binary, err)
		}
		e.cmd = cmd
		e.auditIn = stdin
		e.auditOut = bufio.NewReader(stdout)
		e.auditOutC = stdout
		return e, nil
	}

	inR, inW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("open input pipe: %w", err)
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		inR.Close()
		inW.Close()
		return nil, fmt.Errorf("open output pipe: %w", err)
	}
	cmd.Stdin = inR
	cmd.Stdout = outW
	if err := cmd.Start(); err != nil {
		inR.Close()
		inW.Close()
		outR.Close()
		outW.Close()
		return nil, fmt.Errorf("start %s: %w", set.binary, err)
	}
	// The child holds its own copies of these ends now.
	inR.Close()
	outW.Close()

	stdin, err := pipe.NewNonBlocking(inW)
	if err != nil {
		inW.Close()
		outR.Close()
		return nil, err
	}
	if set.pipeBuffer > 0 {
		if err := stdin.SetBufferSize(set.pipeBuffer); err != nil {
			stdin.Close()
			outR.Close()
			return nil, err
		}
	}
	stdout, err := pipe.NewNonBlocking(outR)
	if err != nil {
		stdin.Close()
		outR.Close()
		return nil, err
	}

	e.cmd = cmd
	e.stdin = stdin
	e.stdout = stdout
	e.send = &sendBuffer{w: stdin, ledger: &e.pending}
	e.recv = &recvBuffer{r: stdout, ledger: &e.pending}
	return e, nil
}

// Pending reports how many submitted lines still await their result.
func (e *NonBlocking) Pending() int {
	return e.pending.count()
}

// Cleanup resolves lines left pending by earlier calls, bounded by timeout
// (zero means unbounded). Predict runs this automatically before new work;
// exposing it lets callers pay the cost at a moment of their choosing.
func (e *NonBlocking) Cleanup(timeout time.Duration) error {
	if e.set.audit {
		return ErrAuditOnly
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = e.now().Add(timeout)
	}
	return e.cleanup(deadline)
}

func (e *NonBlocking) cleanup(deadline time.Time) error {
	for e.pending.count() > 0 && (deadline.IsZero() || e.now().Before(deadline)) {
		if _, err := e.send.send(nil); err != nil {
			return err
		}
		if deadline.IsZero() || e.now().Before(deadline) {
			// Results of an abandoned call; drained and dropped.
			if _, _, err := e.recv.drain(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Predict lazily scores items against the common features, yielding at
// most one result per item, in item order, as pipe data becomes available.
//
// The sequence is single-pass. The caller may stop consuming at any point;
// any in-flight lines are then resolved by the next call's cleanup phase.
// With WithTimeout, an elapsed deadline silently truncates the sequence -
// a short sequence means "some items unresolved", never failure. A yielded
// non-nil error is fatal and ends the sequence.
func (e *NonBlocking) Predict(common any, items iter.Seq[any], opts ...CallOption) iter.Seq2[float64, error] {
	co := applyCallOptions(opts)
	return func(yield func(float64, error) bool) {
		if e.set.audit {
			yield(0, ErrAuditOnly)
			return
		}

		totalT0 := e.now()
		var deadline, writeDeadline time.Time
		if co.timeout > 0 {
			deadline = totalT0.Add(co.timeout)
			writeDeadline = deadline.Add(-e.set.writeMargin)
		}

		var (
			cleanupTime   time.Duration
			prepareTime   time.Duration
			numLines      int
			pendingBefore = e.pending.count()
			pendingAfter  int
		)
		if e.set.runLog != nil {
			defer func() {
				rec := runlog.Record{
					Kind:          "predict",
					StartedAt:     totalT0,
					TotalTime:     e.now().Sub(totalT0),
					CleanupTime:   cleanupTime,
					PrepareTime:   prepareTime,
					NumLines:      numLines,
					PendingBefore: pendingBefore,
					PendingAfter:  pendingAfter,
				}
				if _, err := e.set.runLog.Insert(context.Background(), rec); err != nil {
					e.set.log.Warn("failed to record run", "error", err)
				}
			}()
		}
		if co.metrics != nil {
			defer func() {
				co.metrics.CleanupTime = cleanupTime
				co.metrics.BeforeCleanupPendingLines = pendingBefore
				co.metrics.AfterCleanupPendingLines = pendingAfter
				co.metrics.PrepareTime = prepareTime
				co.metrics.TotalTime = e.now().Sub(totalT0)
				co.metrics.NumLines = numLines
			}()
		}
		dm := co.detailed
		if dm != nil {
			*dm = DetailedMetrics{}
		}

		// Leftovers of a prior call must resolve first, or the two byte
		// streams would interleave across calls and desynchronize the
		// ledger.
		t0 := e.now()
		if err := e.cleanup(deadline); err != nil {
			yield(0, err)
			return
		}
		cleanupTime = e.now().Sub(t0)
		pendingAfter = e.pending.count()

		commonPart := e.set.formatter.FormatCommon(common)

		next, stop := iter.Pull(items)
		defer stop()

		batch := make([]string, 0, e.set.batchSize)
		exhausted := false
		prepareTime = e.now().Sub(totalT0)

		for deadline.IsZero() || e.now().Before(deadline) {
			// Fill the batch, bounded by the pipeline depth cap and the
			// write-deadline.
			t0 = e.now()
			if !exhausted && (writeDeadline.IsZero() || e.now().Before(writeDeadline)) {
				limit := min(e.set.batchSize, e.set.maxPending-e.pending.count())
				if limit >= 0 {
					for {
						item, ok := next()
						if !ok {
							exhausted = true
							break
						}
						itemPart := e.set.formatter.FormatItem(common, item)
						batch = append(batch, vwline.Compose(commonPart, itemPart))
						if len(batch) >= limit {
							break
						}
						if !writeDeadline.IsZero() && e.now().After(writeDeadline) {
							break
						}
					}
				}
			}
			if dm != nil {
				now := e.now()
				dm.GeneratingLinesTime = append(dm.GeneratingLinesTime, DurationSample{now, now.Sub(t0)})
			}

			// Write: required even with an empty batch so a stale
			// remainder keeps flushing.
			t0 = e.now()
			if deadline.IsZero() || e.now().Before(deadline) {
				if len(batch) > 0 || e.send.hasBacklog() {
					n, err := e.send.send(batch)
					if err != nil {
						yield(0, err)
						return
					}
					batch = batch[:0]
					if dm != nil {
						dm.SendingBytes = append(dm.SendingBytes, CountSample{e.now(), n})
					}
				}
			}
			if dm != nil {
				now := e.now()
				dm.SendingLinesTime = append(dm.SendingLinesTime, DurationSample{now, now.Sub(t0)})
			}

			// Read: every complete score is yielded immediately.
			t0 = e.now()
			if (deadline.IsZero() || e.now().Before(deadline)) && e.pending.count() > 0 {
				scores, n, err := e.recv.drain()
				if err != nil {
					yield(0, err)
					return
				}
				if dm != nil {
					dm.ReceivingBytes = append(dm.ReceivingBytes, CountSample{e.now(), n})
				}
				for _, v := range scores {
					if !yield(v, nil) {
						return
					}
					numLines++
				}
			}
			if dm != nil {
				now := e.now()
				dm.ReceivingLinesTime = append(dm.ReceivingLinesTime, DurationSample{now, now.Sub(t0)})
				dm.PendingLines = append(dm.PendingLines, CountSample{now, e.pending.count()})
			}

			// No pending work and no more ever coming: done.
			if e.pending.count() == 0 {
				if exhausted && len(batch) == 0 && !e.send.hasBacklog() {
					break
				}
				if !writeDeadline.IsZero() && e.now().After(writeDeadline) {
					break
				}
			}
		}
	}
}

// Train is not supported over non-blocking pipes; use the blocking engine.
func (e *NonBlocking) Train(common any, examples iter.Seq[TrainExample]) error {
	return ErrTrainUnsupported
}

// Explain scores one already-composed line in audit mode and returns the
// raw prediction together with the engine's explanation string. When the
// model uses a link function, pass linkFunction to consume the extra
// linked-score line.
func (e *NonBlocking) Explain(line string, linkFunction bool) (float64, string, error) {
	if !e.set.audit {
		return 0, "", ErrNotAudit
	}
	return explainLine(e.auditIn, e.auditOut, line, linkFunction)
}

// Close shuts the engine down: input stream first, then a full drain of
// the output stream (so the child can never deadlock on a full pipe while
// exiting), then the output stream, then a bounded wait for process exit.
// A non-zero exit code is fatal.
func (e *NonBlocking) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	if e.set.audit {
		if err := e.auditIn.Close(); err != nil {
			return fmt.Errorf("close engine stdin: %w", err)
		}
		_, _ = io.Copy(io.Discard, e.auditOut)
		_ = e.auditOutC.Close()
		return waitExit(e.cmd, e.set.exitWait)
	}

	if err := e.stdin.Close(); err != nil {
		return fmt.Errorf("close engine stdin: %w", err)
	}
	buf := make([]byte, readChunkSize)
	for {
		_, err := e.stdout.Read(buf)
		if errors.Is(err, pipe.ErrNoData) {
			// The child is still flushing; give it a moment.
			time.Sleep(time.Millisecond)
			continue
		}
		if err != nil {
			break
		}
	}
	_ = e.stdout.Close()
	return waitExit(e.cmd, e.set.exitWait)
}
