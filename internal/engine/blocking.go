package engine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"vowpipe/internal/runlog"
	"vowpipe/internal/vwline"
)

// TrainExample pairs an item's features with its label and an optional
// per-example weight.
type TrainExample struct {
	Item   any
	Label  float64
	Weight *float64 // nil means unweighted
}

// Blocking runs the scoring process over ordinary blocking pipes.
//
// Throughput comes from a one-batch-in-flight pipeline: while batch N is
// being written, batch N-1's results are read back, so the engine computes
// while the client formats. No partial-write or partial-read handling is
// needed; the transport blocks until complete.
//
// A prediction sequence must be consumed fully before the next call on the
// same engine; abandoning it mid-way leaves batches in flight. Not safe
// for concurrent use.
type Blocking struct {
	set settings
	cmd *exec.Cmd

	stdin   io.WriteCloser
	stdout  *bufio.Reader
	stdoutC io.Closer

	// inFlight holds the sizes of sent-but-unread batches, oldest first.
	inFlight []int

	closed bool

	now func() time.Time
}

// NewBlocking spawns the scoring process over blocking pipes. In
// write-only mode predictions stream to /dev/null and nothing has to be
// read back, which speeds up training considerably.
func NewBlocking(formatter vwline.Formatter, vwArgs []string, opts ...Option) (*Blocking, error) {
	set := defaultSettings(formatter, vwArgs)
	for _, opt := range opts {
		opt(&set)
	}
	if set.writeOnly && set.audit {
		return nil, errorf(ErrCodeMisuse, "write-only mode cannot explain; audit needs the output stream")
	}

	sink := sinkStdout
	if set.writeOnly {
		sink = sinkNull
	}
	args, err := buildArgs(set.args, sink, set.audit)
	if err != nil {
		return nil, err
	}
	set.log.Info("starting engine process",
		"binary", set.binary, "args", args,
		"batch_size", set.batchSize,
		"write_only", set.writeOnly, "audit_mode", set.audit)

	b := &Blocking{set: set, now: time.Now}
	cmd := exec.Command(set.binary, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdin pipe: %w", err)
	}
	b.stdin = stdin
	if !set.writeOnly {
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("open stdout pipe: %w", err)
		}
		b.stdout = bufio.NewReader(stdout)
		b.stdoutC = stdout
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", set.binary, err)
	}
	b.cmd = cmd
	return b, nil
}

// Predict lazily scores items against the common features, in item order.
// A timeout stops feeding new items once elapsed; results for batches
// already sent are still read back and yielded.
func (b *Blocking) Predict(common any, items iter.Seq[any], opts ...CallOption) iter.Seq2[float64, error] {
	co := applyCallOptions(opts)
	return func(yield func(float64, error) bool) {
		if b.set.audit {
			yield(0, ErrAuditOnly)
			return
		}
		if b.set.writeOnly {
			yield(0, ErrWriteOnly)
			return
		}

		totalT0 := b.now()
		var deadline time.Time
		if co.timeout > 0 {
			deadline = totalT0.Add(co.timeout)
		}

		var (
			prepareTime time.Duration
			numLines    int
		)
		if b.set.runLog != nil {
			defer func() {
				rec := runlog.Record{
					Kind:        "predict",
					StartedAt:   totalT0,
					TotalTime:   b.now().Sub(totalT0),
					PrepareTime: prepareTime,
					NumLines:    numLines,
				}
				if _, err := b.set.runLog.Insert(context.Background(), rec); err != nil {
					b.set.log.Warn("failed to record run", "error", err)
				}
			}()
		}
		if co.metrics != nil {
			defer func() {
				co.metrics.PrepareTime = prepareTime
				co.metrics.TotalTime = b.now().Sub(totalT0)
				co.metrics.NumLines = numLines
			}()
		}

		commonPart := b.set.formatter.FormatCommon(common)
		prepareTime = b.now().Sub(totalT0)

		batch := make([]string, 0, b.set.batchSize)
		firstPass := true
		for item := range items {
			if !deadline.IsZero() && b.now().After(deadline) {
				break
			}
			itemPart := b.set.formatter.FormatItem(common, item)
			batch = append(batch, vwline.Compose(commonPart, itemPart))
			if len(batch) >= b.set.batchSize {
				if err := b.sendBatch(batch); err != nil {
					yield(0, err)
					return
				}
				batch = batch[:0]
				// First pass the engine works on batch 1 while batch 2 is
				// formatted; from then on each send is paired with a read
				// of the previous batch.
				if !firstPass {
					if !b.yieldBatch(yield, &numLines) {
						return
					}
				} else {
					firstPass = false
				}
			}
		}
		if len(batch) > 0 && (deadline.IsZero() || b.now().Before(deadline)) {
			if err := b.sendBatch(batch); err != nil {
				yield(0, err)
				return
			}
			if !b.yieldBatch(yield, &numLines) {
				return
			}
		}
		if !firstPass {
			if !b.yieldBatch(yield, &numLines) {
				return
			}
		}
	}
}

// Train streams labeled examples to the engine with the same
// one-batch-in-flight pipeline as Predict. Acknowledgement predictions are
// consumed and discarded - unless the engine is write-only, in which case
// there is nothing to read at all.
func (b *Blocking) Train(common any, examples iter.Seq[TrainExample]) error {
	if b.set.audit {
		return ErrAuditOnly
	}

	totalT0 := b.now()
	numLines := 0
	if b.set.runLog != nil {
		defer func() {
			rec := runlog.Record{
				Kind:      "train",
				StartedAt: totalT0,
				TotalTime: b.now().Sub(totalT0),
				NumLines:  numLines,
			}
			if _, err := b.set.runLog.Insert(context.Background(), rec); err != nil {
				b.set.log.Warn("failed to record run", "error", err)
			}
		}()
	}

	commonPart := b.set.formatter.FormatCommon(common)
	batch := make([]string, 0, b.set.batchSize)
	firstPass := true
	for ex := range examples {
		itemPart := b.set.formatter.FormatItem(common, ex.Item)
		batch = append(batch, vwline.ComposeTrain(commonPart, itemPart, ex.Label, ex.Weight))
		if len(batch) >= b.set.batchSize {
			if err := b.sendBatch(batch); err != nil {
				return err
			}
			numLines += len(batch)
			batch = batch[:0]
			if !firstPass {
				// The engine acknowledges every line; leaving those in
				// the pipe would deadlock a later predict call.
				if !b.set.writeOnly {
					if _, err := b.readBatch(); err != nil {
						return err
					}
				}
			} else {
				firstPass = false
			}
		}
	}
	if len(batch) > 0 {
		if err := b.sendBatch(batch); err != nil {
			return err
		}
		numLines += len(batch)
		if !b.set.writeOnly {
			if _, err := b.readBatch(); err != nil {
				return err
			}
		}
	}
	if !b.set.writeOnly && !firstPass {
		if _, err := b.readBatch(); err != nil {
			return err
		}
	}
	return nil
}

// Explain scores one already-composed line in audit mode. It refuses to
// run while pipelined batches are unread: interleaving a synchronous
// exchange with in-flight batches would desynchronize the streams.
func (b *Blocking) Explain(line string, linkFunction bool) (float64, string, error) {
	if !b.set.audit {
		return 0, "", ErrNotAudit
	}
	if len(b.inFlight) > 0 {
		return 0, "", ErrBatchesInFlight
	}
	return explainLine(b.stdin, b.stdout, line, linkFunction)
}

// Close shuts the engine down: input stream first, then a full drain of
// the output stream, then a bounded wait for process exit.
func (b *Blocking) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true

	if err := b.stdin.Close(); err != nil {
		return fmt.Errorf("close engine stdin: %w", err)
	}
	if !b.set.writeOnly {
		leftover, _ := io.ReadAll(b.stdout)
		if len(leftover) > 0 {
			b.set.log.Warn("unread data left in engine stdout", "bytes", len(leftover))
		}
		_ = b.stdoutC.Close()
	}
	return waitExit(b.cmd, b.set.exitWait)
}

// sendBatch writes one newline-joined batch in full. The write blocks
// until the OS has taken every byte.
func (b *Blocking) sendBatch(lines []string) error {
	var buf bytes.Buffer
	buf.Grow(payloadSize(lines))
	for _, line := range lines {
		if strings.IndexByte(line, '\n') >= 0 {
			return ErrEmbeddedNewline
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if _, err := b.stdin.Write(buf.Bytes()); err != nil {
		return wrapError(ErrCodeProcessExit, err, "writing to engine stdin")
	}
	if !b.set.writeOnly {
		b.inFlight = append(b.inFlight, len(lines))
	}
	return nil
}

// readBatch reads back exactly one in-flight batch's results, oldest
// first. The first whitespace-separated field of each line is the score.
func (b *Blocking) readBatch() ([]float64, error) {
	if len(b.inFlight) == 0 {
		return nil, errorf(ErrCodeLedgerUnderflow, "no batches in flight to read")
	}
	n := b.inFlight[0]
	b.inFlight = b.inFlight[1:]

	scores := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		line, err := readLine(b.stdout)
		if err != nil {
			return nil, err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			return nil, errorf(ErrCodeProtocol, "empty engine response with %d lines outstanding", n-i)
		}
		v, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, errorf(ErrCodeProtocol, "engine response %q is not a prediction", line)
		}
		scores = append(scores, v)
	}
	return scores, nil
}

func (b *Blocking) yieldBatch(yield func(float64, error) bool, numLines *int) bool {
	scores, err := b.readBatch()
	if err != nil {
		yield(0, err)
		return false
	}
	for _, v := range scores {
		if !yield(v, nil) {
			return false
		}
		*numLines++
	}
	return true
}
