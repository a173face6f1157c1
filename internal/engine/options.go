package engine

import (
	"log/slog"
	"time"

	"vowpipe/internal/runlog"
	"vowpipe/internal/vwline"
)

// Defaults for engine construction.
const (
	DefaultBatchSize       = 20
	DefaultMaxPendingLines = 20
	DefaultWriteMargin     = time.Millisecond
	DefaultBinary          = "vw"

	// DefaultExitWait bounds how long Close waits for the child to exit
	// after its stdin is closed.
	DefaultExitWait = 120 * time.Second
)

// settings holds construction-time configuration shared by both engine
// variants. Knobs that only apply to one variant are rejected by the other
// variant's constructor.
type settings struct {
	formatter   vwline.Formatter
	args        []string
	binary      string
	batchSize   int
	maxPending  int
	writeMargin time.Duration
	pipeBuffer  int
	audit       bool
	writeOnly   bool
	exitWait    time.Duration
	log         *slog.Logger
	runLog      *runlog.Log
}

func defaultSettings(formatter vwline.Formatter, args []string) settings {
	return settings{
		formatter:   formatter,
		args:        args,
		binary:      DefaultBinary,
		batchSize:   DefaultBatchSize,
		maxPending:  DefaultMaxPendingLines,
		writeMargin: DefaultWriteMargin,
		exitWait:    DefaultExitWait,
		log:         slog.Default(),
	}
}

// Option configures an engine at construction time.
type Option func(*settings)

// WithBinary overrides the scoring binary to execute. Default "vw".
func WithBinary(path string) Option {
	return func(s *settings) { s.binary = path }
}

// WithBatchSize sets the maximum number of lines handed to one write
// attempt. Smaller batches mean more syscall overhead; larger batches mean
// more leftover state for the next call to clean up after a timeout.
func WithBatchSize(n int) Option {
	return func(s *settings) { s.batchSize = n }
}

// WithMaxPendingLines caps the pipeline depth: how many lines may await
// their prediction in buffers at once. Non-blocking engine only.
func WithMaxPendingLines(n int) Option {
	return func(s *settings) { s.maxPending = n }
}

// WithWriteMargin sets how long before a call's deadline the engine stops
// feeding new work, reserving the remainder for draining in-flight results.
// The right value depends on real pipe latency; default 1ms. Non-blocking
// engine only.
func WithWriteMargin(d time.Duration) Option {
	return func(s *settings) { s.writeMargin = d }
}

// WithPipeBufferSize overrides the kernel buffer size of the engine's
// input pipe. Zero keeps the OS default. Non-blocking engine only.
func WithPipeBufferSize(bytes int) Option {
	return func(s *settings) { s.pipeBuffer = bytes }
}

// WithAuditMode launches the engine in audit mode: "-t" is dropped, "-a"
// is added, and Explain becomes the only legal operation.
func WithAuditMode() Option {
	return func(s *settings) { s.audit = true }
}

// WithWriteOnly directs predictions to /dev/null so nothing has to be read
// back, which speeds up training considerably. Predicting becomes illegal.
// Blocking engine only.
func WithWriteOnly() Option {
	return func(s *settings) { s.writeOnly = true }
}

// WithExitWait bounds how long Close waits for the child process to exit.
func WithExitWait(d time.Duration) Option {
	return func(s *settings) { s.exitWait = d }
}

// WithLogger sets the structured logger. Default slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *settings) { s.log = log }
}

// WithRunLog records one row per predict/train call into the given log.
func WithRunLog(l *runlog.Log) Option {
	return func(s *settings) { s.runLog = l }
}

// callOptions configure a single predict call.
type callOptions struct {
	timeout  time.Duration
	metrics  *CallMetrics
	detailed *DetailedMetrics
}

// CallOption configures one predict call.
type CallOption func(*callOptions)

// WithTimeout bounds the call. The resulting sequence may carry fewer
// results than there were items; a short sequence means "some items
// unresolved", not failure.
func WithTimeout(d time.Duration) CallOption {
	return func(c *callOptions) { c.timeout = d }
}

// WithMetrics populates m over the course of the call.
func WithMetrics(m *CallMetrics) CallOption {
	return func(c *callOptions) { c.metrics = m }
}

// WithDetailedMetrics populates m with per-phase samples. More expensive
// than WithMetrics; meant for profiling, not steady-state monitoring.
func WithDetailedMetrics(m *DetailedMetrics) CallOption {
	return func(c *callOptions) { c.detailed = m }
}

func applyCallOptions(opts []CallOption) callOptions {
	var c callOptions
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
