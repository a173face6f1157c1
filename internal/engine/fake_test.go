package engine

import (
	"bytes"
	"io"
	"iter"
	"log/slog"
	"strconv"
	"time"

	"vowpipe/internal/pipe"
	"vowpipe/internal/vwline"
)

// fakeConn simulates the scoring process behind a non-blocking pipe pair.
// Bytes written become protocol lines; each complete line queues one
// response line; reads serve queued response bytes. Scripts control how
// many bytes each write accepts and each read serves, so partial-write
// and partial-read behavior is fully deterministic.
type fakeConn struct {
	wire    bytes.Buffer // every byte the OS accepted, in order
	lineBuf []byte
	ordinal int

	// accepts caps accepted bytes per Write call; -1 means all.
	// Exhausted script means accept everything.
	accepts []int
	// writeLineCounts records complete lines framed per Write call.
	writeLineCounts []int

	resp  bytes.Buffer
	muted []string // responses held back while mute is set
	mute  bool
	// reads caps served bytes per Read call; 0 means a no-data turn.
	reads []int
	// delayReads makes the first N reads report no data.
	delayReads int
	onRead     func() // clock hook
	eof        bool

	// score renders the response for the n-th line (1-based).
	// Default: the ordinal itself.
	score func(ordinal int, line string) string
}

func (f *fakeConn) Write(p []byte) (int, error) {
	limit := len(p)
	if len(f.accepts) > 0 {
		a := f.accepts[0]
		f.accepts = f.accepts[1:]
		if a >= 0 && a < limit {
			limit = a
		}
	}
	accepted := p[:limit]
	f.wire.Write(accepted)
	f.lineBuf = append(f.lineBuf, accepted...)

	framed := 0
	for {
		idx := bytes.IndexByte(f.lineBuf, '\n')
		if idx < 0 {
			break
		}
		line := string(f.lineBuf[:idx])
		f.lineBuf = f.lineBuf[idx+1:]
		f.ordinal++
		framed++
		resp := strconv.Itoa(f.ordinal)
		if f.score != nil {
			resp = f.score(f.ordinal, line)
		}
		if f.mute {
			f.muted = append(f.muted, resp)
		} else {
			f.resp.WriteString(resp + "\n")
		}
	}
	f.writeLineCounts = append(f.writeLineCounts, framed)
	return limit, nil
}

func (f *fakeConn) Read(p []byte) (int, error) {
	if f.onRead != nil {
		f.onRead()
	}
	if f.delayReads > 0 {
		f.delayReads--
		return 0, pipe.ErrNoData
	}
	limit := len(p)
	if len(f.reads) > 0 {
		r := f.reads[0]
		f.reads = f.reads[1:]
		if r == 0 {
			return 0, pipe.ErrNoData
		}
		if r < limit {
			limit = r
		}
	}
	if f.resp.Len() == 0 {
		if f.eof {
			return 0, io.EOF
		}
		return 0, pipe.ErrNoData
	}
	return f.resp.Read(p[:limit])
}

// release lets held-back responses flow on subsequent reads.
func (f *fakeConn) release() {
	f.mute = false
	for _, r := range f.muted {
		f.resp.WriteString(r + "\n")
	}
	f.muted = nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestNonBlocking builds a NonBlocking engine over a fakeConn, skipping
// process spawn.
func newTestNonBlocking(fc *fakeConn, opts ...Option) *NonBlocking {
	set := defaultSettings(vwline.Passthrough{}, nil)
	set.log = quietLogger()
	for _, opt := range opts {
		opt(&set)
	}
	e := &NonBlocking{set: set, now: time.Now}
	e.send = &sendBuffer{w: fc, ledger: &e.pending}
	e.recv = &recvBuffer{r: fc, ledger: &e.pending}
	return e
}

func itemSeq(items ...string) iter.Seq[any] {
	return func(yield func(any) bool) {
		for _, it := range items {
			if !yield(it) {
				return
			}
		}
	}
}
