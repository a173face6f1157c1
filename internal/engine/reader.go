package engine

import (
	"bytes"
	"errors"
	"io"
	"strconv"

	"vowpipe/internal/pipe"
)

// readChunkSize bounds one non-blocking read from the engine's output pipe.
const readChunkSize = 4096

// recvBuffer owns the inbound byte buffer behind the engine's output pipe.
// Its reader must follow the non-blocking convention of pipe.File: no data
// reports pipe.ErrNoData, a closed write side reports io.EOF.
//
// Between reads the buffer holds at most the one incomplete trailing line
// fragment, so it cannot grow without bound under correct framing.
type recvBuffer struct {
	r        io.Reader
	fragment []byte
	scratch  []byte
	ledger   *ledger
}

// drain performs one bounded read and resolves every complete line it can.
//
// The newly read chunk is split at its last newline: everything up to and
// including it (prefixed by the carried fragment) parses into scores in
// original order; the remainder becomes the new fragment. The ledger is
// decremented before the scores are handed back, so a caller that abandons
// the results cannot desynchronize the accounting - the bytes have already
// left the pipe.
//
// Returns the parsed scores and the number of bytes read. A line that does
// not parse as a float is a fatal protocol violation.
func (rb *recvBuffer) drain() ([]float64, int, error) {
	if rb.scratch == nil {
		rb.scratch = make([]byte, readChunkSize)
	}
	n, err := rb.r.Read(rb.scratch)
	if err != nil {
		if errors.Is(err, pipe.ErrNoData) {
			return nil, 0, nil
		}
		if errors.Is(err, io.EOF) {
			return nil, 0, errorf(ErrCodeProcessExit, "engine closed its output stream with %d lines pending", rb.ledger.count())
		}
		return nil, 0, wrapError(ErrCodeProcessExit, err, "reading from engine stdout")
	}
	chunk := rb.scratch[:n]

	last := bytes.LastIndexByte(chunk, '\n')
	if last < 0 {
		// Some data, but no complete line yet.
		rb.fragment = append(rb.fragment, chunk...)
		return nil, n, nil
	}

	complete := append(rb.fragment, chunk[:last+1]...)
	var scores []float64
	for _, line := range bytes.Split(complete, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		v, err := strconv.ParseFloat(string(line), 64)
		if err != nil {
			return nil, n, errorf(ErrCodeProtocol, "engine response %q is not a prediction", line)
		}
		scores = append(scores, v)
	}
	// scratch is reused, so the new fragment must be a copy.
	rb.fragment = append([]byte(nil), chunk[last+1:]...)

	if err := rb.ledger.consume(len(scores)); err != nil {
		return nil, n, err
	}
	return scores, n, nil
}
