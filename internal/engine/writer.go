package engine

import (
	"bytes"
	"io"
	"strings"
)

// sendBuffer owns the outbound byte buffer in front of the engine's input
// pipe. Its writer must follow the non-blocking convention of pipe.File:
// a would-block condition reports (0, nil) rather than blocking.
//
// Bytes are never reordered or duplicated. Once the OS confirms a prefix
// written, it is discarded; retransmission is of raw buffered bytes, never
// re-tokenized lines.
type sendBuffer struct {
	w         io.Writer
	unwritten []byte
	ledger    *ledger
}

// send buffers lines behind any unwritten remainder and attempts one
// non-blocking write. The ledger grows by len(lines) regardless of how
// many bytes physically moved: buffering, not the ledger, absorbs partial
// writes. Calling send with no new lines is the way to keep flushing a
// stale remainder.
//
// Returns the number of bytes the OS accepted.
func (s *sendBuffer) send(lines []string) (int, error) {
	payload := s.unwritten
	if len(lines) > 0 {
		var b bytes.Buffer
		b.Grow(len(s.unwritten) + payloadSize(lines))
		b.Write(s.unwritten)
		for _, line := range lines {
			if strings.IndexByte(line, '\n') >= 0 {
				return 0, ErrEmbeddedNewline
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
		payload = b.Bytes()
	}
	if len(payload) == 0 {
		return 0, nil
	}

	n, err := s.w.Write(payload)
	if err != nil {
		return 0, wrapError(ErrCodeProcessExit, err, "writing to engine stdin")
	}
	switch {
	case n == 0:
		s.unwritten = payload
	case n < len(payload):
		s.unwritten = payload[n:]
	default:
		s.unwritten = nil
	}
	s.ledger.add(len(lines))
	return n, nil
}

// hasBacklog reports whether unconfirmed bytes await retransmission.
func (s *sendBuffer) hasBacklog() bool {
	return len(s.unwritten) > 0
}

func payloadSize(lines []string) int {
	n := 0
	for _, line := range lines {
		n += len(line) + 1
	}
	return n
}
