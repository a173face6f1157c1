// Package pipe wraps anonymous-pipe file descriptors for polled,
// non-blocking I/O.
//
// The Go runtime normally registers pipe descriptors with its netpoller,
// which turns a would-block condition into a parked goroutine. The engine
// needs the opposite: a single syscall attempt that reports "nothing moved"
// immediately. File therefore bypasses os.File's Read/Write and issues raw
// syscalls on a descriptor it has switched to O_NONBLOCK.
package pipe

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// ErrNoData is returned by Read when the pipe has no bytes available.
// It is distinct from io.EOF, which means the write side has closed.
var ErrNoData = errors.New("pipe: no data available")

// File is one end of an anonymous pipe operated in non-blocking mode.
type File struct {
	// os.File keeps the descriptor alive; all I/O goes through fd so the
	// runtime poller never parks us.
	f  *os.File
	fd int
}

// NewNonBlocking takes ownership of f and switches its descriptor to
// non-blocking mode. f must not be used directly afterwards.
func NewNonBlocking(f *os.File) (*File, error) {
	fd := int(f.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("set O_NONBLOCK on %s: %w", f.Name(), err)
	}
	return &File{f: f, fd: fd}, nil
}

// Write attempts exactly one write syscall.
//
// A full pipe reports (0, nil): absence of OS readiness is
// indistinguishable from zero accepted bytes, and callers buffer the
// rejected payload either way.
func (p *File) Write(b []byte) (int, error) {
	for {
		n, err := unix.Write(p.fd, b)
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("pipe write: %w", err)
		}
		return n, nil
	}
}

// Read attempts exactly one read syscall into b.
// No bytes available reports ErrNoData; a closed write side reports io.EOF.
func (p *File) Read(b []byte) (int, error) {
	for {
		n, err := unix.Read(p.fd, b)
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			return 0, ErrNoData
		}
		if err != nil {
			return 0, fmt.Errorf("pipe read: %w", err)
		}
		if n == 0 {
			return 0, io.EOF
		}
		return n, nil
	}
}

// Close releases the underlying descriptor.
func (p *File) Close() error {
	return p.f.Close()
}
