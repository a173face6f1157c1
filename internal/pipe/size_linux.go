//go:build linux

package pipe

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// SetBufferSize resizes the kernel buffer behind the pipe.
// The kernel rounds the size up to a page multiple and caps it at
// /proc/sys/fs/pipe-max-size for unprivileged processes.
func (p *File) SetBufferSize(bytes int) error {
	if _, err := unix.FcntlInt(uintptr(p.fd), unix.F_SETPIPE_SZ, bytes); err != nil {
		return fmt.Errorf("set pipe buffer to %d bytes: %w", bytes, err)
	}
	return nil
}
