//go:build !linux

package pipe

import "errors"

// SetBufferSize is a Linux-only facility (F_SETPIPE_SZ).
func (p *File) SetBufferSize(bytes int) error {
	return errors.New("pipe buffer resizing is only supported on linux")
}
