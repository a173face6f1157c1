package engine

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes engine errors. All of them are fatal for the
// session; none are retried internally.
type ErrorCode string

const (
	// ErrCodeProtocol indicates a response line that does not parse as a
	// prediction. The streams can no longer be trusted to be paired.
	ErrCodeProtocol ErrorCode = "PROTOCOL_VIOLATION"

	// ErrCodeLedgerUnderflow indicates the pending-line counter would go
	// negative, i.e. write/read accounting has desynchronized.
	ErrCodeLedgerUnderflow ErrorCode = "LEDGER_UNDERFLOW"

	// ErrCodeProcessExit indicates the child process exited abnormally or
	// closed its output stream mid-session.
	ErrCodeProcessExit ErrorCode = "PROCESS_EXIT"

	// ErrCodeMisuse indicates a violated local precondition, such as
	// predicting on a write-only engine.
	ErrCodeMisuse ErrorCode = "MISUSE"
)

// Error is a fatal engine error with a stable category code.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error // underlying cause, optional
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches two engine errors by code, so sentinel misuse errors can be
// tested with errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code && (other.Message == "" || e.Message == other.Message)
}

func errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code ErrorCode, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// Misuse sentinels. Each is a local precondition failure detected before
// any I/O happens.
var (
	// ErrTrainUnsupported is returned by NonBlocking.Train; training goes
	// through the blocking variant.
	ErrTrainUnsupported = errorf(ErrCodeMisuse, "training is not supported by the non-blocking engine")

	// ErrWriteOnly is returned when predicting on a write-only engine.
	ErrWriteOnly = errorf(ErrCodeMisuse, "cannot predict in write-only mode")

	// ErrNotAudit is returned when Explain is called outside audit mode.
	ErrNotAudit = errorf(ErrCodeMisuse, "explaining requires audit mode")

	// ErrAuditOnly is returned when an audit-mode engine is asked to
	// predict or train.
	ErrAuditOnly = errorf(ErrCodeMisuse, "an audit-mode engine only supports Explain")

	// ErrBatchesInFlight is returned when a synchronous operation is
	// requested while pipelined batches are still unread.
	ErrBatchesInFlight = errorf(ErrCodeMisuse, "unread batches in flight; synchronous communication would desynchronize")

	// ErrEmbeddedNewline is returned when a composed line contains a
	// newline, which would silently corrupt the line framing.
	ErrEmbeddedNewline = errorf(ErrCodeMisuse, "composed line contains an embedded newline")
)
