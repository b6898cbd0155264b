package ingest

import (
	"github.com/pkg/errors"
)

var (
	// ErrTransportUnavailable covers dns, dial and tls failures. Reconnect.
	ErrTransportUnavailable = errors.New("transport unavailable")

	// ErrSubscriptionRejected means the relay refused the authenticated
	// subscription. Re-derive the handshake before retrying.
	ErrSubscriptionRejected = errors.New("subscription rejected")

	// ErrDecodeFailure marks a single malformed payload. The loop discards
	// the envelope and never returns this error.
	ErrDecodeFailure = errors.New("decode failure")

	// ErrStreamTerminated is matched by every abrupt end of an active stream.
	ErrStreamTerminated = errors.New("stream terminated")

	// ErrReceiveTimeout is the cause attached when no envelope arrived within the receive deadline.
	ErrReceiveTimeout = errors.New("receive timeout")
)

// TerminatedError is returned by Loop.Run when an active stream ends with an
// error. errors.Is matches both ErrStreamTerminated and the cause.
type TerminatedError struct {
	Err error
}

func (e *TerminatedError) Error() string {
	return ErrStreamTerminated.Error() + ": " + e.Err.Error()
}

func (e *TerminatedError) Unwrap() error {
	return e.Err
}

func (e *TerminatedError) Is(target error) bool {
	return target == ErrStreamTerminated
}
