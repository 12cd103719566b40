// Package perrors defines the error taxonomy shared by every layer of the
// client: codec, rpc, meta, table, exec, batch, scan and the facade all
// classify failures against these sentinels rather than inventing their own.
package perrors

import (
	"github.com/cockroachdb/errors"
)

// Sentinel errors per spec: InvalidArgument, Timeout, ConnectionError,
// RoutingStale, Cancelled. ApplicationError is modeled below as a distinct
// type because it carries a server-supplied code.
var (
	// ErrInvalidArgument marks malformed client input (oversize hashKey,
	// forbidden nils, invalid scan options). Never retried.
	ErrInvalidArgument = errors.New("pegasus: invalid argument")

	// ErrTimeout marks a caller-facing deadline exhaustion.
	ErrTimeout = errors.New("pegasus: timeout")

	// ErrConnectionError marks a transport-level failure that was retried
	// internally until the retry budget or deadline ran out.
	ErrConnectionError = errors.New("pegasus: connection error")

	// ErrRoutingStale marks a server response indicating the contacted
	// replica is not (or no longer) primary for the partition.
	ErrRoutingStale = errors.New("pegasus: routing information is stale")

	// ErrCancelled marks client-initiated cancellation (explicit context
	// cancellation or client Close).
	ErrCancelled = errors.New("pegasus: cancelled")
)

// ApplicationError is a typed server response surfaced directly to the
// caller without retry, e.g. write-conflict or a strict not-found.
type ApplicationError struct {
	Code    string
	Message string
}

func (e *ApplicationError) Error() string {
	if e.Message == "" {
		return "pegasus: application error " + e.Code
	}
	return "pegasus: application error " + e.Code + ": " + e.Message
}

// NewApplicationError wraps a server error code into an *ApplicationError.
func NewApplicationError(code, message string) error {
	return &ApplicationError{Code: code, Message: message}
}

// IsApplicationError reports whether err is an *ApplicationError and, if so,
// returns it.
func IsApplicationError(err error) (*ApplicationError, bool) {
	var ae *ApplicationError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// InvalidArgumentf builds an ErrInvalidArgument-classified error with a
// formatted message, preserving errors.Is(err, ErrInvalidArgument).
func InvalidArgumentf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidArgument)
}

// Timeoutf builds an ErrTimeout-classified error with a formatted message.
func Timeoutf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrTimeout)
}

// ConnectionErrorf builds an ErrConnectionError-classified error, optionally
// wrapping a cause.
func ConnectionErrorf(cause error, format string, args ...interface{}) error {
	err := errors.Newf(format, args...)
	if cause != nil {
		err = errors.Wrapf(cause, format, args...)
	}
	return errors.Mark(err, ErrConnectionError)
}

// RoutingStalef builds an ErrRoutingStale-classified error.
func RoutingStalef(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrRoutingStale)
}

// IsRetryableTransport reports whether err should be retried against the
// same endpoint per spec.md §4.6 step 3.
func IsRetryableTransport(err error) bool {
	return errors.Is(err, ErrConnectionError) || errors.Is(err, ErrTimeout)
}

// IsRoutingStale reports whether err indicates the caller should refresh
// routing metadata and retry against the new primary.
func IsRoutingStale(err error) bool {
	return errors.Is(err, ErrRoutingStale)
}
