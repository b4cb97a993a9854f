package types

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors
var (
	// ErrStateWrite marks a persistence failure after the index write
	// succeeded. A task that hits this must never be reported as a
	// success: the file stays unmarked and is reprocessed on the next
	// discovery cycle, which is safe because the index upsert is
	// idempotent.
	ErrStateWrite = errors.New("state write failed")

	// ErrEmptyText is returned when an embedding is requested for
	// empty input.
	ErrEmptyText = errors.New("text cannot be empty")
)

// TransientError wraps an external-service failure that is worth
// retrying: rate limits, timeouts, 5xx responses, network hiccups.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps an external-service failure that will recur
// unchanged on retry: bad credentials, unsupported content, malformed
// requests. The orchestrator fails the task immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// Transientf formats a retryable error.
func Transientf(format string, args ...interface{}) error {
	return &TransientError{Err: fmt.Errorf(format, args...)}
}

// Permanent wraps err as not retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Permanentf formats a non-retryable error.
func Permanentf(format string, args ...interface{}) error {
	return &PermanentError{Err: fmt.Errorf(format, args...)}
}

// IsTransient reports whether err is classified as retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent reports whether err is classified as not retryable.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// FromHTTPStatus classifies an HTTP error response from an external
// service. Rate limiting, request timeouts, and server-side failures
// are transient; everything else in the 4xx range (auth failures,
// unsupported payloads) will recur on retry and is permanent.
func FromHTTPStatus(status int, detail string) error {
	err := fmt.Errorf("http %d: %s", status, detail)
	switch {
	case status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout,
		status >= 500:
		return &TransientError{Err: err}
	default:
		return &PermanentError{Err: err}
	}
}
