package source

import "fmt"

// UnavailableError indicates the board could not be reached or answered
// with a server-side failure. Retryable.
type UnavailableError struct {
	SourceID string
	Cause    error
}

func (e *UnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("source %s unavailable: %v", e.SourceID, e.Cause)
	}
	return fmt.Sprintf("source %s unavailable", e.SourceID)
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// RateLimitedError indicates the board throttled the request. Retryable.
type RateLimitedError struct {
	SourceID string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("source %s rate limited the request", e.SourceID)
}

// MalformedError indicates the board answered with a payload that could not
// be decoded. Not retryable: a repeat attempt would get the same payload.
type MalformedError struct {
	SourceID string
	Cause    error
}

func (e *MalformedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("source %s returned a malformed response: %v", e.SourceID, e.Cause)
	}
	return fmt.Sprintf("source %s returned a malformed response", e.SourceID)
}

func (e *MalformedError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether a fetch error is worth another attempt.
func Retryable(err error) bool {
	switch err.(type) {
	case *UnavailableError, *RateLimitedError:
		return true
	default:
		return false
	}
}
