// Package llm defines error values for the remote completion client. These
// errors form the failure taxonomy that the chat service translates into
// user-visible transcript messages; none of them are retried automatically.
package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable indicates the completion endpoint could not be reached
	// (DNS failure, refused connection, timeout while dialing).
	ErrUnreachable = errors.New("completion endpoint unreachable")

	// ErrMalformedResponse indicates the backend answered but the payload was
	// missing the expected fields. The raw payload is logged by the caller,
	// never surfaced to users.
	ErrMalformedResponse = errors.New("malformed completion response")
)

// RateLimitError indicates the backend throttled the request. RetryAfter
// carries the wait hint in seconds when the backend supplied one, 0 otherwise.
type RateLimitError struct {
	// RetryAfter is the suggested wait in seconds (0 when unknown).
	RetryAfter int
	// Detail is the backend's own description of the limit, if any.
	Detail string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: retry after %ds", e.RetryAfter)
	}
	return "rate limited"
}

// IsRateLimit reports whether err is (or wraps) a RateLimitError, returning
// the typed error for access to the retry hint.
func IsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
