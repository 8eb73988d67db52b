package oracle

import (
	"fmt"
	"strconv"
	"time"
)

// TransientError indicates a retryable transport failure: network errors,
// rate limits, or 5xx replies from the oracle service.
type TransientError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *TransientError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("oracle transiently unavailable (retry after %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("oracle transiently unavailable: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError creates a TransientError. retryAfterSecs of 0 leaves the
// backoff to the caller's schedule.
func NewTransientError(err error, retryAfterSecs int) *TransientError {
	return &TransientError{
		Err:        err,
		RetryAfter: time.Duration(retryAfterSecs) * time.Second,
	}
}

// MalformedResponseError indicates the oracle replied but the reply did not
// conform to the requested response schema.
type MalformedResponseError struct {
	Err error
	Raw string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("oracle returned malformed response: %v (raw: %s)", e.Err, truncate(e.Raw, 300))
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// QuotaError indicates the account's quota is exhausted. Fatal, never retried.
type QuotaError struct {
	Err error
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("oracle quota exceeded: %v", e.Err)
}

func (e *QuotaError) Unwrap() error {
	return e.Err
}

// ParseRetryAfterHeader parses a Retry-After header value into seconds.
// Returns 0 if the value is empty or not a valid integer.
func ParseRetryAfterHeader(val string) int {
	if val == "" {
		return 0
	}
	secs, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return secs
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
