package provider

import (
	"errors"
	"fmt"
	"time"
)

// RateLimitError indicates the provider rejected the call for exceeding its
// request ceiling. Retryable; RetryAfter, when positive, overrides the
// computed backoff.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited, retry after %s", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limited", e.Provider)
}

// TransientError indicates a temporary provider failure (network blip, 5xx).
// Retryable up to the attempt ceiling; repeated failures trip the breaker.
type TransientError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient provider error: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransientError) Unwrap() error { return e.Err }

// AuthError indicates invalid or missing credentials. Never retried; fatal to
// the calling analyzer only.
type AuthError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error { return e.Err }

// IsRetryable reports whether a call failing with err may be retried.
func IsRetryable(err error) bool {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return true
	}
	var te *TransientError
	return errors.As(err, &te)
}

// RetryAfterOf extracts a provider-specified retry-after value, or zero.
func RetryAfterOf(err error) time.Duration {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle.RetryAfter
	}
	return 0
}
