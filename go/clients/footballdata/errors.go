package footballdata

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when football-data.org has no resource for the
// requested code or ID.
var ErrNotFound = errors.New("not found at football-data.org")

// RateLimitedError signals an upstream 429. RetryAfter is the minimum time
// the caller must back off before retrying the same window.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited by football-data.org, retry after %s", e.RetryAfter)
}

// Hint exposes the upstream backoff so retry policies can honor it.
func (e *RateLimitedError) Hint() time.Duration { return e.RetryAfter }

// UnavailableError signals an upstream 5xx or a transport-level failure.
// Retryable with backoff.
type UnavailableError struct {
	StatusCode int
	Cause      error
}

func (e *UnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("football-data.org unavailable: %v", e.Cause)
	}
	return fmt.Sprintf("football-data.org unavailable: HTTP %d", e.StatusCode)
}

func (e *UnavailableError) Unwrap() error { return e.Cause }

// MalformedError signals a response body that could not be decoded. At batch
// granularity this fails the whole fetch cycle; record-level problems are
// dropped and counted by the fetcher instead.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed football-data.org response: %s", e.Reason)
}
