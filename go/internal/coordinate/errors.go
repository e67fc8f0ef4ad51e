package coordinate

import (
	"errors"

	"github.com/jstats/matchlens/go/clients/footballdata"
	"github.com/jstats/matchlens/go/internal/fixture"
	"github.com/jstats/matchlens/go/internal/publish"
)

// ErrPersistentConflict is returned when a cycle loses the optimistic
// version check more times than the retry budget allows. The entity is
// deferred to the next scheduled pass.
var ErrPersistentConflict = errors.New("persistent version conflict")

// ErrorKind buckets every failure a cycle can produce. Reports carry a kind
// rather than a bare error so operators see a bounded taxonomy.
type ErrorKind string

const (
	ErrKindNone                  ErrorKind = ""
	ErrKindProviderUnavailable   ErrorKind = "PROVIDER_UNAVAILABLE"
	ErrKindRateLimited           ErrorKind = "RATE_LIMITED"
	ErrKindMalformedResponse     ErrorKind = "MALFORMED_RESPONSE"
	ErrKindNotFound              ErrorKind = "NOT_FOUND"
	ErrKindConflict              ErrorKind = "CONFLICT"
	ErrKindPersistentConflict    ErrorKind = "PERSISTENT_CONFLICT"
	ErrKindLeaseHeld             ErrorKind = "LEASE_ALREADY_HELD"
	ErrKindQueueFull             ErrorKind = "QUEUE_FULL"
	ErrKindDownstreamUnavailable ErrorKind = "DOWNSTREAM_UNAVAILABLE"
	ErrKindStorageFailure        ErrorKind = "STORAGE_FAILURE"
)

// Classify maps an error onto the taxonomy. Unrecognized errors from the
// store side are storage failures; they are fatal for the cycle.
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrKindNone
	}

	var rateLimited *footballdata.RateLimitedError
	var unavailable *footballdata.UnavailableError
	var malformed *footballdata.MalformedError

	switch {
	case errors.As(err, &rateLimited):
		return ErrKindRateLimited
	case errors.As(err, &unavailable):
		return ErrKindProviderUnavailable
	case errors.As(err, &malformed):
		return ErrKindMalformedResponse
	case errors.Is(err, footballdata.ErrNotFound):
		return ErrKindNotFound
	case errors.Is(err, ErrPersistentConflict):
		return ErrKindPersistentConflict
	case errors.Is(err, fixture.ErrConflict):
		return ErrKindConflict
	case errors.Is(err, ErrLeaseHeld):
		return ErrKindLeaseHeld
	case errors.Is(err, publish.ErrQueueFull):
		return ErrKindQueueFull
	case errors.Is(err, publish.ErrDownstreamUnavailable):
		return ErrKindDownstreamUnavailable
	default:
		return ErrKindStorageFailure
	}
}

// Retryable reports whether a cycle-level error is worth another local
// attempt with backoff, as opposed to surfacing immediately.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrKindProviderUnavailable, ErrKindRateLimited, ErrKindConflict,
		ErrKindQueueFull, ErrKindDownstreamUnavailable:
		return true
	default:
		return false
	}
}
