package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// Policy is an explicit retry policy: bounded attempts with an exponential
// backoff curve. It is threaded through each operation's error path rather
// than hidden in a wrapper.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultPolicy mirrors the provider client's backoff: three attempts,
// 1s doubling up to 8s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Multiplier:   2.0,
		MaxDelay:     8 * time.Second,
	}
}

// Delay returns the backoff before the given retry attempt. Attempt 0 is
// the first retry (after one failure).
func (p Policy) Delay(attempt int) time.Duration {
	d := p.InitialDelay
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Hinted is implemented by errors that carry an upstream backoff hint, such
// as a 429 with Retry-After. The hint takes precedence over the policy's
// own curve when it is longer.
type Hinted interface {
	Hint() time.Duration
}

// Permanent marks an error that must not be retried.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Do runs fn up to MaxAttempts times, sleeping on the policy's curve
// between failures. It stops early on context cancellation or a Permanent
// error, and returns the last error once attempts are exhausted.
func (p Policy) Do(ctx context.Context, clock clockwork.Clock, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := p.Delay(attempt - 1)
			var hinted Hinted
			if errors.As(lastErr, &hinted) && hinted.Hint() > delay {
				delay = hinted.Hint()
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-clock.After(delay):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		var perm *Permanent
		if errors.As(err, &perm) {
			return perm.Err
		}

		lastErr = err
	}

	return fmt.Errorf("failed after %d attempts: %w", p.MaxAttempts, lastErr)
}
