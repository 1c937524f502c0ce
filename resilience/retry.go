package resilience

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryPolicy describes how an unreliable operation is re-attempted.
// The zero value is usable; defaults are applied by NewRetry.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	// Default: 3
	MaxAttempts int

	// Delay is the pause between attempts. Hardware bus reads settle within
	// a conversion cycle or not at all, so the delay is constant rather
	// than exponential.
	// Default: 250ms
	Delay time.Duration

	// Jitter adds up to 25% randomness to the delay.
	Jitter bool

	// RetryIf decides whether an error is worth another attempt.
	// Default: any non-nil error.
	RetryIf func(err error) bool

	// OnRetry is called before each re-attempt.
	OnRetry func(attempt int, err error)
}

// Retry applies a RetryPolicy to operations.
type Retry struct {
	policy RetryPolicy
}

// NewRetry creates a retry handler with defaults applied.
func NewRetry(policy RetryPolicy) *Retry {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	if policy.Delay <= 0 {
		policy.Delay = 250 * time.Millisecond
	}
	if policy.RetryIf == nil {
		policy.RetryIf = func(err error) bool { return err != nil }
	}
	return &Retry{policy: policy}
}

// Do runs op until it succeeds, the policy is exhausted, or the context is
// cancelled. Exhaustion returns ErrMaxRetriesExceeded wrapping the last
// error; an error RetryIf rejects is returned as-is.
func (r *Retry) Do(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !r.policy.RetryIf(err) {
			return err
		}
		if attempt >= r.policy.MaxAttempts {
			break
		}

		if r.policy.OnRetry != nil {
			r.policy.OnRetry(attempt, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.delay()):
		}
	}

	return fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, lastErr)
}

// Policy returns the applied policy.
func (r *Retry) Policy() RetryPolicy {
	return r.policy
}

func (r *Retry) delay() time.Duration {
	d := r.policy.Delay
	if r.policy.Jitter && d > 0 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		d += time.Duration(rand.Int64N(int64(d / 4)))
	}
	return d
}
