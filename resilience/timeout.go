package resilience

import (
	"context"
	"time"
)

// WithTimeout runs op with a deadline. If the deadline passes before op
// returns, ErrTimeout is returned and op's goroutine is left to finish on
// its own: the underlying OS calls (bus file reads, exec'd queries) are not
// forcibly interruptible, so the guarantee is non-blocking progress for the
// caller, not cancellation of the work.
func WithTimeout(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return ErrTimeout
		}
		return ctx.Err()
	}
}
