// Package resilience provides the retry and timeout policy objects the
// diagnostic aggregator applies to flaky probe operations.
//
// Retry orchestration lives here rather than inside individual probes: a
// probe performs exactly one read per invocation, and the aggregator wraps
// it in a RetryPolicy. This keeps retry counts and delays uniform across
// subsystems instead of duplicated per probe.
//
//	retry := resilience.NewRetry(resilience.RetryPolicy{MaxAttempts: 3})
//	err := retry.Do(ctx, func(ctx context.Context) error {
//	    return readSensor(ctx, addr)
//	})
//
// WithTimeout bounds a single probe run. Exceeding the bound returns
// ErrTimeout to the caller; the probe's result is then synthesized as
// Unknown rather than blocking the snapshot.
package resilience
