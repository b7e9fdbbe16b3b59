package asyncx

import (
	"context"
	"time"
)

// Backoff parameterizes RetryWithBackoff.
type Backoff struct {
	// Attempts is the total number of calls; values below 1 mean one call.
	Attempts int
	// Initial is the first delay. It doubles after each failed attempt.
	Initial time.Duration
	// Max caps the delay when positive.
	Max time.Duration
	// Retryable, when set, stops the loop on errors it rejects.
	Retryable func(err error) bool
	// OnRetry, when set, is called after a failed attempt that will be retried.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Retry calls fn up to attempts times, returning as soon as fn succeeds.
// Returns the last error if all attempts fail.
func Retry[T any](ctx context.Context, attempts int, fn func(context.Context) (T, error)) (T, error) {
	return RetryWithBackoff(ctx, Backoff{Attempts: attempts}, fn)
}

// RetryWithBackoff calls fn with exponential backoff between failures.
// Respects context cancellation between retries.
func RetryWithBackoff[T any](ctx context.Context, b Backoff, fn func(context.Context) (T, error)) (T, error) {
	var (
		zero  T
		err   error
		val   T
		delay = b.Initial
	)
	attempts := max(b.Attempts, 1)

	for i := 0; i < attempts; i++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		val, err = fn(ctx)
		if err == nil {
			return val, nil
		}
		if i == attempts-1 || (b.Retryable != nil && !b.Retryable(err)) {
			break
		}

		if b.OnRetry != nil {
			b.OnRetry(i+1, delay, err)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if b.Max > 0 && delay > b.Max {
			delay = b.Max
		}
	}
	return zero, err
}
