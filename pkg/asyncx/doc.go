// Package asyncx holds the small concurrency helpers the worker loop and
// the binaries share.
//
// # Retry
//
// [RetryWithBackoff] calls fn until it succeeds, the attempts run out or
// the context is done, doubling the delay after each failure up to an
// optional cap. [Backoff.OnRetry] is invoked before every sleep so callers
// can log the reconnect.
//
//	rdb, err := asyncx.RetryWithBackoff(ctx, asyncx.Backoff{
//	    Attempts: 10,
//	    Initial:  time.Second,
//	    Max:      30 * time.Second,
//	}, func(ctx context.Context) (redis.UniversalClient, error) {
//	    return connect(ctx)
//	})
//
// # Periodic work
//
// [Every] runs fn on a fixed interval until the context is cancelled. It is
// what drives the background requeue sweep.
//
//	go asyncx.Every(ctx, 30*time.Second, func(ctx context.Context) {
//	    manager.Requeue(ctx)
//	})
package asyncx
