package asyncx

import (
	"context"
	"time"
)

// Every calls fn each interval until ctx is done. The first call happens
// after one full interval. Calls never overlap.
func Every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
