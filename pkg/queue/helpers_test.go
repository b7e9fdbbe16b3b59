package queue_test

import (
	"sync"
	"testing"
	"time"

	"github.com/Abraxas-365/workq/pkg/queue"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(sec int64) *fakeClock {
	return &fakeClock{now: time.Unix(sec, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

// newQueue returns a queue whose jobids look like h.1.<secs>.<seq>.
func newQueue(t *testing.T, rdb redis.UniversalClient, clock *fakeClock, opts ...queue.Option) *queue.Queue {
	t.Helper()
	base := []queue.Option{
		queue.WithClock(clock.Now),
		queue.WithHostname("h"),
		queue.WithPID(1),
	}
	return queue.New(rdb, "sys", "q", append(base, opts...)...)
}

func echoJob() queue.Job {
	return queue.Job{Class: "echo", Vars: map[string]any{"msg": "hi"}}
}
