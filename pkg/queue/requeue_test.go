package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/Abraxas-365/workq/pkg/errx"
	"github.com/Abraxas-365/workq/pkg/queue"
	"github.com/redis/go-redis/v9"
)

func TestRequeue_ReinsertsStaleJobsOnce(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)
	clock := newFakeClock(1000)
	q := newQueue(t, rdb, clock)

	jobid, _ := q.Push(ctx, echoJob())
	if d, err := q.Pop(ctx, time.Second); err != nil || d.Outcome != queue.Delivered {
		t.Fatalf("pop: %+v %v", d, err)
	}

	// Still fresh.
	ids, err := q.Requeue(ctx, 60*time.Second)
	if err != nil || len(ids) != 0 {
		t.Fatalf("expected nothing to requeue, got %v %v", ids, err)
	}

	clock.Advance(2 * time.Minute)
	ids, err = q.Requeue(ctx, 60*time.Second)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if len(ids) != 1 || ids[0] != jobid {
		t.Fatalf("expected [%s], got %v", jobid, ids)
	}

	pending, _ := rdb.LRange(ctx, "sys|q|pending", 0, -1).Result()
	if len(pending) != 1 || pending[0] != jobid {
		t.Fatalf("expected job back on pending, got %v", pending)
	}
	stamp, _ := rdb.HGet(ctx, "sys|q|ongoing", jobid).Result()
	if stamp != "1120.000000" {
		t.Fatalf("expected refreshed timestamp, got %s", stamp)
	}

	ids, err = q.Requeue(ctx, 60*time.Second)
	if err != nil || len(ids) != 0 {
		t.Fatalf("second sweep should requeue nothing, got %v %v", ids, err)
	}
}

func TestRequeue_SkipsJobsAlreadyPending(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)
	clock := newFakeClock(1000)
	q := newQueue(t, rdb, clock)

	if _, err := q.Push(ctx, echoJob()); err != nil {
		t.Fatalf("push: %v", err)
	}
	clock.Advance(time.Hour)

	ids, err := q.Requeue(ctx, time.Second)
	if err != nil || len(ids) != 0 {
		t.Fatalf("a queued job is never duplicated, got %v %v", ids, err)
	}
	if n, _ := rdb.LLen(ctx, "sys|q|pending").Result(); n != 1 {
		t.Fatalf("expected one pending entry, got %d", n)
	}
}

func TestRequeue_StepKeepsJobAlive(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)
	clock := newFakeClock(1000)
	q := newQueue(t, rdb, clock)

	jobid, _ := q.Push(ctx, echoJob())
	q.Pop(ctx, time.Second)

	clock.Advance(50 * time.Second)
	if err := q.Step(ctx, jobid, "halfway"); err != nil {
		t.Fatalf("step: %v", err)
	}
	clock.Advance(50 * time.Second)

	ids, err := q.Requeue(ctx, 60*time.Second)
	if err != nil || len(ids) != 0 {
		t.Fatalf("job that reported a step is alive, got %v %v", ids, err)
	}
}

func TestRequeue_StepAfterCancelLeavesNothingToRequeue(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)
	clock := newFakeClock(1000)
	q := newQueue(t, rdb, clock)

	jobid, _ := q.Push(ctx, echoJob())
	if d, err := q.Pop(ctx, time.Second); err != nil || d.Outcome != queue.Delivered {
		t.Fatalf("pop: %+v %v", d, err)
	}
	if _, err := q.Cancel(ctx, jobid); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if err := q.Step(ctx, jobid, "still running"); !errx.HasCode(err, queue.ErrJobCancelled) {
		t.Fatalf("expected ErrJobCancelled from step, got %v", err)
	}
	if n, _ := rdb.HLen(ctx, "sys|q|ongoing").Result(); n != 0 {
		t.Fatalf("step must not leave the cancelled job in ongoing, got %d entries", n)
	}
	if n, _ := rdb.HLen(ctx, "sys|q|step").Result(); n != 0 {
		t.Fatalf("step must not leave a step for the cancelled job, got %d entries", n)
	}

	clock.Advance(2 * time.Minute)
	ids, err := q.Requeue(ctx, time.Minute)
	if err != nil || len(ids) != 0 {
		t.Fatalf("cancelled job must never be requeued, got %v %v", ids, err)
	}
	if d, err := q.Pop(ctx, 50*time.Millisecond); err != nil || d.Outcome != queue.TimedOut {
		t.Fatalf("expected empty queue, got %+v %v", d, err)
	}
}

func TestRequeue_PopOfCancelledJobEndsTheCycle(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)
	clock := newFakeClock(1000)
	q := newQueue(t, rdb, clock)

	jobid, _ := q.Push(ctx, echoJob())
	q.Pop(ctx, time.Second)
	if _, err := q.Cancel(ctx, jobid); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	// A crashed worker left a liveness entry behind after the cancel.
	rdb.HSet(ctx, "sys|q|ongoing", jobid, "1000.000000")

	clock.Advance(2 * time.Minute)
	ids, err := q.Requeue(ctx, time.Minute)
	if err != nil || len(ids) != 1 || ids[0] != jobid {
		t.Fatalf("expected the leftover entry to be requeued once, got %v %v", ids, err)
	}

	d, err := q.Pop(ctx, time.Second)
	if err != nil || d.Outcome != queue.Cancelled || d.JobID != jobid {
		t.Fatalf("expected cancelled delivery for %s, got %+v %v", jobid, d, err)
	}
	if n, _ := rdb.HLen(ctx, "sys|q|ongoing").Result(); n != 0 {
		t.Fatalf("discarding a cancelled job must clear ongoing, got %d entries", n)
	}

	clock.Advance(2 * time.Minute)
	ids, err = q.Requeue(ctx, time.Minute)
	if err != nil || len(ids) != 0 {
		t.Fatalf("second sweep should requeue nothing, got %v %v", ids, err)
	}
}

// interferingHook pushes onto the pending list from another client right
// after the first LRANGE, invalidating the WATCH of the running sweep.
type interferingHook struct {
	other   redis.UniversalClient
	key     string
	lranges int
}

func (h *interferingHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *interferingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if cmd.Name() == "lrange" {
			h.lranges++
			if h.lranges == 1 {
				h.other.LPush(ctx, h.key, "intruder")
			}
		}
		return err
	}
}

func (h *interferingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRequeue_RetriesWhenWatchedKeysChange(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	clock := newFakeClock(1000)
	q := newQueue(t, rdb, clock)

	jobid, _ := q.Push(ctx, echoJob())
	if d, err := q.Pop(ctx, time.Second); err != nil || d.Outcome != queue.Delivered {
		t.Fatalf("pop: %+v %v", d, err)
	}

	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { other.Close() })
	hook := &interferingHook{other: other, key: "sys|q|pending"}
	rdb.AddHook(hook)

	clock.Advance(2 * time.Minute)
	ids, err := q.Requeue(ctx, time.Minute)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if len(ids) != 1 || ids[0] != jobid {
		t.Fatalf("expected [%s], got %v", jobid, ids)
	}
	if hook.lranges != 2 {
		t.Fatalf("expected the sweep to run twice, ran %d times", hook.lranges)
	}

	pending, _ := other.LRange(ctx, "sys|q|pending", 0, -1).Result()
	count := 0
	for _, id := range pending {
		if id == jobid {
			count++
		}
	}
	if count != 1 || len(pending) != 2 {
		t.Fatalf("expected job requeued exactly once next to the intruder, got %v", pending)
	}
}
