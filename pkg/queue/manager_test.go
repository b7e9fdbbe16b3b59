package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/Abraxas-365/workq/pkg/config"
	"github.com/Abraxas-365/workq/pkg/errx"
	"github.com/Abraxas-365/workq/pkg/queue"
)

func newManager(t *testing.T, clock *fakeClock) *queue.Manager {
	t.Helper()
	_, rdb := newRedis(t)
	return queue.NewManager(rdb,
		queue.WithClock(clock.Now),
		queue.WithHostname("h"),
		queue.WithPID(1),
		queue.WithRequeueTimeout(30*time.Second),
	)
}

func TestManager_PopWithoutQueues(t *testing.T) {
	m := newManager(t, newFakeClock(1000))
	_, err := m.Pop(context.Background(), time.Second)
	if !errx.HasCode(err, queue.ErrNoQueues) || !errx.IsType(err, errx.TypeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestManager_PopTimesOutOnEmptyQueues(t *testing.T) {
	m := newManager(t, newFakeClock(1000))
	m.AddList([]config.QueuePair{{System: "a", Queue: "one"}, {System: "b", Queue: "two"}})

	d, err := m.Pop(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if d.Outcome != queue.TimedOut {
		t.Fatalf("expected timeout, got %s", d.Outcome)
	}
}

func TestManager_GetUnregistered(t *testing.T) {
	m := newManager(t, newFakeClock(1000))
	m.Add("a", "one")

	if _, err := m.Get("a", "two"); !errx.HasCode(err, queue.ErrQueueNotFound) {
		t.Fatalf("expected queue not found, got %v", err)
	}
	q, err := m.Get("a", "one")
	if err != nil || q.System() != "a" || q.Name() != "one" {
		t.Fatalf("expected registered queue, got %v %v", q, err)
	}
	if again := m.Add("a", "one"); again != q {
		t.Fatal("adding twice must return the existing queue")
	}
}

func TestManager_ClaimsThroughOwningQueue(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(1000)
	m := newManager(t, clock)
	qs := m.AddList([]config.QueuePair{{System: "a", Queue: "one"}, {System: "b", Queue: "two"}})

	for _, q := range qs {
		if q.ClientID() != m.Identity().String() {
			t.Fatalf("queues must share the manager identity, got %s", q.ClientID())
		}
	}

	jobid, err := qs[1].Push(ctx, echoJob())
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	d, err := m.Pop(ctx, time.Second)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if d.Outcome != queue.Delivered || d.JobID != jobid || d.Queue != qs[1] {
		t.Fatalf("expected delivery from b/two, got %+v", d)
	}
	if d.Job.Metadata.System != "b" {
		t.Fatalf("unexpected document %+v", d.Job.Metadata)
	}

	// Heartbeat lands on every managed queue.
	for _, q := range qs {
		reports, _ := q.Workers(ctx)
		if len(reports) != 1 || reports[0].WorkerID != m.Identity().String() {
			t.Fatalf("%s/%s: expected heartbeat, got %+v", q.System(), q.Name(), reports)
		}
	}

	if _, err := d.Queue.Success(ctx, "done", nil); err != nil {
		t.Fatalf("success: %v", err)
	}
	st, _ := qs[1].Status(ctx, jobid)
	if st.State != queue.StateSuccess {
		t.Fatalf("expected SUCCESS, got %s", st.State)
	}
}

func TestManager_RequeueAndExit(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(1000)
	m := newManager(t, clock)
	a := m.Add("a", "one")
	b := m.Add("b", "two")

	ja, _ := a.Push(ctx, echoJob())
	jb, _ := b.Push(ctx, echoJob())
	m.Pop(ctx, time.Second)
	m.Pop(ctx, time.Second)

	clock.Advance(time.Minute)
	ids, err := m.Requeue(ctx)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if len(ids) != 2 || ids[0] != ja || ids[1] != jb {
		t.Fatalf("expected both jobs requeued in queue order, got %v", ids)
	}

	if err := m.Exit(ctx); err != nil {
		t.Fatalf("exit: %v", err)
	}
	for _, q := range m.Queues() {
		if reports, _ := q.Workers(ctx); len(reports) != 0 {
			t.Fatalf("expected identity deregistered, got %+v", reports)
		}
	}
}
