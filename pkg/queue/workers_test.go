package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/Abraxas-365/workq/pkg/errx"
	"github.com/Abraxas-365/workq/pkg/queue"
)

func TestWorkers_ReportsEachWorkersOwnClaim(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)
	clock := newFakeClock(1000)
	busy := newQueue(t, rdb, clock, queue.WithPID(1))
	idle := newQueue(t, rdb, clock, queue.WithPID(2))

	jobid, _ := busy.Push(ctx, echoJob())
	if d, _ := busy.Pop(ctx, time.Second); d.Outcome != queue.Delivered {
		t.Fatalf("expected delivery, got %s", d.Outcome)
	}
	if d, _ := idle.Pop(ctx, time.Second); d.Outcome != queue.TimedOut {
		t.Fatalf("expected timeout, got %s", d.Outcome)
	}
	clock.Advance(10 * time.Second)

	// Queried from the idle worker: the busy one must still show PROCESSING.
	reports, err := idle.Workers(ctx)
	if err != nil {
		t.Fatalf("workers: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 workers, got %d", len(reports))
	}
	byID := map[string]queue.WorkerReport{}
	for _, r := range reports {
		byID[r.WorkerID] = r
	}

	b := byID[busy.ClientID()]
	if b.Status != queue.WorkerProcessing || b.JobID == nil || *b.JobID != jobid {
		t.Fatalf("expected busy worker PROCESSING %s, got %+v", jobid, b)
	}
	if b.Hostname != "h" || b.PID != 1 || b.Last != 10 || b.Uptime != 10 {
		t.Fatalf("unexpected report %+v", b)
	}
	if i := byID[idle.ClientID()]; i.Status != queue.WorkerIdle || i.JobID != nil {
		t.Fatalf("expected idle worker IDLE, got %+v", i)
	}
}

func TestWorkers_StaleAfterLivenessThreshold(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)
	clock := newFakeClock(1000)
	q := newQueue(t, rdb, clock, queue.WithLivenessThreshold(5*time.Second))

	q.Pop(ctx, time.Second)
	clock.Advance(6 * time.Second)

	reports, err := q.Workers(ctx)
	if err != nil {
		t.Fatalf("workers: %v", err)
	}
	if len(reports) != 1 || reports[0].Status != queue.WorkerStale {
		t.Fatalf("expected one STALE worker, got %+v", reports)
	}
}

func TestWorkers_UnreadableHeartbeatIsStale(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)
	q := newQueue(t, rdb, newFakeClock(1000))

	q.Pop(ctx, 50*time.Millisecond)
	rdb.HSet(ctx, "sys|q|activity", q.ClientID(), "garbage")

	reports, err := q.Workers(ctx)
	if err != nil {
		t.Fatalf("workers: %v", err)
	}
	if len(reports) != 1 || reports[0].Status != queue.WorkerStale {
		t.Fatalf("expected one STALE worker, got %+v", reports)
	}
}

func TestDeleteWorker(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)
	q := newQueue(t, rdb, newFakeClock(1000))

	q.Pop(ctx, time.Second)
	report, err := q.DeleteWorker(ctx, q.ClientID())
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if report.WorkerID != q.ClientID() || report.Status != queue.WorkerIdle {
		t.Fatalf("unexpected last report %+v", report)
	}

	reports, _ := q.Workers(ctx)
	if len(reports) != 0 {
		t.Fatalf("expected no workers, got %+v", reports)
	}
	if _, err := q.DeleteWorker(ctx, q.ClientID()); !errx.HasCode(err, queue.ErrWorkerNotFound) {
		t.Fatalf("expected worker not found, got %v", err)
	}
}

func TestExit_RemovesHeartbeat(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)
	q := newQueue(t, rdb, newFakeClock(1000))

	q.Pop(ctx, time.Second)
	if err := q.Exit(ctx); err != nil {
		t.Fatalf("exit: %v", err)
	}
	reports, _ := q.Workers(ctx)
	if len(reports) != 0 {
		t.Fatalf("expected heartbeat removed, got %+v", reports)
	}
}
