package queue

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/Abraxas-365/workq/pkg/ptrx"
	"github.com/redis/go-redis/v9"
)

// WorkerStatus is derived from a worker's heartbeat age and claim.
type WorkerStatus string

const (
	WorkerStale      WorkerStatus = "STALE"
	WorkerProcessing WorkerStatus = "PROCESSING"
	WorkerIdle       WorkerStatus = "IDLE"
)

// WorkerReport describes one worker that has polled this queue. Durations
// are in seconds.
type WorkerReport struct {
	WorkerID string       `json:"workerid"`
	Hostname string       `json:"hostname"`
	PID      int          `json:"pid"`
	Started  string       `json:"started"`
	Uptime   float64      `json:"uptime"`
	Last     float64      `json:"last"`
	JobID    *string      `json:"jobid"`
	Status   WorkerStatus `json:"status"`
}

// Workers reports every worker with a heartbeat entry.
func (q *Queue) Workers(ctx context.Context) ([]WorkerReport, error) {
	var activity, current *redis.MapStringStringCmd
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		activity = pipe.HGetAll(ctx, q.keys.activity)
		current = pipe.HGetAll(ctx, q.keys.current)
		return nil
	})
	if err != nil {
		return nil, storeError("workers", err)
	}

	claims := current.Val()
	now := q.now()
	reports := make([]WorkerReport, 0, len(activity.Val()))
	for workerid, last := range activity.Val() {
		reports = append(reports, q.report(workerid, last, claims[workerid], now))
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].WorkerID < reports[j].WorkerID })
	return reports, nil
}

// DeleteWorker removes a worker's heartbeat entry and returns its last
// report. It only deletes bookkeeping; a live process will re-register on
// its next poll.
func (q *Queue) DeleteWorker(ctx context.Context, workerid string) (WorkerReport, error) {
	var last, claim *redis.StringCmd
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		last = pipe.HGet(ctx, q.keys.activity, workerid)
		claim = pipe.HGet(ctx, q.keys.current, workerid)
		pipe.HDel(ctx, q.keys.activity, workerid)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return WorkerReport{}, storeError("worker_delete", err).WithDetail("workerid", workerid)
	}

	stamp, err := last.Result()
	if errors.Is(err, redis.Nil) {
		return WorkerReport{}, queueErrors.New(ErrWorkerNotFound).WithDetail("workerid", workerid)
	}
	if err != nil {
		return WorkerReport{}, storeError("worker_delete", err).WithDetail("workerid", workerid)
	}
	return q.report(workerid, stamp, claim.Val(), q.now()), nil
}

// report builds the status of workerid from its own claim, not the caller's.
func (q *Queue) report(workerid, lastStamp, jobid string, now time.Time) WorkerReport {
	r := WorkerReport{WorkerID: workerid}

	// An unreadable heartbeat counts as stale, as in the requeue sweep.
	last, err := parseTime(lastStamp)
	stale := err != nil
	if !stale {
		r.Last = now.Sub(last).Seconds()
	}
	if id, err := ParseIdentity(workerid); err == nil {
		r.Hostname = id.Hostname
		r.PID = id.PID
		r.Started = id.Started.Format("2006-01-02T15:04:05.000000")
		r.Uptime = now.Sub(id.Started).Seconds()
	}
	r.JobID = ptrx.NonZero(jobid)

	switch {
	case stale, r.Last > q.opts.liveness.Seconds():
		r.Status = WorkerStale
	case r.JobID != nil:
		r.Status = WorkerProcessing
	default:
		r.Status = WorkerIdle
	}
	return r
}
