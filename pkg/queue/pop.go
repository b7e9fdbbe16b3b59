package queue

import (
	"context"
	"errors"
	"time"

	"github.com/Abraxas-365/workq/pkg/logx"
	"github.com/redis/go-redis/v9"
)

// Outcome tags the result of a blocking dequeue. Timeouts and cancelled
// claims are routine poll results, not errors.
type Outcome int

const (
	// TimedOut means nothing arrived within the wait window; poll again.
	TimedOut Outcome = iota
	// Delivered means Job is now claimed by this worker.
	Delivered
	// Cancelled means the dequeued id had been cancelled; its slot is
	// consumed and the caller should poll again.
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Cancelled:
		return "cancelled"
	default:
		return "timed_out"
	}
}

// Delivery is what Pop hands back to a worker.
type Delivery struct {
	Outcome Outcome
	JobID   string
	Job     *Job
	// Queue is the queue the job was claimed from; finalize through it.
	Queue *Queue
}

// Err converts a non-delivered outcome to the matching coded error, for
// callers that surface poll results over an error channel.
func (d Delivery) Err() error {
	switch d.Outcome {
	case Delivered:
		return nil
	case Cancelled:
		return queueErrors.New(ErrJobCancelled).WithDetail("jobid", d.JobID)
	default:
		return queueErrors.New(ErrTimeout)
	}
}

// Pop refreshes this worker's heartbeat and waits up to timeout for a job.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (Delivery, error) {
	if err := q.heartbeat(ctx); err != nil {
		return Delivery{}, err
	}

	res, err := q.rdb.BRPop(ctx, timeout, q.keys.pending).Result()
	if errors.Is(err, redis.Nil) {
		return Delivery{Outcome: TimedOut}, nil
	}
	if err != nil {
		return Delivery{}, storeError("pop", err)
	}
	return q.activate(ctx, res[1])
}

func (q *Queue) heartbeat(ctx context.Context) error {
	if err := q.rdb.HSet(ctx, q.keys.activity, q.clientID, formatTime(q.now())).Err(); err != nil {
		return storeError("heartbeat", err)
	}
	return nil
}

// activate claims a jobid that was just removed from pending.
func (q *Queue) activate(ctx context.Context, jobid string) (Delivery, error) {
	cancelled, err := q.rdb.SIsMember(ctx, q.keys.cancelled, jobid).Result()
	if err != nil {
		return Delivery{}, storeError("activate", err).WithDetail("jobid", jobid)
	}
	if cancelled {
		// A step reported after the cancel may have left it in ongoing.
		if err := q.forget(ctx, jobid); err != nil {
			return Delivery{}, err
		}
		logx.WithFields(logx.Fields{"jobid": jobid, "queue": q.name, "system": q.system}).
			Info("queue: discarding cancelled job")
		return Delivery{Outcome: Cancelled, JobID: jobid, Queue: q}, nil
	}

	now := formatTime(q.now())
	var doc *redis.StringCmd
	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		doc = pipe.HGet(ctx, q.keys.jobs, jobid)
		pipe.HSet(ctx, q.keys.ongoing, jobid, now)
		pipe.HSet(ctx, q.keys.current, q.clientID, jobid)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return Delivery{}, storeError("activate", err).WithDetail("jobid", jobid)
	}

	raw, err := doc.Bytes()
	if errors.Is(err, redis.Nil) {
		// The document disappeared between push and claim.
		if err := q.release(ctx, jobid); err != nil {
			return Delivery{}, err
		}
		return Delivery{Outcome: Cancelled, JobID: jobid, Queue: q}, nil
	}
	if err != nil {
		return Delivery{}, storeError("activate", err).WithDetail("jobid", jobid)
	}

	job, err := decodeJob(jobid, raw)
	if err != nil {
		return Delivery{}, err
	}
	return Delivery{Outcome: Delivered, JobID: jobid, Job: job, Queue: q}, nil
}
