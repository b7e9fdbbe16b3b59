package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Abraxas-365/workq/pkg/errx"
	"github.com/Abraxas-365/workq/pkg/ptrx"
	"github.com/redis/go-redis/v9"
)

// Queue owns one system/queue namespace in the store. Every method maps to a
// single atomic batch except Requeue, which runs an optimistic transaction.
// A Queue holds no mutable state of its own, so any number of processes may
// operate on the same namespace concurrently.
type Queue struct {
	rdb      redis.UniversalClient
	system   string
	name     string
	keys     keys
	identity Identity
	clientID string
	opts     options
}

// New creates a Queue bound to (system, name) with a freshly generated worker identity.
func New(rdb redis.UniversalClient, system, name string, opts ...Option) *Queue {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	id := o.resolveIdentity()
	return &Queue{
		rdb:      rdb,
		system:   system,
		name:     name,
		keys:     newKeys(system, name),
		identity: id,
		clientID: id.String(),
		opts:     o,
	}
}

func (q *Queue) System() string { return q.system }
func (q *Queue) Name() string   { return q.name }

// ClientID is this worker's identity string.
func (q *Queue) ClientID() string { return q.clientID }

func (q *Queue) now() time.Time { return q.opts.clock() }

// Push validates, stamps and stores a job, making it visible to Pop.
func (q *Queue) Push(ctx context.Context, job Job) (string, error) {
	if job.Class == "" {
		return "", queueErrors.New(ErrMissingClass)
	}
	if job.Vars == nil {
		return "", queueErrors.New(ErrMissingVars).WithDetail("class", job.Class)
	}

	seq, err := q.rdb.Incr(ctx, q.keys.seq).Result()
	if err != nil {
		return "", storeError("push", err)
	}

	now := q.now()
	jobid := fmt.Sprintf("%s.%d.%d.%d", q.opts.hostname, q.opts.pid, now.Unix(), seq)
	job.Metadata.JobID = jobid
	job.Metadata.Queue = q.name
	job.Metadata.System = q.system
	job.Metadata.Status = ""

	data, err := json.Marshal(job)
	if err != nil {
		return "", queueErrors.NewWithCause(ErrMarshal, err).WithDetail("jobid", jobid)
	}

	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.keys.jobs, jobid, data)
		pipe.LPush(ctx, q.keys.pending, jobid)
		pipe.HSet(ctx, q.keys.ongoing, jobid, formatTime(now))
		return nil
	})
	if err != nil {
		return "", storeError("push", err).WithDetail("jobid", jobid)
	}
	return jobid, nil
}

// Job returns the stored document.
func (q *Queue) Job(ctx context.Context, jobid string) (*Job, error) {
	raw, err := q.rdb.HGet(ctx, q.keys.jobs, jobid).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, queueErrors.New(ErrJobNotFound).WithDetail("jobid", jobid)
	}
	if err != nil {
		return nil, storeError("job", err).WithDetail("jobid", jobid)
	}
	return decodeJob(jobid, raw)
}

// Current returns the jobid this worker has claimed, or "" when idle.
func (q *Queue) Current(ctx context.Context) (string, error) {
	jobid, err := q.rdb.HGet(ctx, q.keys.current, q.clientID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", storeError("current", err)
	}
	return jobid, nil
}

// Step records coarse progress for a running job. It doubles as the
// liveness signal: it refreshes both the worker heartbeat and the job's
// last-activity timestamp. A job cancelled while running keeps no
// liveness entries and Step returns ErrJobCancelled, so the handler can
// stop early.
func (q *Queue) Step(ctx context.Context, jobid, name string) error {
	now := formatTime(q.now())
	var exists *redis.BoolCmd
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.keys.activity, q.clientID, now)
		exists = pipe.HExists(ctx, q.keys.jobs, jobid)
		pipe.HSet(ctx, q.keys.ongoing, jobid, now)
		pipe.HSet(ctx, q.keys.step, jobid, name)
		return nil
	})
	if err != nil {
		return storeError("step", err).WithDetail("jobid", jobid)
	}
	if !exists.Val() {
		if err := q.forget(ctx, jobid); err != nil {
			return err
		}
		return queueErrors.New(ErrJobCancelled).WithDetail("jobid", jobid)
	}
	return nil
}

// Success finalizes this worker's current job with its output and stats.
// The stored document always carries a stats object, even an empty one.
func (q *Queue) Success(ctx context.Context, output any, stats map[string]any) (string, error) {
	if stats == nil {
		stats = map[string]any{}
	}
	return q.finalize(ctx, q.keys.success, func(job *Job) {
		job.Output = output
		job.Stats = stats
	})
}

// Failed finalizes this worker's current job with the handler's error.
func (q *Queue) Failed(ctx context.Context, lastError, traceback string) (string, error) {
	return q.finalize(ctx, q.keys.failed, func(job *Job) {
		job.LastError = lastError
		job.Traceback = traceback
	})
}

func (q *Queue) finalize(ctx context.Context, terminalKey string, merge func(*Job)) (string, error) {
	jobid, err := q.Current(ctx)
	if err != nil {
		return "", err
	}
	if jobid == "" {
		return "", queueErrors.New(ErrNoActiveJob).WithDetail("worker", q.clientID)
	}

	job, err := q.Job(ctx, jobid)
	if err != nil {
		if !errx.HasCode(err, ErrJobNotFound) {
			return "", err
		}
		// Cancelled while running: drop the claim, never resurrect the document.
		if releaseErr := q.release(ctx, jobid); releaseErr != nil {
			return "", releaseErr
		}
		return jobid, queueErrors.New(ErrJobCancelled).WithDetail("jobid", jobid)
	}

	merge(job)
	data, err := json.Marshal(job)
	if err != nil {
		return "", queueErrors.NewWithCause(ErrMarshal, err).WithDetail("jobid", jobid)
	}

	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, terminalKey, jobid)
		pipe.HDel(ctx, q.keys.current, q.clientID)
		pipe.HDel(ctx, q.keys.ongoing, jobid)
		pipe.HDel(ctx, q.keys.step, jobid)
		pipe.HSet(ctx, q.keys.jobs, jobid, data)
		return nil
	})
	if err != nil {
		return "", storeError("finalize", err).WithDetail("jobid", jobid)
	}
	return jobid, nil
}

// release clears this worker's claim on jobid along with its liveness entries.
func (q *Queue) release(ctx context.Context, jobid string) error {
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, q.keys.current, q.clientID)
		pipe.HDel(ctx, q.keys.ongoing, jobid)
		pipe.HDel(ctx, q.keys.step, jobid)
		return nil
	})
	if err != nil {
		return storeError("release", err).WithDetail("jobid", jobid)
	}
	return nil
}

// forget drops the liveness entries of a job that no longer has a
// document, so no later sweep puts it back on pending.
func (q *Queue) forget(ctx context.Context, jobid string) error {
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, q.keys.ongoing, jobid)
		pipe.HDel(ctx, q.keys.step, jobid)
		return nil
	})
	if err != nil {
		return storeError("forget", err).WithDetail("jobid", jobid)
	}
	return nil
}

// Status classifies a job. ACTIVE covers both queued and running jobs; a
// non-nil Step tells the caller the handler has started.
func (q *Queue) Status(ctx context.Context, jobid string) (Status, error) {
	var (
		exists, failed, success, cancelled, ongoing *redis.BoolCmd
		step                                        *redis.StringCmd
	)
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		exists = pipe.HExists(ctx, q.keys.jobs, jobid)
		failed = pipe.SIsMember(ctx, q.keys.failed, jobid)
		success = pipe.SIsMember(ctx, q.keys.success, jobid)
		cancelled = pipe.SIsMember(ctx, q.keys.cancelled, jobid)
		ongoing = pipe.HExists(ctx, q.keys.ongoing, jobid)
		step = pipe.HGet(ctx, q.keys.step, jobid)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return Status{}, storeError("status", err).WithDetail("jobid", jobid)
	}

	st := Status{State: StateUnknown, Step: ptrx.NonZero(step.Val())}

	switch {
	case !exists.Val():
		st.State = StateUnknown
	case failed.Val():
		st.State = StateFailed
	case success.Val():
		st.State = StateSuccess
	case cancelled.Val():
		st.State = StateCancelled
	case ongoing.Val():
		st.State = StateActive
	}
	return st, nil
}

// Cancel deletes the job document and strips the job from every container.
// The jobid is remembered in the cancelled set so a worker that later pops
// it from pending discards it. A running handler is not interrupted.
func (q *Queue) Cancel(ctx context.Context, jobid string) (*Job, error) {
	var doc *redis.StringCmd
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, q.keys.cancelled, jobid)
		doc = pipe.HGet(ctx, q.keys.jobs, jobid)
		pipe.HDel(ctx, q.keys.jobs, jobid)
		pipe.LRem(ctx, q.keys.pending, 0, jobid)
		pipe.SRem(ctx, q.keys.success, jobid)
		pipe.SRem(ctx, q.keys.failed, jobid)
		pipe.HDel(ctx, q.keys.ongoing, jobid)
		pipe.HDel(ctx, q.keys.step, jobid)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, storeError("cancel", err).WithDetail("jobid", jobid)
	}

	raw, err := doc.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, queueErrors.New(ErrJobNotFound).WithDetail("jobid", jobid)
	}
	if err != nil {
		return nil, storeError("cancel", err).WithDetail("jobid", jobid)
	}
	return decodeJob(jobid, raw)
}

// Exit removes this worker's heartbeat entry.
func (q *Queue) Exit(ctx context.Context) error {
	if err := q.rdb.HDel(ctx, q.keys.activity, q.clientID).Err(); err != nil {
		return storeError("exit", err)
	}
	return nil
}
