package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Abraxas-365/workq/pkg/asyncx"
	"github.com/Abraxas-365/workq/pkg/errx"
	"github.com/Abraxas-365/workq/pkg/logx"
	"github.com/Abraxas-365/workq/pkg/queue"
)

// Runner is the worker execution loop: it polls a Manager, runs the
// handler registered for each delivered job and finalizes the job with the
// handler's result. It processes one job at a time.
type Runner struct {
	manager  *queue.Manager
	registry *Registry
	opts     Options
	logger   *logx.Logger

	mu      sync.Mutex
	running bool
}

// NewRunner creates a runner over the queues registered on manager.
func NewRunner(manager *queue.Manager, registry *Registry, options ...Option) *Runner {
	opts := defaultOptions()
	for _, o := range options {
		o(&opts)
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	return &Runner{
		manager:  manager,
		registry: registry,
		opts:     opts,
		logger:   logx.With(logx.Fields{"worker": manager.Identity().String()}),
	}
}

// Run processes jobs until ctx is cancelled. A job that is already running
// when ctx is cancelled is finished and finalized before Run returns. On
// the way out the worker's heartbeat is removed from every queue.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return workerErrors.New(ErrAlreadyRunning)
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	queues := r.manager.Queues()
	names := make([]string, 0, len(queues))
	for _, q := range queues {
		names = append(names, q.System()+"/"+q.Name())
	}
	r.logger.Infof("worker: polling %v with classes %v", names, r.registry.Classes())

	sweepCtx, stopSweep := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		asyncx.Every(sweepCtx, r.opts.RequeueInterval, r.sweep)
	}()

	err := r.loop(ctx)

	stopSweep()
	wg.Wait()

	exitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if exitErr := r.manager.Exit(exitCtx); exitErr != nil {
		r.logger.WithError(exitErr).Warn("worker: failed to deregister")
	}
	r.logger.Info("worker: exiting gracefully, no claimed job left unprocessed")
	return err
}

func (r *Runner) loop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		d, err := r.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		r.opts.Metrics.polls.WithLabelValues(d.Outcome.String()).Inc()

		switch d.Outcome {
		case queue.Delivered:
			r.process(context.WithoutCancel(ctx), d)
		default:
			r.sweep(ctx)
		}
	}
}

// poll retries store failures with backoff; any other error ends the loop.
func (r *Runner) poll(ctx context.Context) (queue.Delivery, error) {
	return asyncx.RetryWithBackoff(ctx, asyncx.Backoff{
		Attempts: r.opts.ReconnectAttempts,
		Initial:  r.opts.ReconnectDelay,
		Max:      time.Minute,
		Retryable: func(err error) bool {
			return errx.HasCode(err, queue.ErrStore) && ctx.Err() == nil
		},
		OnRetry: func(attempt int, delay time.Duration, err error) {
			r.logger.WithError(err).Errorf("worker: store unavailable, retry %d in %s", attempt, delay)
		},
	}, func(ctx context.Context) (queue.Delivery, error) {
		return r.manager.Pop(ctx, r.opts.PollTimeout)
	})
}

func (r *Runner) sweep(ctx context.Context) {
	ids, err := r.manager.Requeue(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.WithError(err).Warn("worker: requeue sweep failed")
		}
		return
	}
	if len(ids) > 0 {
		r.opts.Metrics.requeued.Add(float64(len(ids)))
		r.logger.Infof("worker: requeued %s", strings.Join(ids, ","))
	}
}

func (r *Runner) process(ctx context.Context, d queue.Delivery) {
	job := d.Job
	q := d.Queue
	logger := r.logger.With(logx.Fields{
		"jobid":  d.JobID,
		"queue":  q.Name(),
		"system": q.System(),
		"class":  job.Class,
	})
	logger.Info("worker: processing job")

	rep := NewReporter(q, d.JobID, r.opts.Clock, logger)
	start := time.Now()
	output, traceback, runErr := r.execute(ctx, job, rep)
	r.opts.Metrics.duration.WithLabelValues(q.System(), q.Name(), job.Class).Observe(time.Since(start).Seconds())

	state := queue.StateSuccess
	var finalizeErr error
	if runErr == nil {
		rep.Finish()
		_, finalizeErr = q.Success(ctx, output, rep.Stats())
	} else {
		state = queue.StateFailed
		if !errx.HasCode(runErr, queue.ErrJobCancelled) {
			logger.WithError(runErr).Error("worker: job failed")
		}
		_, finalizeErr = q.Failed(ctx, failureMessage(runErr), traceback)
	}

	outcome := strings.ToLower(string(state))
	switch {
	case errx.HasCode(finalizeErr, queue.ErrJobCancelled):
		logger.Info("worker: job was cancelled while running, result discarded")
		outcome = "cancelled"
	case finalizeErr != nil:
		logger.WithError(finalizeErr).Error("worker: failed to finalize job")
		outcome = "error"
	}
	r.opts.Metrics.jobs.WithLabelValues(q.System(), q.Name(), job.Class, outcome).Inc()

	if finalizeErr == nil {
		logger.Infof("worker: job finished with %s", state)
		r.archive(ctx, q, d.JobID, state, logger)
	}
}

// execute runs the handler. Panics are recovered into a handler failure
// carrying the goroutine stack as traceback.
func (r *Runner) execute(ctx context.Context, job *queue.Job, rep *Reporter) (output any, traceback string, err error) {
	if len(job.Install) > 0 {
		if err := rep.Step(ctx, installStep(job.Install), 1); err != nil {
			return nil, "", err
		}
	}

	h, err := r.registry.Lookup(job.Class)
	if err != nil {
		return nil, "", err
	}

	defer func() {
		if p := recover(); p != nil {
			output = nil
			traceback = string(debug.Stack())
			err = workerErrors.NewWithMessage(ErrHandlerPanic, fmt.Sprintf("panic: %v", p)).
				WithDetail("class", job.Class)
		}
	}()

	output, err = h.Perform(ctx, job.Vars, rep)
	if err != nil {
		return nil, errorChain(err), err
	}
	return output, "", nil
}

func (r *Runner) archive(ctx context.Context, q *queue.Queue, jobid string, state queue.State, logger *logx.Logger) {
	if r.opts.Archiver == nil {
		return
	}
	doc, err := q.Job(ctx, jobid)
	if err != nil {
		logger.WithError(err).Warn("worker: finished job vanished before archiving")
		return
	}
	if err := r.opts.Archiver.Archive(ctx, doc, state); err != nil {
		logger.WithError(err).Warn("worker: failed to archive job")
	}
}

// failureMessage is what lands in last_error. Coded errors keep only their
// message; the code is still visible in the traceback.
func failureMessage(err error) string {
	var e *errx.Error
	if errors.As(err, &e) && e.Err == nil {
		return e.Message
	}
	return err.Error()
}

func errorChain(err error) string {
	var lines []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		lines = append(lines, e.Error())
	}
	return strings.Join(lines, "\n")
}

// installStep names the step reported for a job's install section. The
// packages themselves are not installed by the worker.
func installStep(install map[string]any) string {
	keys := make([]string, 0, len(install))
	for k := range install {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %v", k, install[k]))
	}
	return "installing " + strings.Join(parts, ", ")
}
