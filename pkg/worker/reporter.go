package worker

import (
	"context"
	"time"

	"github.com/Abraxas-365/workq/pkg/logx"
)

// Stepper is the part of a queue a Reporter writes to.
type Stepper interface {
	Step(ctx context.Context, jobid, name string) error
}

// StepStats is one completed step.
type StepStats struct {
	Step      string  `json:"step"`
	StartTime float64 `json:"start_time"`
	StopTime  float64 `json:"stop_time"`
	Elapsed   float64 `json:"elapsed"`
}

// Reporter is handed to a running handler to report coarse progress. Every
// Step is forwarded to the queue, which keeps the job from being requeued.
type Reporter struct {
	queue  Stepper
	jobid  string
	clock  func() time.Time
	logger *logx.Logger

	start, stop time.Time
	steps       []StepStats

	step      string
	stepStart time.Time
	total     int
	remaining int
}

// NewReporter starts the job clock.
func NewReporter(q Stepper, jobid string, clock func() time.Time, logger *logx.Logger) *Reporter {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = logx.With(logx.Fields{"jobid": jobid})
	}
	return &Reporter{queue: q, jobid: jobid, clock: clock, logger: logger, start: clock()}
}

// JobID is the id of the job being reported on.
func (r *Reporter) JobID() string { return r.jobid }

// Step closes the previous step and starts a new one expecting count
// sub-steps, which the handler marks with Increment.
func (r *Reporter) Step(ctx context.Context, name string, count int) error {
	if count < 1 {
		return workerErrors.New(ErrInvalidStep).WithDetail("count", count)
	}
	if r.total > 1 {
		r.Increment()
	}

	now := r.clock()
	if r.step != "" {
		r.record(now)
	}
	r.step = name
	r.stepStart = now
	r.total = count
	r.remaining = count

	r.logger.Infof("step %s", name)
	if count > 1 {
		r.logger.Infof("expecting %d sub-steps", count)
	}
	return r.queue.Step(ctx, r.jobid, name)
}

// Increment marks one sub-step of the current step as done.
func (r *Reporter) Increment() {
	if r.total == 0 {
		return
	}
	progress := 100 - r.remaining*100/r.total
	r.logger.Infof("%s progress: %d%%", r.step, progress)
	if r.remaining > 0 {
		r.remaining--
	}
}

// Finish stops the job clock and closes the open step.
func (r *Reporter) Finish() {
	r.stop = r.clock()
	if r.step != "" {
		r.record(r.stop)
		r.step = ""
	}
	r.logger.Info("job completed")
}

// Stats is stored on the job document on success.
func (r *Reporter) Stats() map[string]any {
	stop := r.stop
	if stop.IsZero() {
		stop = r.clock()
	}
	steps := make([]StepStats, len(r.steps))
	copy(steps, r.steps)
	return map[string]any{
		"start_time": epoch(r.start),
		"stop_time":  epoch(stop),
		"elapsed":    stop.Sub(r.start).Seconds(),
		"steps":      steps,
	}
}

func (r *Reporter) record(stop time.Time) {
	r.steps = append(r.steps, StepStats{
		Step:      r.step,
		StartTime: epoch(r.stepStart),
		StopTime:  epoch(stop),
		Elapsed:   stop.Sub(r.stepStart).Seconds(),
	})
}

func epoch(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}
