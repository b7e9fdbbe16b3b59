package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/Abraxas-365/workq/pkg/errx"
	"github.com/Abraxas-365/workq/pkg/worker"
)

type recordedStep struct{ jobid, name string }

type fakeStepper struct{ steps []recordedStep }

func (f *fakeStepper) Step(_ context.Context, jobid, name string) error {
	f.steps = append(f.steps, recordedStep{jobid, name})
	return nil
}

type tickClock struct{ now time.Time }

// Now advances one second per call.
func (c *tickClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func TestReporter_RecordsSteps(t *testing.T) {
	ctx := context.Background()
	q := &fakeStepper{}
	clock := &tickClock{now: time.Unix(1000, 0)}
	rep := worker.NewReporter(q, "j1", clock.Now, nil)

	if err := rep.Step(ctx, "download", 1); err != nil {
		t.Fatalf("step: %v", err)
	}
	if err := rep.Step(ctx, "process", 2); err != nil {
		t.Fatalf("step: %v", err)
	}
	rep.Increment()
	rep.Finish()

	if len(q.steps) != 2 || q.steps[0] != (recordedStep{"j1", "download"}) || q.steps[1].name != "process" {
		t.Fatalf("steps not forwarded to the queue: %+v", q.steps)
	}

	stats := rep.Stats()
	if stats["start_time"] != 1001.0 || stats["stop_time"] != 1004.0 || stats["elapsed"] != 3.0 {
		t.Fatalf("unexpected timings %v", stats)
	}
	steps := stats["steps"].([]worker.StepStats)
	if len(steps) != 2 {
		t.Fatalf("expected 2 closed steps, got %+v", steps)
	}
	if steps[0].Step != "download" || steps[0].Elapsed != 1 {
		t.Fatalf("unexpected first step %+v", steps[0])
	}
	if steps[1].Step != "process" || steps[1].StartTime != 1003 || steps[1].StopTime != 1004 {
		t.Fatalf("unexpected second step %+v", steps[1])
	}
}

func TestReporter_RejectsEmptyStep(t *testing.T) {
	rep := worker.NewReporter(&fakeStepper{}, "j1", nil, nil)
	if err := rep.Step(context.Background(), "x", 0); !errx.HasCode(err, worker.ErrInvalidStep) {
		t.Fatalf("expected invalid step, got %v", err)
	}
}
