package worker

import (
	"context"
	"fmt"
	"time"
)

// Echo returns vars["msg"], or the whole vars map when msg is absent.
var Echo = HandlerFunc(func(ctx context.Context, vars map[string]any, r *Reporter) (any, error) {
	if msg, ok := vars["msg"]; ok {
		return msg, nil
	}
	return vars, nil
})

// Sleep waits vars["seconds"] seconds, reporting one sub-step per second.
var Sleep = HandlerFunc(func(ctx context.Context, vars map[string]any, r *Reporter) (any, error) {
	secs, ok := vars["seconds"].(float64)
	if !ok || secs < 0 {
		return nil, fmt.Errorf("sleep: vars.seconds must be a non-negative number, got %v", vars["seconds"])
	}
	n := int(secs)
	if err := r.Step(ctx, "sleeping", max(n, 1)); err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
			r.Increment()
		}
	}
	return secs, nil
})

// RegisterBuiltins adds the echo and sleep classes.
func RegisterBuiltins(reg *Registry) {
	reg.Register("echo", Static(Echo))
	reg.Register("sleep", Static(Sleep))
}
