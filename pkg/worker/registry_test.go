package worker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Abraxas-365/workq/pkg/errx"
	"github.com/Abraxas-365/workq/pkg/worker"
)

func TestRegistry_LookupBuildsOnce(t *testing.T) {
	reg := worker.NewRegistry()
	var built int
	reg.Register("count", func() (worker.Handler, error) {
		built++
		return worker.Echo, nil
	})

	for i := 0; i < 3; i++ {
		if _, err := reg.Lookup("count"); err != nil {
			t.Fatalf("lookup: %v", err)
		}
	}
	if built != 1 {
		t.Fatalf("expected factory to run once, ran %d times", built)
	}

	reg.Reload(map[string]worker.Factory{"count": func() (worker.Handler, error) {
		built++
		return worker.Echo, nil
	}})
	if _, err := reg.Lookup("count"); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if built != 2 {
		t.Fatalf("reload must drop cached instances, factory ran %d times", built)
	}
}

func TestRegistry_UnknownClass(t *testing.T) {
	reg := worker.NewRegistry()
	worker.RegisterBuiltins(reg)

	if _, err := reg.Lookup("missing"); !errx.HasCode(err, worker.ErrUnknownHandler) {
		t.Fatalf("expected unknown handler, got %v", err)
	}
	reg.Register("broken", func() (worker.Handler, error) { return nil, errors.New("no config") })
	if _, err := reg.Lookup("broken"); !errx.HasCode(err, worker.ErrUnknownHandler) {
		t.Fatalf("expected factory failure to surface as unknown handler, got %v", err)
	}

	classes := reg.Classes()
	if len(classes) != 3 || classes[0] != "broken" || classes[1] != "echo" || classes[2] != "sleep" {
		t.Fatalf("unexpected classes %v", classes)
	}
}

func TestEcho(t *testing.T) {
	out, err := worker.Echo.Perform(context.Background(), map[string]any{"msg": "hi"}, nil)
	if err != nil || out != "hi" {
		t.Fatalf("expected hi, got %v %v", out, err)
	}
}
