package worker

import (
	"context"
	"sort"
	"sync"

	"github.com/Abraxas-365/workq/pkg/logx"
)

// Handler executes one job class. vars is the job's parameter map; output is
// stored on the job document on success.
type Handler interface {
	Perform(ctx context.Context, vars map[string]any, r *Reporter) (any, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, vars map[string]any, r *Reporter) (any, error)

func (f HandlerFunc) Perform(ctx context.Context, vars map[string]any, r *Reporter) (any, error) {
	return f(ctx, vars, r)
}

// Factory builds a Handler. It runs once per class; the instance is reused
// for every job of that class until the registry is reloaded.
type Factory func() (Handler, error)

// Static wraps an already built handler as a Factory.
func Static(h Handler) Factory {
	return func() (Handler, error) { return h, nil }
}

// Registry maps job classes to handler factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]Handler),
	}
}

// Register adds or replaces the factory for class.
func (r *Registry) Register(class string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[class] = f
	delete(r.instances, class)
}

// RegisterFunc is shorthand for Register(class, Static(fn)).
func (r *Registry) RegisterFunc(class string, fn HandlerFunc) {
	r.Register(class, Static(fn))
}

// Lookup returns the handler for class, building it on first use.
func (r *Registry) Lookup(class string) (Handler, error) {
	r.mu.RLock()
	h, ok := r.instances[class]
	r.mu.RUnlock()
	if ok {
		return h, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.instances[class]; ok {
		return h, nil
	}
	f, ok := r.factories[class]
	if !ok {
		return nil, workerErrors.New(ErrUnknownHandler).WithDetail("class", class)
	}
	h, err := f()
	if err != nil {
		return nil, workerErrors.NewWithCause(ErrUnknownHandler, err).WithDetail("class", class)
	}
	r.instances[class] = h
	return h, nil
}

// Reload swaps in a new set of factories and drops every cached instance.
func (r *Registry) Reload(factories map[string]Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = make(map[string]Factory, len(factories))
	for class, f := range factories {
		r.factories[class] = f
	}
	r.instances = make(map[string]Handler)
	logx.Infof("worker: handler registry reloaded with %d classes", len(factories))
}

// Classes lists the registered class names.
func (r *Registry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for class := range r.factories {
		out = append(out, class)
	}
	sort.Strings(out)
	return out
}
