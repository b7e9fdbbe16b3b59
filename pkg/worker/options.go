package worker

import (
	"time"

	"github.com/Abraxas-365/workq/pkg/config"
)

// Options configures a Runner.
type Options struct {
	PollTimeout       time.Duration
	RequeueInterval   time.Duration
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	Clock             func() time.Time
	Archiver          Archiver
	Metrics           *Metrics
}

func defaultOptions() Options {
	return Options{
		PollTimeout:       5 * time.Second,
		RequeueInterval:   30 * time.Second,
		ReconnectAttempts: 10,
		ReconnectDelay:    5 * time.Second,
		Clock:             time.Now,
	}
}

// Option is a functional option for configuring the runner.
type Option func(*Options)

// FromConfig applies the worker section of the configuration.
func FromConfig(cfg config.WorkerConfig) Option {
	return func(o *Options) {
		if cfg.PollTimeout > 0 {
			o.PollTimeout = cfg.PollTimeout
		}
		if cfg.RequeueInterval > 0 {
			o.RequeueInterval = cfg.RequeueInterval
		}
		if cfg.ReconnectAttempts > 0 {
			o.ReconnectAttempts = cfg.ReconnectAttempts
		}
		if cfg.ReconnectDelay > 0 {
			o.ReconnectDelay = cfg.ReconnectDelay
		}
	}
}

// WithPollTimeout sets how long one dequeue blocks.
func WithPollTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.PollTimeout = d
		}
	}
}

// WithRequeueInterval sets the period of the background requeue sweep.
func WithRequeueInterval(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.RequeueInterval = d
		}
	}
}

// WithReconnect sets how store failures during polling are retried.
func WithReconnect(attempts int, delay time.Duration) Option {
	return func(o *Options) {
		o.ReconnectAttempts = attempts
		o.ReconnectDelay = delay
	}
}

// WithClock replaces time.Now for reporter timings.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		o.Clock = clock
	}
}

// WithArchiver stores every finalized job through a.
func WithArchiver(a Archiver) Option {
	return func(o *Options) {
		o.Archiver = a
	}
}

// WithMetrics records job and poll counters.
func WithMetrics(m *Metrics) Option {
	return func(o *Options) {
		o.Metrics = m
	}
}
