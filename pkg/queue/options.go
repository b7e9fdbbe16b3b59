package queue

import (
	"os"
	"time"
)

type options struct {
	clock          func() time.Time
	hostname       string
	pid            int
	identity       *Identity
	liveness       time.Duration
	requeueTimeout time.Duration
}

func defaultOptions() options {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	return options{
		clock:          time.Now,
		hostname:       hostname,
		pid:            os.Getpid(),
		liveness:       60 * time.Second,
		requeueTimeout: 60 * time.Second,
	}
}

func (o options) resolveIdentity() Identity {
	if o.identity != nil {
		return *o.identity
	}
	return NewIdentity(o.hostname, o.pid, o.clock())
}

// Option configures a Queue or a Manager.
type Option func(*options)

// WithClock replaces time.Now for timestamps and staleness checks.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithHostname overrides the hostname used in job and worker ids.
func WithHostname(hostname string) Option {
	return func(o *options) {
		o.hostname = hostname
	}
}

// WithPID overrides the process id used in job and worker ids.
func WithPID(pid int) Option {
	return func(o *options) {
		o.pid = pid
	}
}

// WithIdentity pins the worker identity instead of generating one.
func WithIdentity(id Identity) Option {
	return func(o *options) {
		o.identity = &id
	}
}

// WithLivenessThreshold sets the heartbeat age after which a worker reports STALE.
func WithLivenessThreshold(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.liveness = d
		}
	}
}

// WithRequeueTimeout sets the staleness threshold Manager.Requeue sweeps with.
func WithRequeueTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.requeueTimeout = d
		}
	}
}
