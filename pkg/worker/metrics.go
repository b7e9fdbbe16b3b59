package worker

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the worker's Prometheus collectors.
type Metrics struct {
	jobs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	polls    *prometheus.CounterVec
	requeued prometheus.Counter
}

// NewMetrics registers the worker collectors on reg. A nil reg leaves them
// unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workq_jobs_total",
				Help: "Jobs finalized by this worker",
			},
			[]string{"system", "queue", "class", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workq_job_duration_seconds",
				Help:    "Handler execution time in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"system", "queue", "class"},
		),
		polls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workq_polls_total",
				Help: "Dequeue attempts by outcome",
			},
			[]string{"outcome"},
		),
		requeued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "workq_requeued_total",
				Help: "Stale jobs pushed back onto pending by requeue sweeps",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.jobs, m.duration, m.polls, m.requeued)
	}
	return m
}
