package config

import "time"

// WorkerConfig configures the polling worker and the requeue sweep.
type WorkerConfig struct {
	// PollTimeout bounds each blocking dequeue.
	PollTimeout time.Duration `yaml:"poll_timeout"`
	// RequeueTimeout is the age after which an unfinished job is presumed abandoned.
	RequeueTimeout time.Duration `yaml:"requeue_timeout"`
	// RequeueInterval is the period of the background requeue sweep.
	RequeueInterval time.Duration `yaml:"requeue_interval"`
	// LivenessThreshold is the heartbeat age after which a worker reports STALE.
	LivenessThreshold time.Duration `yaml:"liveness_threshold"`
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
}

func loadWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PollTimeout:       getEnvDuration("WORKQ_POLL_TIMEOUT", 5*time.Second),
		RequeueTimeout:    getEnvDuration("WORKQ_REQUEUE_TIMEOUT", 60*time.Second),
		RequeueInterval:   getEnvDuration("WORKQ_REQUEUE_INTERVAL", 30*time.Second),
		LivenessThreshold: getEnvDuration("WORKQ_LIVENESS_THRESHOLD", 60*time.Second),
		ReconnectAttempts: getEnvInt("WORKQ_RECONNECT_ATTEMPTS", 10),
		ReconnectDelay:    getEnvDuration("WORKQ_RECONNECT_DELAY", 5*time.Second),
	}
}
