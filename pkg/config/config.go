package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Abraxas-365/workq/pkg/errx"
	"gopkg.in/yaml.v3"
)

var configErrors = errx.NewRegistry("CONFIG")

var (
	ErrReadFile     = configErrors.Register("READ_FILE", errx.TypeInternal, 500, "Failed to read config file")
	ErrParseFile    = configErrors.Register("PARSE_FILE", errx.TypeValidation, 400, "Failed to parse config file")
	ErrInvalidQueue = configErrors.Register("INVALID_QUEUE", errx.TypeValidation, 400, "Queue must be written as system/queue")
)

// Config is the root configuration shared by the server, the worker and the CLI.
type Config struct {
	Redis   RedisConfig   `yaml:"redis"`
	Queues  []QueuePair   `yaml:"queues"`
	Worker  WorkerConfig  `yaml:"worker"`
	Server  ServerConfig  `yaml:"server"`
	Archive ArchiveConfig `yaml:"archive"`
	Metrics MetricsConfig `yaml:"metrics"`
	Client  ClientConfig  `yaml:"client"`
}

// QueuePair names one queue to register.
type QueuePair struct {
	System string `yaml:"system" json:"system"`
	Queue  string `yaml:"queue" json:"queue"`
}

func (p QueuePair) String() string { return p.System + "/" + p.Queue }

// RedisConfig holds the store connection parameters.
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Address returns host:port.
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port      string        `yaml:"port"`
	BodyLimit int           `yaml:"body_limit"`
	Shutdown  time.Duration `yaml:"shutdown_timeout"`
}

// ArchiveConfig enables the Postgres archive of finished jobs when DatabaseURL is set.
type ArchiveConfig struct {
	DatabaseURL  string `yaml:"database_url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// Enabled reports whether an archive database is configured.
func (a ArchiveConfig) Enabled() bool { return a.DatabaseURL != "" }

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ClientConfig is what the CLI uses to reach the API.
type ClientConfig struct {
	BaseURL string `yaml:"base_url"`
	System  string `yaml:"system"`
	Queue   string `yaml:"queue"`
}

// Load builds the configuration from the environment, then overlays the YAML
// file named by WORKQ_CONFIG when it is set.
func Load() (*Config, error) {
	cfg := &Config{
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Worker: loadWorkerConfig(),
		Server: ServerConfig{
			Port:      getEnv("PORT", "8080"),
			BodyLimit: getEnvInt("WORKQ_BODY_LIMIT", 4*1024*1024),
			Shutdown:  getEnvDuration("WORKQ_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Archive: ArchiveConfig{
			DatabaseURL:  getEnv("WORKQ_ARCHIVE_DATABASE_URL", ""),
			MaxOpenConns: getEnvInt("WORKQ_ARCHIVE_MAX_OPEN_CONNS", 5),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("WORKQ_METRICS_ENABLED", true),
			Path:    getEnv("WORKQ_METRICS_PATH", "/metrics"),
		},
		Client: ClientConfig{
			BaseURL: getEnv("WORKQ_URL", "http://localhost:8080"),
			System:  getEnv("WORKQ_SYSTEM", "default"),
			Queue:   getEnv("WORKQ_QUEUE", "default"),
		},
	}

	queues, err := ParseQueuePairs(getEnvStringSlice("WORKQ_QUEUES", []string{"default/default"}))
	if err != nil {
		return nil, err
	}
	cfg.Queues = queues

	if path := os.Getenv("WORKQ_CONFIG"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// overlayFile decodes a YAML document over cfg; keys absent from the file
// keep their environment value.
func (c *Config) overlayFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return configErrors.NewWithCause(ErrReadFile, err).WithDetail("path", path)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return configErrors.NewWithCause(ErrParseFile, err).WithDetail("path", path)
	}
	return nil
}

// ParseQueuePairs parses "system/queue" entries.
func ParseQueuePairs(entries []string) ([]QueuePair, error) {
	pairs := make([]QueuePair, 0, len(entries))
	for _, entry := range entries {
		system, queue, ok := strings.Cut(entry, "/")
		if !ok || system == "" || queue == "" {
			return nil, configErrors.New(ErrInvalidQueue).WithDetail("entry", entry)
		}
		pairs = append(pairs, QueuePair{System: system, Queue: queue})
	}
	return pairs, nil
}
