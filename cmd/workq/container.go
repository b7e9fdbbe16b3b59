// cmd/workq/container.go
//
// Composition root. Owns infrastructure (Redis, optional Postgres archive,
// metrics registry) and builds the queue manager both binaries share.
package main

import (
	"context"
	"time"

	"github.com/Abraxas-365/workq/pkg/archive"
	"github.com/Abraxas-365/workq/pkg/archive/archiveinfra"
	"github.com/Abraxas-365/workq/pkg/asyncx"
	"github.com/Abraxas-365/workq/pkg/config"
	"github.com/Abraxas-365/workq/pkg/logx"
	"github.com/Abraxas-365/workq/pkg/queue"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// Container holds shared infrastructure and the queue manager.
type Container struct {
	Config *config.Config

	Redis   redis.UniversalClient
	DB      *sqlx.DB
	Metrics *prometheus.Registry

	Manager  *queue.Manager
	Archiver *archive.Archiver
}

func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logx.Info("initializing application container")

	c := &Container{Config: cfg}
	if err := c.initInfrastructure(ctx); err != nil {
		c.Cleanup()
		return nil, err
	}
	c.initModules()

	logx.Info("application container initialized")
	return c, nil
}

// ---------------------------------------------------------------------------
// Infrastructure: Redis, archive database, metrics
// ---------------------------------------------------------------------------

func (c *Container) initInfrastructure(ctx context.Context) error {
	c.Redis = redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{c.Config.Redis.Address()},
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})

	// The store may come up after us; keep trying before giving up.
	_, err := asyncx.RetryWithBackoff(ctx, asyncx.Backoff{
		Attempts: c.Config.Worker.ReconnectAttempts,
		Initial:  c.Config.Worker.ReconnectDelay,
		Max:      time.Minute,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			logx.WithError(err).Warnf("redis unavailable at %s, retry %d in %s",
				c.Config.Redis.Address(), attempt, delay)
		},
	}, func(ctx context.Context) (string, error) {
		return c.Redis.Ping(ctx).Result()
	})
	if err != nil {
		return err
	}
	logx.Infof("  redis connected (%s)", c.Config.Redis.Address())

	if c.Config.Archive.Enabled() {
		db, err := connectArchive(ctx, c.Config.Archive)
		if err != nil {
			return err
		}
		c.DB = db
		logx.Info("  archive database connected")
	}

	c.Metrics = prometheus.NewRegistry()
	c.Metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return nil
}

// ---------------------------------------------------------------------------
// Modules
// ---------------------------------------------------------------------------

func (c *Container) initModules() {
	c.Manager = queue.NewManager(c.Redis,
		queue.WithLivenessThreshold(c.Config.Worker.LivenessThreshold),
		queue.WithRequeueTimeout(c.Config.Worker.RequeueTimeout),
	)
	for _, q := range c.Manager.AddList(c.Config.Queues) {
		logx.Infof("  system %s queue %s", q.System(), q.Name())
	}

	if c.DB != nil {
		c.Archiver = archive.NewArchiver(archiveinfra.NewPostgresRepository(c.DB))
	}
}

func connectArchive(ctx context.Context, cfg config.ArchiveConfig) (*sqlx.DB, error) {
	if !cfg.Enabled() {
		return nil, archive.NewDisabled()
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, archive.NewStoreError(err).WithDetail("operation", "connect")
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	return db, nil
}

// EnsureArchiveSchema creates the archive table when the archive is enabled.
func (c *Container) EnsureArchiveSchema(ctx context.Context) error {
	if c.DB == nil {
		return nil
	}
	return archiveinfra.NewPostgresRepository(c.DB).EnsureSchema(ctx)
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func (c *Container) Cleanup() {
	logx.Info("cleaning up resources")

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("error closing archive database: %v", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("error closing redis: %v", err)
		}
	}
}
