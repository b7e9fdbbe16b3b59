package main

import (
	"context"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Abraxas-365/workq/pkg/logx"
	"github.com/Abraxas-365/workq/pkg/queue/queueapi"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newServerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Serve the queue HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			container, err := NewContainer(ctx, cfg)
			if err != nil {
				return err
			}
			defer container.Cleanup()

			return runServer(ctx, container)
		},
	}
}

func newApp(container *Container) *fiber.App {
	cfg := container.Config

	app := fiber.New(fiber.Config{
		AppName:               "workq",
		DisableStartupMessage: true,
		ErrorHandler:          queueapi.ErrorHandler,
		BodyLimit:             cfg.Server.BodyLimit,
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: uuid.NewString,
	}))
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path} | ${ip} | ${reqHeader:X-Request-ID}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	if cfg.Metrics.Enabled {
		app.Use(requestMetrics(container.Metrics))
		app.Get(cfg.Metrics.Path, adaptor.HTTPHandler(
			promhttp.HandlerFor(container.Metrics, promhttp.HandlerOpts{}),
		))
	}

	app.Get("/health", healthCheckHandler(container))
	queueapi.NewHandlers(container.Manager).RegisterRoutes(app)
	app.Use(notFoundHandler)
	return app
}

func runServer(ctx context.Context, container *Container) error {
	app := newApp(container)
	port := container.Config.Server.Port

	errCh := make(chan error, 1)
	go func() {
		logx.Infof("server listening on port %s", port)
		errCh <- app.Listen(":" + port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logx.Info("shutting down gracefully")
	if err := app.ShutdownWithTimeout(container.Config.Server.Shutdown); err != nil {
		logx.Errorf("server forced to shutdown: %v", err)
		return err
	}
	logx.Info("server exited")
	return nil
}

// healthCheckHandler reports the store and, when enabled, the archive database.
func healthCheckHandler(container *Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		health := fiber.Map{"status": "healthy", "service": "workq"}

		if err := container.Redis.Ping(c.UserContext()).Err(); err != nil {
			health["redis"] = "unhealthy"
			health["redis_error"] = err.Error()
			health["status"] = "degraded"
		} else {
			health["redis"] = "healthy"
		}

		if container.DB != nil {
			if err := container.DB.PingContext(c.UserContext()); err != nil {
				health["archive"] = "unhealthy"
				health["archive_error"] = err.Error()
				health["status"] = "degraded"
			} else {
				health["archive"] = "healthy"
			}
		}

		status := fiber.StatusOK
		if health["status"] == "degraded" {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(health)
	}
}

func notFoundHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error":      "Route not found",
		"code":       "NOT_FOUND",
		"path":       c.Path(),
		"method":     c.Method(),
		"request_id": c.Get(fiber.HeaderXRequestID),
	})
}

// requestMetrics counts requests by route pattern, so jobids do not
// explode the label space.
func requestMetrics(reg prometheus.Registerer) fiber.Handler {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workq_http_requests_total",
			Help: "HTTP requests served by the queue API",
		},
		[]string{"method", "route", "status"},
	)
	reg.MustRegister(requests)

	return func(c *fiber.Ctx) error {
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		requests.WithLabelValues(c.Method(), c.Route().Path, strconv.Itoa(status)).Inc()
		return err
	}
}
