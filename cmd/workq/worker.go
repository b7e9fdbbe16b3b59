package main

import (
	"os/signal"
	"syscall"

	"github.com/Abraxas-365/workq/pkg/logx"
	"github.com/Abraxas-365/workq/pkg/worker"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newWorkerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process jobs from the configured queues",
		Long: `Polls every configured system/queue pair and runs the handler registered
for each job's class. SIGINT or SIGTERM stops the loop once the current
job is finalized; the worker then removes its heartbeat from every queue.`,
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

			if err := container.EnsureArchiveSchema(ctx); err != nil {
				return err
			}

			registry := worker.NewRegistry()
			worker.RegisterBuiltins(registry)

			opts := []worker.Option{
				worker.FromConfig(cfg.Worker),
				worker.WithMetrics(worker.NewMetrics(container.Metrics)),
			}
			if container.Archiver != nil {
				opts = append(opts, worker.WithArchiver(container.Archiver))
			}

			if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" && cfg.Metrics.Enabled {
				app := fiber.New(fiber.Config{DisableStartupMessage: true})
				app.Get(cfg.Metrics.Path, adaptor.HTTPHandler(
					promhttp.HandlerFor(container.Metrics, promhttp.HandlerOpts{}),
				))
				go func() {
					if err := app.Listen(addr); err != nil {
						logx.WithError(err).Warn("worker metrics listener stopped")
					}
				}()
				defer app.Shutdown()
			}

			return worker.NewRunner(container.Manager, registry, opts...).Run(ctx)
		},
	}
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9100")
	return cmd
}
