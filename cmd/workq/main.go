package main

import (
	"os"

	"github.com/Abraxas-365/workq/pkg/config"
	"github.com/Abraxas-365/workq/pkg/logx"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "workq",
		Short:         "Redis-backed distributed work queue",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("log-level", "", "log level (trace|debug|info|warn|error)")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			logx.SetLevel(logx.ParseLevel(level))
		}
	}

	root.AddCommand(newServerCommand(), newWorkerCommand(), newArchiveCommand())
	root.AddCommand(newClientCommands()...)
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		logx.WithError(err).Error("failed to load configuration")
		return nil, err
	}
	return cfg, nil
}
