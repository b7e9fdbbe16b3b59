package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Abraxas-365/workq/pkg/archive"
	"github.com/Abraxas-365/workq/pkg/archive/archiveinfra"
	"github.com/Abraxas-365/workq/pkg/config"
	"github.com/Abraxas-365/workq/pkg/logx"
	"github.com/spf13/cobra"
)

func newArchiveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Read finished jobs from the archive database",
	}
	cmd.AddCommand(newArchiveShowCommand(), newArchiveListCommand())
	return cmd
}

// openArchive connects to the archive database only; the queue store is
// not needed to read finished jobs.
func openArchive(ctx context.Context) (*archive.Archiver, *config.Config, func(), error) {
	logx.SetOutput(os.Stderr)
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := connectArchive(ctx, cfg.Archive)
	if err != nil {
		return nil, nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logx.Errorf("error closing archive database: %v", err)
		}
	}
	return archive.NewArchiver(archiveinfra.NewPostgresRepository(db)), cfg, closeDB, nil
}

func newArchiveShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show JOBID",
		Short: "Print the archived document of a finished job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, closeDB, err := openArchive(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			job, err := a.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), job)
		},
	}
}

func newArchiveListCommand() *cobra.Command {
	var system, queueName string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recently archived jobs of a queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cfg, closeDB, err := openArchive(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			if system == "" {
				system = cfg.Client.System
			}
			if queueName == "" {
				queueName = cfg.Client.Queue
			}
			if system == "" || queueName == "" {
				return fmt.Errorf("archive list needs --system and --queue")
			}

			recs, err := a.History(cmd.Context(), system, queueName, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), recs)
		},
	}
	cmd.Flags().StringVar(&system, "system", "", "system name (default $WORKQ_SYSTEM)")
	cmd.Flags().StringVar(&queueName, "queue", "", "queue name (default $WORKQ_QUEUE)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of records")
	return cmd
}
