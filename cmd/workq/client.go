package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Abraxas-365/workq/pkg/client"
	"github.com/Abraxas-365/workq/pkg/logx"
	"github.com/Abraxas-365/workq/pkg/ptrx"
	"github.com/Abraxas-365/workq/pkg/queue"
	"github.com/spf13/cobra"
)

// clientFlags are shared by every client subcommand; empty values fall
// back to the client section of the configuration.
type clientFlags struct {
	url    string
	system string
	queue  string
}

func (f *clientFlags) bind(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&f.url, "url", "", "queue API base URL (default $WORKQ_URL)")
	cmd.PersistentFlags().StringVar(&f.system, "system", "", "system name (default $WORKQ_SYSTEM)")
	cmd.PersistentFlags().StringVar(&f.queue, "queue", "", "queue name (default $WORKQ_QUEUE)")
}

func (f *clientFlags) client() (*client.Client, error) {
	logx.SetOutput(os.Stderr)
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	url, system, q := cfg.Client.BaseURL, cfg.Client.System, cfg.Client.Queue
	if f.url != "" {
		url = f.url
	}
	if f.system != "" {
		system = f.system
	}
	if f.queue != "" {
		q = f.queue
	}
	return client.New(url, system, q), nil
}

func newClientCommands() []*cobra.Command {
	flags := &clientFlags{}
	cmds := []*cobra.Command{
		newSubmitCommand(flags),
		newListCommand(flags),
		newJobCommand(flags),
		newStatusCommand(flags),
		newTracebackCommand(flags),
		newCancelCommand(flags),
		newWorkersCommand(flags),
		newWorkerDeleteCommand(flags),
	}
	for _, c := range cmds {
		flags.bind(c)
	}
	return cmds
}

func newSubmitCommand(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "submit FILE",
		Short: "Submit a job document read from FILE (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			job, err := readJob(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			job.Metadata.User = os.Getenv("USER")

			jobid, err := c.Submit(cmd.Context(), job)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), jobid)
			return nil
		},
	}
}

func newListCommand(flags *clientFlags) *cobra.Command {
	var status string
	var fields []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			states, err := queue.ParseStates(status)
			if err != nil {
				return err
			}
			jobs, err := c.List(cmd.Context(), states, fields)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), jobs)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "comma separated states (PENDING,ACTIVE,SUCCESS,FAILED,EVERY)")
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "top-level fields to include (default metadata)")
	return cmd
}

func newJobCommand(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "job JOBID",
		Short: "Show a job document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			job, err := c.Job(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), job)
		},
	}
}

func newStatusCommand(flags *clientFlags) *cobra.Command {
	var text bool
	cmd := &cobra.Command{
		Use:   "status JOBID",
		Short: "Show a job's state and current step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			st, err := c.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if text {
				fmt.Fprintln(cmd.OutOrStdout(), statusText(st))
				return nil
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
	cmd.Flags().BoolVar(&text, "text", false, "print STATE or STATE;STEP")
	return cmd
}

func newTracebackCommand(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "traceback JOBID",
		Short: "Show the error traceback of a failed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			job, err := c.Job(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), traceback(job))
			return nil
		},
	}
}

func newCancelCommand(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel JOBID...",
		Short: "Cancel jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			var cancelled int
			for _, jobid := range args {
				job, err := c.Cancel(cmd.Context(), jobid)
				if err != nil {
					logx.WithError(err).Warnf("cancel %s", jobid)
					continue
				}
				cancelled++
				if err := printJSON(cmd.OutOrStdout(), job); err != nil {
					return err
				}
			}
			if cancelled == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "None")
			}
			return nil
		},
	}
}

func newWorkersCommand(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "workers",
		Short: "List workers polling the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			reports, err := c.Workers(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), reports)
		},
	}
}

func newWorkerDeleteCommand(flags *clientFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "worker-delete WORKERID",
		Aliases: []string{"worker_delete"},
		Short:   "Delete a worker's bookkeeping entry",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.client()
			if err != nil {
				return err
			}
			report, err := c.DeleteWorker(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}

func readJob(path string, stdin io.Reader) (queue.Job, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return queue.Job{}, fmt.Errorf("read %s: %w", path, err)
	}
	var job queue.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return queue.Job{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return job, nil
}

func statusText(st queue.Status) string {
	if step := ptrx.Value(st.Step, ""); step != "" {
		return string(st.State) + ";" + step
	}
	return string(st.State)
}

func traceback(job *queue.Job) string {
	if job.Traceback != "" {
		return job.Traceback
	}
	if job.LastError != "" {
		return job.LastError
	}
	return "No error"
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(v)
}
