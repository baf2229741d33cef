package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/elimika/auditlog/jobs"
)

// queueInspector is the part of asynq.Inspector the jobs commands read from.
type queueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	Close() error
}

// JobsCLI wraps manual management helpers for the audit queue.
type JobsCLI struct {
	client    *jobs.Client
	inspector queueInspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) *JobsCLI {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	return &JobsCLI{client: jobs.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string, retention time.Duration) (string, error) {
	if c == nil || c.client == nil {
		return "", errors.New("jobs cli: client not configured")
	}
	switch name {
	case jobs.TaskAuditRetention:
		info, err := c.client.EnqueueRetention(ctx, retention)
		if err != nil {
			return "", err
		}
		return info.ID, nil
	case jobs.TaskAuditCacheInvalidate:
		return "", c.client.EnqueueInvalidate(ctx, "manual")
	default:
		return "", fmt.Errorf("jobs cli: unsupported job %s", name)
	}
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Archived  int
}

// InspectQueue reports the metrics for the default queue.
func (c *JobsCLI) InspectQueue() (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

// ListScheduled returns scheduled task infos.
func (c *JobsCLI) ListScheduled(size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(size), asynq.Page(1))
}

func newJobsCommand() *cobra.Command {
	var redisAddr string
	var cli *JobsCLI
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger audit maintenance jobs",
		PersistentPreRun: func(*cobra.Command, []string) {
			if cli == nil {
				cli = NewJobsCLI(redisAddr)
			}
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if cli == nil {
				return nil
			}
			return cli.Close()
		},
	}
	cmd.PersistentFlags().StringVar(&redisAddr, "redis", envOr("REDIS_ADDR", "127.0.0.1:6379"), "Redis address of the job queue")

	current := func() *JobsCLI { return cli }
	cmd.AddCommand(
		newStatsCommand(current),
		newScheduledCommand(current),
		newRetentionCommand(current),
		newInvalidateCommand(current),
	)
	return cmd
}

func newStatsCommand(cli func() *JobsCLI) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := cli().InspectQueue()
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
}

func newScheduledCommand(cli func() *JobsCLI) *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "scheduled",
		Short: "List scheduled tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tasks, err := cli().ListScheduled(size)
			if err != nil {
				return err
			}
			printScheduled(cmd.OutOrStdout(), tasks)
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "limit", 10, "maximum tasks listed")
	return cmd
}

func newRetentionCommand(cli func() *JobsCLI) *cobra.Command {
	var hours int
	cmd := &cobra.Command{
		Use:   "retention",
		Short: "Enqueue a retention sweep now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := cli().Trigger(cmd.Context(), jobs.TaskAuditRetention, time.Duration(hours)*time.Hour)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s (%s)\n", jobs.TaskAuditRetention, id)
			return nil
		},
	}
	cmd.Flags().IntVar(&hours, "hours", 0, "retention window in hours; 0 uses the worker default")
	return cmd
}

func newInvalidateCommand(cli func() *JobsCLI) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate",
		Short: "Drop every cached audit page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := cli().Trigger(cmd.Context(), jobs.TaskAuditCacheInvalidate, 0); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s\n", jobs.TaskAuditCacheInvalidate)
			return nil
		},
	}
}

func printStats(w io.Writer, stats QueueStats) {
	fmt.Fprintf(w, "queue:     %s\n", stats.Queue)
	fmt.Fprintf(w, "pending:   %d\n", stats.Pending)
	fmt.Fprintf(w, "active:    %d\n", stats.Active)
	fmt.Fprintf(w, "scheduled: %d\n", stats.Scheduled)
	fmt.Fprintf(w, "retry:     %d\n", stats.Retry)
	fmt.Fprintf(w, "archived:  %d\n", stats.Archived)
}

func printScheduled(w io.Writer, tasks []*asynq.TaskInfo) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "no scheduled tasks")
		return
	}
	for _, task := range tasks {
		fmt.Fprintf(w, "%s  %s  %s\n", task.NextProcessAt.UTC().Format(time.RFC3339), task.Type, task.ID)
	}
}
