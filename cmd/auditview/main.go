package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/elimika/auditlog/internal/app"
	"github.com/elimika/auditlog/internal/auditclient"
	"github.com/elimika/auditlog/internal/logview"
	"github.com/elimika/auditlog/internal/tui"
)

type viewOptions struct {
	server    string
	pageSize  int
	exportDir string
	logFile   string
	logFormat string
	status    string
	overscan  int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := viewOptions{}
	cmd := &cobra.Command{
		Use:           "auditview",
		Short:         "Browse the audit log in the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runViewer(cmd.Context(), opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.server, "server", envOr("AUDITVIEW_SERVER", "http://localhost:8080"), "auditd base URL")
	flags.IntVar(&opts.pageSize, "page-size", envIntOr("AUDITVIEW_PAGE_SIZE", 50), "entries requested per page")
	flags.StringVar(&opts.exportDir, "export-dir", envOr("AUDITVIEW_EXPORT_DIR", "."), "directory CSV exports are written to")
	flags.StringVar(&opts.logFile, "log-file", envOr("AUDITVIEW_LOG_FILE", ""), "write logs to this file")
	flags.StringVar(&opts.logFormat, "log-format", envOr("AUDITVIEW_LOG_FORMAT", "text"), "log format: text or json")
	flags.StringVar(&opts.status, "status", envOr("AUDITVIEW_STATUS", ""), "default status filter")
	flags.IntVar(&opts.overscan, "overscan", envIntOr("AUDITVIEW_OVERSCAN", logview.DefaultOverscan), "rows rendered beyond the viewport")

	cmd.AddCommand(newJobsCommand())
	return cmd
}

func runViewer(ctx context.Context, opts viewOptions) error {
	if opts.pageSize <= 0 {
		return fmt.Errorf("auditview: page size must be positive")
	}
	logger, closeLog, err := openLogger(opts.logFile, opts.logFormat)
	if err != nil {
		return err
	}
	defer closeLog()

	client := auditclient.NewClient(opts.server, opts.pageSize)
	if err := client.Ping(ctx); err != nil {
		logger.Warn("auditd ping", slog.String("server", opts.server), slog.Any("error", err))
	}

	ctrl := logview.NewController(client, logview.FilterState{Status: opts.status}, logview.WithLogger(logger))
	model := tui.New(ctx, ctrl, tui.Options{
		ExportDir: opts.exportDir,
		Events:    client,
		Overscan:  opts.overscan,
		Logger:    logger,
	})

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("auditview: %w", err)
	}
	return nil
}

// openLogger discards logs unless a file is given; stdout belongs to the UI.
func openLogger(path, format string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.DiscardHandler), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("auditview: open log file: %w", err)
	}
	return app.NewLoggerTo(f, format), func() { _ = f.Close() }, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
