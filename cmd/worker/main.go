package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/elimika/auditlog/internal/app"
	"github.com/elimika/auditlog/internal/audit"
	auditcache "github.com/elimika/auditlog/internal/audit/cache"
	auditdb "github.com/elimika/auditlog/internal/audit/db"
	"github.com/elimika/auditlog/internal/observability"
	"github.com/elimika/auditlog/internal/platform/cache"
	"github.com/elimika/auditlog/internal/platform/db"
	"github.com/elimika/auditlog/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: int32(cfg.WorkerConcurrency) + 1})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	if err := auditcache.SetupCacheMetrics(metrics.Registerer()); err != nil {
		logger.Warn("audit cache metrics", slog.Any("error", err))
	}

	service := audit.NewService(auditdb.New(pool), audit.ServiceConfig{
		Cache:  auditcache.NewPageCache(redisClient, cfg.AuditCacheTTL),
		Logger: logger,
	})

	invalidateJob := jobs.NewCacheInvalidateJob(service, logger, metrics.Jobs())
	retentionJob := jobs.NewRetentionJob(service, cfg.AuditRetention, logger, metrics.Jobs())

	retentionTask, err := jobs.NewRetentionTask(0)
	if err != nil {
		return fmt.Errorf("build retention task: %w", err)
	}

	var cron []jobs.CronRegistration
	if cfg.AuditRetention > 0 {
		cron = append(cron, jobs.CronRegistration{
			Spec:    cfg.AuditRetentionCron,
			Task:    retentionTask,
			Options: []asynq.Option{asynq.MaxRetry(3)},
		})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAuditCacheInvalidate, Handler: invalidateJob.Handle},
			{Type: jobs.TaskAuditRetention, Handler: retentionJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		return fmt.Errorf("init worker: %w", err)
	}

	metricsServer := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("starting worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("worker run: %w", err)
	}
	return nil
}
