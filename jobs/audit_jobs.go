package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/elimika/auditlog/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// AuditMaintainer is the slice of the audit service the jobs drive.
type AuditMaintainer interface {
	InvalidateCache(ctx context.Context) error
	Purge(ctx context.Context, retention time.Duration) (int64, error)
}

// CacheInvalidateJob bumps the audit page cache generation.
type CacheInvalidateJob struct {
	Service AuditMaintainer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCacheInvalidateJob initialises the invalidation handler.
func NewCacheInvalidateJob(service AuditMaintainer, logger *slog.Logger, metrics *jobmetrics.Metrics) *CacheInvalidateJob {
	return &CacheInvalidateJob{Service: service, Logger: logger, Metrics: metrics}
}

// Handle executes the invalidation.
func (j *CacheInvalidateJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Service == nil {
		return errors.New("cache invalidate: handler not configured")
	}
	var payload CacheInvalidatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := metricsOrDefault(j.Metrics).Track(TaskAuditCacheInvalidate)
	defer func() {
		err = tracker.End(err)
	}()

	logger := loggerFor(j.Logger, TaskAuditCacheInvalidate).With(slog.String("reason", payload.Reason))
	if err = j.Service.InvalidateCache(ctx); err != nil {
		logger.Error("invalidate audit cache", slog.Any("error", err))
		return err
	}
	logger.Info("audit cache invalidated")
	return nil
}

// RetentionJob deletes entries older than the configured retention.
type RetentionJob struct {
	Service          AuditMaintainer
	Logger           *slog.Logger
	Metrics          *jobmetrics.Metrics
	DefaultRetention time.Duration
}

// NewRetentionJob initialises the retention handler.
func NewRetentionJob(service AuditMaintainer, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *RetentionJob {
	return &RetentionJob{Service: service, Logger: logger, Metrics: metrics, DefaultRetention: retention}
}

// Handle executes the retention sweep.
func (j *RetentionJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Service == nil {
		return errors.New("retention: handler not configured")
	}
	var payload RetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := j.DefaultRetention
	if payload.RetentionHours > 0 {
		retention = time.Duration(payload.RetentionHours) * time.Hour
	}

	start := time.Now()
	metrics := metricsOrDefault(j.Metrics)
	tracker := metrics.Track(TaskAuditRetention)
	defer func() {
		err = tracker.End(err)
	}()

	logger := loggerFor(j.Logger, TaskAuditRetention).With(slog.Duration("retention", retention))
	if retention <= 0 {
		logger.Info("retention disabled")
		return nil
	}
	deleted, err := j.Service.Purge(ctx, retention)
	if err != nil {
		logger.Error("purge audit entries", slog.Any("error", err))
		return err
	}
	metrics.AddPurged(deleted)
	logger.Info("completed retention sweep",
		slog.Int64("deleted", deleted),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func loggerFor(logger *slog.Logger, job string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("job", job))
}

func metricsOrDefault(m *jobmetrics.Metrics) *jobmetrics.Metrics {
	if m != nil {
		return m
	}
	return defaultJobMetrics
}
