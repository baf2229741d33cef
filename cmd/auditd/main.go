package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/elimika/auditlog/internal/app"
	"github.com/elimika/auditlog/internal/audit"
	auditcache "github.com/elimika/auditlog/internal/audit/cache"
	auditdb "github.com/elimika/auditlog/internal/audit/db"
	audithttp "github.com/elimika/auditlog/internal/audit/http"
	"github.com/elimika/auditlog/internal/observability"
	"github.com/elimika/auditlog/internal/platform/cache"
	"github.com/elimika/auditlog/internal/platform/db"
	"github.com/elimika/auditlog/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
		logger.Error("auditd", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{})
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		return auditdb.New(tx).Migrate(ctx)
	}); err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	if err := auditcache.SetupCacheMetrics(metrics.Registerer()); err != nil {
		logger.Warn("audit cache metrics", slog.Any("error", err))
	}

	serviceCfg := audit.ServiceConfig{
		DefaultPageSize: cfg.AuditPageSize,
		MaxPageSize:     cfg.AuditMaxPageSize,
		Logger:          logger,
	}

	var jobHandler *jobs.Handler
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// Pages are served straight from Postgres until Redis comes back.
		logger.Warn("redis unavailable, page cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		jobsClient := jobs.NewClient(redisOpts)
		defer jobsClient.Close()
		inspector := asynq.NewInspector(redisOpts)
		defer inspector.Close()

		serviceCfg.Cache = auditcache.NewPageCache(redisClient, cfg.AuditCacheTTL)
		serviceCfg.Invalidator = jobsClient
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	service := audit.NewService(auditdb.New(pool), serviceCfg)

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		AuditHandler: audithttp.NewHandler(logger, service),
		JobHandler:   jobHandler,
		Metrics:      metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down http server")
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
