package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-supplies/internal/app"
	jobmetrics "github.com/odyssey-erp/odyssey-supplies/internal/jobs"
	"github.com/odyssey-erp/odyssey-supplies/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-supplies/internal/platform/db"
	"github.com/odyssey-erp/odyssey-supplies/internal/shared"
	"github.com/odyssey-erp/odyssey-supplies/internal/stock"
	"github.com/odyssey-erp/odyssey-supplies/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	_ = redisClient.Close()

	metrics := jobmetrics.NewMetrics(nil)
	// The worker reads alerts only; audit, idempotency and notifications stay with the API.
	stockService := stock.NewService(stock.NewRepository(pool), nil, nil, nil, stock.ServiceConfig{Logger: logger})
	alertJob := jobs.NewAlertScanJob(stockService, logger, metrics)
	purgeJob := jobs.NewIdempotencyPurgeJob(shared.NewIdempotencyStore(pool), cfg.IdempotencyRetention, logger, metrics)

	alertTask, err := jobs.NewAlertScanTask(0)
	if err != nil {
		logger.Error("build alert scan task", slog.Any("error", err))
		os.Exit(1)
	}
	purgeTask, err := jobs.NewIdempotencyPurgeTask(cfg.IdempotencyRetention)
	if err != nil {
		logger.Error("build purge task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskStockAlertScan, Handler: alertJob.Handle},
			{Type: jobs.TaskIdempotencyPurge, Handler: purgeJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.AlertScanCron, Task: alertTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 3 * * *", Task: purgeTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.String("alert_scan_cron", cfg.AlertScanCron))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
