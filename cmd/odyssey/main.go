package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-supplies/internal/app"
	"github.com/odyssey-erp/odyssey-supplies/internal/catalog"
	"github.com/odyssey-erp/odyssey-supplies/internal/observability"
	"github.com/odyssey-erp/odyssey-supplies/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-supplies/internal/platform/db"
	"github.com/odyssey-erp/odyssey-supplies/internal/shared"
	"github.com/odyssey-erp/odyssey-supplies/internal/stock"
	"github.com/odyssey-erp/odyssey-supplies/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, dbpool); err != nil {
			logger.Error("run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// Consumptions still work without Redis; only alert notifications are lost.
		logger.Warn("redis unavailable", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts, logger)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	catalogService := catalog.NewService(catalog.NewRepository(dbpool))
	stockService := stock.NewService(
		stock.NewRepository(dbpool),
		shared.NewAuditLogger(dbpool),
		shared.NewIdempotencyStore(dbpool),
		jobClient,
		stock.ServiceConfig{MaxRetries: cfg.LedgerMaxRetries, Logger: logger, Metrics: metrics},
	)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Metrics:        metrics,
		CatalogHandler: catalog.NewHandler(logger, catalogService),
		StockHandler:   stock.NewHandler(logger, stockService),
		JobHandler:     jobs.NewHandler(inspector, logger),
		Readiness: []app.ReadinessCheck{
			{Name: "postgres", Check: dbpool.Ping},
			{Name: "redis", Check: func(ctx context.Context) error {
				if redisClient == nil {
					return errors.New("redis not connected")
				}
				return cache.Ping(ctx, redisClient)
			}},
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
