package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-supplies/internal/jobs"
	"github.com/odyssey-erp/odyssey-supplies/internal/stock"
)

// AlertSource yields the current reorder alerts.
type AlertSource interface {
	ListAlerts(ctx context.Context) (stock.Alerts, error)
}

// AlertScanJob logs every critical item and refreshes the critical-items gauge.
type AlertScanJob struct {
	Source  AlertSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAlertScanJob initialises the alert scan handler.
func NewAlertScanJob(source AlertSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *AlertScanJob {
	return &AlertScanJob{Source: source, Logger: logger, Metrics: metrics}
}

// Handle executes one scan.
func (j *AlertScanJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Source == nil {
		return errors.New("alert scan: handler not configured")
	}
	var payload AlertScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("alert scan: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	tracker := j.metrics().Track(TaskStockAlertScan)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger()
	if payload.ItemID > 0 {
		logger = logger.With(slog.Int64("trigger_item_id", payload.ItemID))
	}

	alerts, err := j.Source.ListAlerts(ctx)
	if err != nil {
		logger.Error("alert scan failed", slog.Any("error", err))
		return err
	}
	for _, entry := range alerts.Critical {
		logger.Warn("item needs restock",
			slog.Int64("item_id", entry.Item.ID),
			slog.String("denomination", entry.Item.Denomination),
			slog.Float64("current_stock", entry.CurrentStock),
			slog.Float64("reorder_threshold", entry.Item.ReorderThreshold),
			slog.Float64("stock_percentage", entry.StockPercentage),
		)
	}
	j.metrics().SetCriticalItems(len(alerts.Critical))
	logger.Info("completed alert scan",
		slog.Int("critical", len(alerts.Critical)),
		slog.Int("ok", len(alerts.OK)),
		slog.Int("no_alert", len(alerts.NoAlert)),
	)
	return nil
}

func (j *AlertScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStockAlertScan))
	}
	return slog.Default().With(slog.String("job", TaskStockAlertScan))
}

func (j *AlertScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
