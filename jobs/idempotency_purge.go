package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-supplies/internal/jobs"
)

// KeyPurger deletes idempotency keys older than a retention window.
type KeyPurger interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyPurgeJob sweeps expired idempotency keys.
type IdempotencyPurgeJob struct {
	Store     KeyPurger
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewIdempotencyPurgeJob initialises the purge handler. Payloads without a
// retention fall back to the configured one.
func NewIdempotencyPurgeJob(store KeyPurger, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyPurgeJob {
	return &IdempotencyPurgeJob{Store: store, Retention: retention, Logger: logger, Metrics: metrics}
}

// Handle executes one sweep.
func (j *IdempotencyPurgeJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("idempotency purge: handler not configured")
	}
	var payload IdempotencyPurgePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("idempotency purge: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	retention := payload.Retention
	if retention <= 0 {
		retention = j.Retention
	}
	if retention <= 0 {
		return fmt.Errorf("idempotency purge: retention must be positive: %w", asynq.SkipRetry)
	}

	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskIdempotencyPurge)
	defer func() {
		err = tracker.End(err)
	}()

	logger := slog.Default()
	if j.Logger != nil {
		logger = j.Logger
	}
	logger = logger.With(slog.String("job", TaskIdempotencyPurge), slog.Duration("retention", retention))

	purged, err := j.Store.Cleanup(ctx, retention)
	if err != nil {
		logger.Error("purge failed", slog.Any("error", err))
		return err
	}
	metrics.AddPurgedKeys(purged)
	logger.Info("purged idempotency keys", slog.Int64("deleted", purged))
	return nil
}
