package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-supplies/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockAlertScan recomputes the reorder alerts and publishes the critical-items gauge.
	TaskStockAlertScan = "stock:alert_scan"
	// TaskIdempotencyPurge removes idempotency keys older than the retention window.
	TaskIdempotencyPurge = "idempotency:purge"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// AlertScanPayload identifies what triggered a scan. ItemID is zero for scheduled runs.
// The payload must stay deterministic per item: asynq derives the uniqueness lock from it.
type AlertScanPayload struct {
	ItemID int64 `json:"item_id,omitempty"`
}

// IdempotencyPurgePayload carries the retention window applied by the purge.
type IdempotencyPurgePayload struct {
	Retention time.Duration `json:"retention"`
}

// NewAlertScanTask constructs an alert scan task.
func NewAlertScanTask(itemID int64) (*asynq.Task, error) {
	body, err := json.Marshal(AlertScanPayload{ItemID: itemID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockAlertScan, body, asynq.Queue(QueueDefault)), nil
}

// NewIdempotencyPurgeTask constructs a purge task for keys older than retention.
func NewIdempotencyPurgeTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyPurgePayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyPurge, body, asynq.Queue(QueueDefault)), nil
}
