package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-supplies/jobs"
)

// jobsCLI wraps manual management helpers for Asynq jobs.
type jobsCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	retention time.Duration
}

func newJobsCLI(redisAddr string, retention time.Duration) *jobsCLI {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	return &jobsCLI{client: asynq.NewClient(opts), inspector: asynq.NewInspector(opts), retention: retention}
}

func (c *jobsCLI) Close() error {
	return errors.Join(c.inspector.Close(), c.client.Close())
}

// task maps CLI job names to task constructors.
func (c *jobsCLI) task(name string) (*asynq.Task, error) {
	switch name {
	case "alert-scan", jobs.TaskStockAlertScan:
		return jobs.NewAlertScanTask(0)
	case "idempotency-purge", jobs.TaskIdempotencyPurge:
		return jobs.NewIdempotencyPurgeTask(c.retention)
	default:
		return nil, fmt.Errorf("supplyctl: unsupported job %q", name)
	}
}

func (c *jobsCLI) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	task, err := c.task(name)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3))
}

func (c *jobsCLI) InspectQueue() (*asynq.QueueInfo, error) {
	return c.inspector.GetQueueInfo(jobs.QueueDefault)
}
