package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"github.com/inbo/vespa-db-sub000/internal/metrics"
	"github.com/inbo/vespa-db-sub000/pkg/logger"
)

// Observe logs every processed task and records its outcome and duration.
func Observe(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		taskID, _ := asynq.GetTaskID(ctx)
		retried, _ := asynq.GetRetryCount(ctx)

		err := next.ProcessTask(ctx, t)

		metrics.ObserveSince(metrics.TaskDuration.WithLabelValues(t.Type()), start)
		fields := map[string]interface{}{
			"task_id":     taskID,
			"type":        t.Type(),
			"retry":       retried,
			"duration_ms": time.Since(start).Milliseconds(),
		}

		switch {
		case err == nil:
			metrics.TasksProcessedTotal.WithLabelValues(t.Type(), "success").Inc()
			logger.Info("task processed", fields)
		case errors.Is(err, asynq.SkipRetry):
			metrics.TasksProcessedTotal.WithLabelValues(t.Type(), "dropped").Inc()
			logger.ErrorWithFields("task failed permanently", err, fields)
		default:
			metrics.TasksProcessedTotal.WithLabelValues(t.Type(), "retry").Inc()
			logger.ErrorWithFields("task failed", err, fields)
		}
		return err
	})
}
