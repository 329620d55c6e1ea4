package main

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"github.com/inbo/vespa-db-sub000/internal/config"
	"github.com/inbo/vespa-db-sub000/internal/infrastructure/queue"
	"github.com/inbo/vespa-db-sub000/internal/infrastructure/queue/handlers"
	"github.com/inbo/vespa-db-sub000/internal/shared"
	"github.com/inbo/vespa-db-sub000/pkg/logger"
)

// asynqServer wraps asynq.Server with additional functionality
type asynqServer struct {
	*asynq.Server
}

// setupAsynqServer creates the Asynq server and starts processing.
func setupAsynqServer(cfg *config.Config, registry *HandlerRegistry) (*asynqServer, error) {
	mux := asynq.NewServeMux()
	mux.Use(handlers.Observe)
	registry.RegisterHandlers(mux)

	srv := asynq.NewServer(
		queue.RedisOpt(cfg.Redis),
		asynq.Config{
			Queues: map[string]int{
				shared.QueueCritical: 6,
				shared.QueueDefault:  3,
				shared.QueueLow:      1,
			},
			Concurrency: cfg.Worker.Concurrency,
			// Shutdown waits this long for a running sync batch to commit.
			ShutdownTimeout: 30 * time.Second,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				fields := map[string]interface{}{
					"type":      task.Type(),
					"retry":     retried,
					"max_retry": maxRetry,
					"error":     err.Error(),
				}
				if errors.Is(err, asynq.SkipRetry) || retried >= maxRetry {
					logger.Warn("[Asynq] ❌ Task failed permanently", fields)
					return
				}
				logger.Warn("[Asynq] Task failed, will retry", fields)
			}),
		},
	)

	logger.Info("[Worker] Starting...", map[string]interface{}{"concurrency": cfg.Worker.Concurrency})
	if err := srv.Start(mux); err != nil {
		return nil, err
	}

	return &asynqServer{Server: srv}, nil
}

// Shutdown waits for in-flight tasks up to the configured timeout.
func (s *asynqServer) Shutdown() {
	logger.Info("[Worker] Shutting down...", nil)
	s.Server.Shutdown()
	logger.Info("[Worker] ✓ Gracefully stopped", nil)
}
