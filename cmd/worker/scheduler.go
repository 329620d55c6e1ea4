package main

import (
	"github.com/inbo/vespa-db-sub000/internal/config"
	"github.com/inbo/vespa-db-sub000/internal/infrastructure/queue"
	"github.com/inbo/vespa-db-sub000/pkg/logger"
)

// asynqScheduler wraps queue.Scheduler with additional functionality
type asynqScheduler struct {
	*queue.Scheduler
}

// setupScheduler registers every periodic job and starts the scheduler.
func setupScheduler(cfg *config.Config) (*asynqScheduler, error) {
	scheduler := queue.NewScheduler(cfg)

	if err := scheduler.RegisterJobs(); err != nil {
		return nil, err
	}

	logger.Info("[Scheduler] Starting...", map[string]interface{}{"timezone": cfg.App.Timezone})
	if err := scheduler.Start(); err != nil {
		return nil, err
	}

	return &asynqScheduler{Scheduler: scheduler}, nil
}

// Shutdown gracefully shuts down the scheduler
func (s *asynqScheduler) Shutdown() {
	logger.Info("[Scheduler] Shutting down...", nil)
	s.Scheduler.Shutdown()
	logger.Info("[Scheduler] ✓ Stopped", nil)
}
