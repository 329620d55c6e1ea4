package queue

import (
	"github.com/hibiken/asynq"

	"github.com/inbo/vespa-db-sub000/internal/config"
)

// RedisOpt is the asynq connection shared by the client, server and scheduler.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Host,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewClient returns the task producer used by the API and the services.
func NewClient(cfg config.RedisConfig) *asynq.Client {
	return asynq.NewClient(RedisOpt(cfg))
}
