// vespactl runs maintenance operations in-process, without going through the queue.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/inbo/vespa-db-sub000/pkg/logger"
)

func main() {
	_ = godotenv.Load()
	logger.Init(os.Getenv("APP_ENV"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := RootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
