// cmd/worker/main.go
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/inbo/vespa-db-sub000/pkg/container"
	"github.com/inbo/vespa-db-sub000/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using system environment variables")
	}
	logger.Init(os.Getenv("APP_ENV"))

	// Initialize container
	c, err := container.NewContainer()
	if err != nil {
		log.Fatalf("[Container] Failed to initialize: %v", err)
	}
	defer c.Cleanup()

	// Initialize handlers
	handlers := initializeHandlers(c)

	// Setup Asynq server
	srv, err := setupAsynqServer(c.Config, handlers)
	if err != nil {
		log.Fatalf("[Worker] Failed to start: %v", err)
	}

	// Setup scheduler
	scheduler, err := setupScheduler(c.Config)
	if err != nil {
		srv.Shutdown()
		log.Fatalf("[Scheduler] Failed to start: %v", err)
	}

	// Health checks, then the probe endpoint
	if err := startServices(c); err != nil {
		scheduler.Shutdown()
		srv.Shutdown()
		log.Fatalf("[Startup] Health check failed: %v", err)
	}

	// Wait for shutdown signal
	waitForShutdown(srv, scheduler)
}

func waitForShutdown(srv *asynqServer, scheduler *asynqScheduler) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("[Shutdown] Gracefully stopping...", nil)
	scheduler.Shutdown()
	srv.Shutdown()
	logger.Info("[Shutdown] ✓ Stopped", nil)
}
