package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inbo/vespa-db-sub000/internal/infrastructure/database"
	"github.com/inbo/vespa-db-sub000/internal/metrics"
	"github.com/inbo/vespa-db-sub000/pkg/container"
	"github.com/inbo/vespa-db-sub000/pkg/logger"
)

// Serve builds the container, starts the HTTP server and blocks until
// SIGINT or SIGTERM.
func Serve() {
	// ========================================
	// 1. BUILD DI CONTAINER
	// ========================================
	appContainer, err := container.NewContainer()
	if err != nil {
		logger.Error("❌ Failed to initialize container", err)
		os.Exit(1)
	}
	defer appContainer.Cleanup()

	// ========================================
	// 2. SETUP ROUTER
	// ========================================
	router := SetupRouter(appContainer)

	// ========================================
	// 3. CONFIGURE HTTP SERVER
	// ========================================
	port := appContainer.Config.App.Port
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Uncached dynamic GeoJSON over the whole dataset can take a while.
		WriteTimeout:   120 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go appContainer.DB.MonitorPoolHealth(ctx, 30*time.Second, func(stats *database.PoolStats) {
		metrics.DBPoolAcquiredConns.Set(float64(stats.AcquiredConns))
	})

	// ========================================
	// 4. START SERVER (NON-BLOCKING)
	// ========================================
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("🚀 Server starting", map[string]interface{}{
			"addr":        srv.Addr,
			"environment": appContainer.Config.App.Environment,
			"health":      "/api/v1/health",
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// ========================================
	// 5. GRACEFUL SHUTDOWN
	// ========================================
	select {
	case <-ctx.Done():
		logger.Info("🛑 Shutting down server...", nil)
	case err := <-serverErr:
		logger.Error("❌ Server failed", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("⚠️  Server forced to shutdown", map[string]interface{}{"error": err.Error()})
	}

	logger.Info("✅ Server exited gracefully", nil)
}
