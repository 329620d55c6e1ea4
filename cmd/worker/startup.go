// cmd/worker/startup.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inbo/vespa-db-sub000/pkg/container"
	"github.com/inbo/vespa-db-sub000/pkg/logger"
)

// HealthChecker performs startup and readiness checks
type HealthChecker struct {
	c *container.Container
}

// startServices performs health checks and starts the probe endpoint
func startServices(c *container.Container) error {
	logger.Info("============================================", nil)
	logger.Info("🚀 Vespa-DB Worker Starting...", nil)
	logger.Info("============================================", nil)

	checker := &HealthChecker{c: c}
	if err := checker.checkAll(context.Background()); err != nil {
		return err
	}

	go checker.serve(c.Config.Worker.HealthAddr)
	return nil
}

type check struct {
	name string
	fn   func(ctx context.Context) error
}

func (h *HealthChecker) checks() []check {
	return []check{
		{"Redis Connection", h.c.Redis.HealthCheck},
		{"Database Connection", h.c.DB.HealthCheck},
	}
}

// checkAll runs all health checks
func (h *HealthChecker) checkAll(ctx context.Context) error {
	for _, ck := range h.checks() {
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := ck.fn(cctx)
		cancel()
		if err != nil {
			return fmt.Errorf("%s failed: %w", ck.name, err)
		}
		logger.Info("✓ "+ck.name+": OK", nil)
	}
	return nil
}

func (h *HealthChecker) serve(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.healthHandler)
	mux.HandleFunc("/ready", h.readyHandler)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("[Health] Starting health check server", map[string]interface{}{"addr": addr})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("[Health] Failed to start", err)
	}
}

// healthHandler handles /health (liveness)
func (h *HealthChecker) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP", "service": "vespadb-worker"})
}

// readyHandler handles /ready; the worker is ready when Redis and Postgres answer.
func (h *HealthChecker) readyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.checkAll(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "NOT_READY", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "READY"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
