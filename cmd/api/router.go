package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inbo/vespa-db-sub000/internal/shared/middleware"
	"github.com/inbo/vespa-db-sub000/pkg/container"
)

func SetupRouter(c *container.Container) *gin.Engine {
	router := gin.New()

	// Global middlewares
	router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.CORS(c.Config.App.CORSOrigins...),
	)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheckHandler(c))

		setupUserRoutes(v1, c)
		setupObservationRoutes(v1, c)
		setupExportRoutes(v1, c)
		setupAdminRoutes(v1, c)
	}

	return router
}

// ========================================
// USER ROUTES
// ========================================
func setupUserRoutes(v1 *gin.RouterGroup, c *container.Container) {
	users := v1.Group("/users")
	users.Use(middleware.AuthMiddleware(c.JWTManager))
	{
		users.GET("/me", c.UserHandler.GetProfile)
	}
}

// ========================================
// OBSERVATION ROUTES
// ========================================
func setupObservationRoutes(v1 *gin.RouterGroup, c *container.Container) {
	observations := v1.Group("/observations")
	{
		// Public map endpoint
		observations.GET("/dynamic-geojson", c.ObservationHandler.DynamicGeoJSON)

		authed := observations.Group("")
		authed.Use(middleware.AuthMiddleware(c.JWTManager))
		{
			authed.GET("/:id", c.ObservationHandler.GetByID)
			authed.POST("/:id/reserve", c.ObservationHandler.Reserve)
			authed.POST("/:id/release", c.ObservationHandler.Release)
			authed.POST("/:id/eradication", c.ObservationHandler.RecordEradication)
			authed.PATCH("/:id/location", c.ObservationHandler.UpdateLocation)
			authed.DELETE("/:id", middleware.StaffMiddleware(), c.ObservationHandler.Delete)
		}
	}
}

// ========================================
// EXPORT ROUTES
// ========================================
func setupExportRoutes(v1 *gin.RouterGroup, c *container.Container) {
	exports := v1.Group("/exports")
	exports.Use(middleware.AuthMiddleware(c.JWTManager))
	{
		exports.POST("", c.ExportHandler.Create)
		exports.GET("/:id", c.ExportHandler.Get)
	}
}

// ========================================
// ADMIN ROUTES
// ========================================
func setupAdminRoutes(v1 *gin.RouterGroup, c *container.Container) {
	admin := v1.Group("/admin")
	admin.Use(middleware.AuthMiddleware(c.JWTManager), middleware.StaffMiddleware())
	{
		admin.POST("/sync", c.AdminHandler.TriggerSync)
		admin.POST("/geojson/rebuild", c.AdminHandler.TriggerRebuild)
		admin.POST("/reservations/expire", c.AdminHandler.TriggerExpire)
		admin.POST("/reservations/audit", c.AdminHandler.TriggerAudit)
	}
}

// ========================================
// HEALTH CHECK HANDLER
// ========================================
func healthCheckHandler(appCtx *container.Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		health := gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"version":   appCtx.Config.App.Version,
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		dbStatus := "ok"
		if appCtx.DB == nil || appCtx.DB.Pool == nil {
			dbStatus = "disconnected"
		} else if err := appCtx.DB.HealthCheck(ctx); err != nil {
			dbStatus = fmt.Sprintf("error: %v", err)
		}

		// Redis down only degrades the map cache.
		redisStatus := "ok"
		if appCtx.Cache == nil {
			redisStatus = "disconnected"
		} else if err := appCtx.Cache.Ping(ctx); err != nil {
			redisStatus = fmt.Sprintf("error: %v", err)
		}

		storageStatus := "ok"
		if err := appCtx.Storage.Ping(ctx); err != nil {
			storageStatus = fmt.Sprintf("error: %v", err)
		}

		health["services"] = gin.H{
			"database": dbStatus,
			"redis":    redisStatus,
			"storage":  storageStatus,
		}

		statusCode := http.StatusOK
		switch {
		case dbStatus != "ok":
			health["status"] = "unavailable"
			statusCode = http.StatusServiceUnavailable
		case redisStatus != "ok" || storageStatus != "ok":
			health["status"] = "degraded"
		}

		c.JSON(statusCode, health)
	}
}
