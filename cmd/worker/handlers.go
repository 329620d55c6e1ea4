package main

import (
	"github.com/hibiken/asynq"

	exportJob "github.com/inbo/vespa-db-sub000/internal/domains/export/job"
	obsJob "github.com/inbo/vespa-db-sub000/internal/domains/observation/job"
	"github.com/inbo/vespa-db-sub000/internal/shared"
	"github.com/inbo/vespa-db-sub000/pkg/container"
)

// HandlerRegistry holds all job handlers
type HandlerRegistry struct {
	// Sync and map cache
	syncObservations *obsJob.SyncObservationsHandler
	rebuildGeoJSON   *obsJob.RebuildGeoJSONHandler
	generateGeoJSON  *obsJob.GenerateGeoJSONHandler

	// Reservations
	expireReservations *obsJob.ExpireReservationsHandler
	auditReservations  *obsJob.AuditReservationCountsHandler

	// Exports
	generateExport *exportJob.GenerateExportHandler
	cleanupExports *exportJob.CleanupExportsHandler
}

// initializeHandlers creates all job handlers with their dependencies
func initializeHandlers(c *container.Container) *HandlerRegistry {
	return &HandlerRegistry{
		syncObservations: obsJob.NewSyncObservationsHandler(c.SyncService),
		rebuildGeoJSON:   obsJob.NewRebuildGeoJSONHandler(c.GeoJSONService),
		generateGeoJSON:  obsJob.NewGenerateGeoJSONHandler(c.GeoJSONService),

		expireReservations: obsJob.NewExpireReservationsHandler(c.ObservationService),
		auditReservations:  obsJob.NewAuditReservationCountsHandler(c.ObservationService),

		generateExport: exportJob.NewGenerateExportHandler(c.ExportService),
		cleanupExports: exportJob.NewCleanupExportsHandler(c.ExportService),
	}
}

// RegisterHandlers registers all handlers with the mux
func (h *HandlerRegistry) RegisterHandlers(mux *asynq.ServeMux) {
	mux.Handle(shared.TypeSyncObservations, h.syncObservations)
	mux.Handle(shared.TypeRebuildGeoJSONCaches, h.rebuildGeoJSON)
	mux.Handle(shared.TypeGenerateGeoJSON, h.generateGeoJSON)

	mux.Handle(shared.TypeExpireReservations, h.expireReservations)
	mux.Handle(shared.TypeAuditReservationCounts, h.auditReservations)

	mux.Handle(shared.TypeGenerateExport, h.generateExport)
	mux.Handle(shared.TypeCleanupExports, h.cleanupExports)
}
