package job

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/inbo/vespa-db-sub000/internal/domains/observation/model"
	"github.com/inbo/vespa-db-sub000/internal/domains/observation/service"
	"github.com/inbo/vespa-db-sub000/internal/shared/utils"
	"github.com/inbo/vespa-db-sub000/pkg/logger"
)

// RebuildGeoJSONHandler fans out one pre-warm task per configuration.
type RebuildGeoJSONHandler struct {
	geoJSONService service.GeoJSONService
}

func NewRebuildGeoJSONHandler(geoJSONService service.GeoJSONService) *RebuildGeoJSONHandler {
	return &RebuildGeoJSONHandler{geoJSONService: geoJSONService}
}

func (h *RebuildGeoJSONHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.RebuildGeoJSONPayload
	if err := utils.UnmarshalTask(t, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	enqueued, err := h.geoJSONService.Rebuild(ctx, payload.Reason)
	if err != nil {
		return fmt.Errorf("rebuild geojson caches: %w", err)
	}
	writeResult(t, map[string]int{"enqueued": enqueued})
	return nil
}

// GenerateGeoJSONHandler refreshes the cache entry of one pre-warm configuration.
type GenerateGeoJSONHandler struct {
	geoJSONService service.GeoJSONService
}

func NewGenerateGeoJSONHandler(geoJSONService service.GeoJSONService) *GenerateGeoJSONHandler {
	return &GenerateGeoJSONHandler{geoJSONService: geoJSONService}
}

func (h *GenerateGeoJSONHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.GenerateGeoJSONPayload
	if err := utils.UnmarshalTask(t, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	if payload.Name == "" {
		return fmt.Errorf("generate geojson: missing config name: %w", asynq.SkipRetry)
	}

	if err := h.geoJSONService.Prewarm(ctx, payload.Name, payload.Params); err != nil {
		logger.ErrorWithFields("GeoJSON pre-warm failed", err, map[string]interface{}{"config": payload.Name})
		return err
	}
	return nil
}
