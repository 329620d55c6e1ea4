package job

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/inbo/vespa-db-sub000/internal/domains/export/model"
	"github.com/inbo/vespa-db-sub000/internal/domains/export/service"
	"github.com/inbo/vespa-db-sub000/internal/shared/utils"
)

// GenerateExportHandler renders one requested export.
type GenerateExportHandler struct {
	exportService service.ExportService
}

func NewGenerateExportHandler(exportService service.ExportService) *GenerateExportHandler {
	return &GenerateExportHandler{exportService: exportService}
}

func (h *GenerateExportHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.GenerateExportPayload
	if err := utils.UnmarshalTask(t, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	if err := h.exportService.Generate(ctx, payload.ExportID); err != nil {
		if service.IsPermanent(err) {
			return fmt.Errorf("generate export %s: %w: %w", payload.ExportID, err, asynq.SkipRetry)
		}
		return fmt.Errorf("generate export %s: %w", payload.ExportID, err)
	}
	return nil
}

// CleanupExportsHandler removes exports past the retention window.
type CleanupExportsHandler struct {
	exportService service.ExportService
}

func NewCleanupExportsHandler(exportService service.ExportService) *CleanupExportsHandler {
	return &CleanupExportsHandler{exportService: exportService}
}

func (h *CleanupExportsHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.CleanupExportsPayload
	if err := utils.UnmarshalTask(t, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	deleted, err := h.exportService.Cleanup(ctx, payload.OlderThanDays)
	if err != nil {
		return fmt.Errorf("cleanup exports: %w", err)
	}

	if w := t.ResultWriter(); w != nil {
		_, _ = fmt.Fprintf(w, `{"deleted":%d}`, deleted)
	}
	return nil
}
