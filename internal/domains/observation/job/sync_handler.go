package job

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"

	"github.com/inbo/vespa-db-sub000/internal/domains/observation/feed"
	"github.com/inbo/vespa-db-sub000/internal/domains/observation/model"
	"github.com/inbo/vespa-db-sub000/internal/domains/observation/service"
	"github.com/inbo/vespa-db-sub000/internal/shared/utils"
	"github.com/inbo/vespa-db-sub000/pkg/logger"
)

// SyncObservationsHandler runs one reconciler pass per task.
type SyncObservationsHandler struct {
	syncService service.SyncService
}

func NewSyncObservationsHandler(syncService service.SyncService) *SyncObservationsHandler {
	return &SyncObservationsHandler{syncService: syncService}
}

// ProcessTask retries authentication failures. A failed page ends the run
// as aborted without an error; the next scheduled run covers its window.
// Persistence failures and bad overrides are not retried.
func (h *SyncObservationsHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.SyncObservationsPayload
	if err := utils.UnmarshalTask(t, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	logger.Info("Processing observation sync task", map[string]interface{}{
		"since_weeks": payload.SinceWeeks,
		"date":        payload.Date,
	})

	summary, err := h.syncService.Run(ctx, payload)
	if summary != nil {
		writeResult(t, summary)
	}
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, feed.ErrFatalAuth):
		return fmt.Errorf("sync observations: %w", err)
	case errors.Is(err, feed.ErrTransientFetch):
		logger.Warn("Observation sync aborted by a feed failure", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	case errors.Is(err, model.ErrPersistence) || errors.Is(err, model.ErrInvalidSyncWindow):
		return fmt.Errorf("sync observations: %w: %w", err, asynq.SkipRetry)
	}
	return fmt.Errorf("sync observations: %w", err)
}

// writeResult stores v as the task result. Tasks built outside a worker have no writer.
func writeResult(t *asynq.Task, v interface{}) {
	w := t.ResultWriter()
	if w == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		logger.Error("Failed to encode task result", err)
		return
	}
	if _, err := w.Write(data); err != nil {
		logger.Error("Failed to write task result", err)
	}
}
