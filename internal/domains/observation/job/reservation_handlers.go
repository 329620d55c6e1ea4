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

// ExpireReservationsHandler runs the daily reservation sweep.
type ExpireReservationsHandler struct {
	observationService service.ObservationService
}

func NewExpireReservationsHandler(observationService service.ObservationService) *ExpireReservationsHandler {
	return &ExpireReservationsHandler{observationService: observationService}
}

func (h *ExpireReservationsHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.ExpireReservationsPayload
	if err := utils.UnmarshalTask(t, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	cleared, err := h.observationService.ExpireReservations(ctx, payload.Days)
	if err != nil {
		return fmt.Errorf("expire reservations: %w", err)
	}
	writeResult(t, map[string]int64{"cleared": cleared})
	return nil
}

// AuditReservationCountsHandler rewrites drifted per-user reservation counters.
type AuditReservationCountsHandler struct {
	observationService service.ObservationService
}

func NewAuditReservationCountsHandler(observationService service.ObservationService) *AuditReservationCountsHandler {
	return &AuditReservationCountsHandler{observationService: observationService}
}

func (h *AuditReservationCountsHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	corrections, err := h.observationService.AuditReservationCounts(ctx)
	if err != nil {
		return fmt.Errorf("audit reservation counts: %w", err)
	}

	logger.Info("Reservation counter audit finished", map[string]interface{}{
		"corrected": len(corrections),
	})
	writeResult(t, map[string]int{"corrected": len(corrections)})
	return nil
}
