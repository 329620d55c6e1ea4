package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"github.com/inbo/vespa-db-sub000/internal/domains/observation/model"
	"github.com/inbo/vespa-db-sub000/internal/domains/observation/service"
	"github.com/inbo/vespa-db-sub000/internal/shared"
	"github.com/inbo/vespa-db-sub000/internal/shared/response"
	"github.com/inbo/vespa-db-sub000/pkg/logger"
)

// AdminHandler lets staff trigger background jobs outside their schedule.
type AdminHandler struct {
	queue service.TaskEnqueuer
}

func NewAdminHandler(queue service.TaskEnqueuer) *AdminHandler {
	return &AdminHandler{queue: queue}
}

// A manual sync is refused while an earlier one is still queued.
const syncUniqueTTL = 30 * time.Minute

type enqueuedResponse struct {
	TaskID string `json:"task_id"`
	Type   string `json:"type"`
	Queue  string `json:"queue"`
}

// POST /v1/admin/sync
func (h *AdminHandler) TriggerSync(c *gin.Context) {
	var payload model.SyncObservationsPayload
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			response.BadRequest(c, "invalid request body")
			return
		}
	}
	h.enqueue(c, shared.TypeSyncObservations, payload,
		asynq.Queue(shared.QueueDefault), asynq.MaxRetry(3), asynq.Unique(syncUniqueTTL))
}

// POST /v1/admin/geojson/rebuild
func (h *AdminHandler) TriggerRebuild(c *gin.Context) {
	h.enqueue(c, shared.TypeRebuildGeoJSONCaches, model.RebuildGeoJSONPayload{Reason: "admin"},
		asynq.Queue(shared.QueueLow))
}

// POST /v1/admin/reservations/expire
func (h *AdminHandler) TriggerExpire(c *gin.Context) {
	var payload model.ExpireReservationsPayload
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&payload); err != nil || payload.Days < 0 {
			response.BadRequest(c, "invalid request body")
			return
		}
	}
	h.enqueue(c, shared.TypeExpireReservations, payload, asynq.Queue(shared.QueueDefault))
}

// POST /v1/admin/reservations/audit
func (h *AdminHandler) TriggerAudit(c *gin.Context) {
	h.enqueue(c, shared.TypeAuditReservationCounts, model.AuditReservationCountsPayload{},
		asynq.Queue(shared.QueueDefault))
}

func (h *AdminHandler) enqueue(c *gin.Context, taskType string, payload interface{}, opts ...asynq.Option) {
	data, err := json.Marshal(payload)
	if err != nil {
		response.InternalServerError(c, "failed to encode task")
		return
	}

	info, err := h.queue.EnqueueContext(c.Request.Context(), asynq.NewTask(taskType, data), opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
			response.Conflict(c, "task is already queued")
			return
		}
		logger.Error("failed to enqueue admin task", err)
		response.InternalServerError(c, "failed to enqueue task")
		return
	}

	logger.Info("admin task enqueued", map[string]interface{}{
		"task_id": info.ID,
		"type":    taskType,
	})
	response.Success(c, http.StatusAccepted, enqueuedResponse{TaskID: info.ID, Type: taskType, Queue: info.Queue})
}
