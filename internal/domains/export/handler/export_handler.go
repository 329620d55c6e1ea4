package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/inbo/vespa-db-sub000/internal/domains/export/model"
	"github.com/inbo/vespa-db-sub000/internal/domains/export/service"
	"github.com/inbo/vespa-db-sub000/internal/shared/middleware"
	"github.com/inbo/vespa-db-sub000/internal/shared/response"
	"github.com/inbo/vespa-db-sub000/pkg/logger"
)

type ExportHandler struct {
	service service.ExportService
}

func NewExportHandler(svc service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// ════════════════════════════════════════════════════════════════
// CREATE: POST /v1/exports
// ════════════════════════════════════════════════════════════════

func (h *ExportHandler) Create(c *gin.Context) {
	var req model.CreateExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	userID, _ := middleware.GetUserID(c)

	export, err := h.service.Create(c.Request.Context(), userID, middleware.IsStaff(c), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, export)
}

// ════════════════════════════════════════════════════════════════
// READ: GET /v1/exports/:id
// ════════════════════════════════════════════════════════════════

func (h *ExportHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid UUID format")
		return
	}
	userID, _ := middleware.GetUserID(c)

	resp, err := h.service.Get(c.Request.Context(), id, userID, middleware.IsStaff(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}

func handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrExportNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, model.ErrExportForbidden):
		response.Forbidden(c, err.Error())
	case errors.Is(err, model.ErrInvalidExport):
		response.ValidationFailed(c, err)
	default:
		logger.Error("export request failed", err)
		response.InternalServerError(c, "internal server error")
	}
}
