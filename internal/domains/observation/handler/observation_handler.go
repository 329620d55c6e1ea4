package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/inbo/vespa-db-sub000/internal/domains/observation/model"
	"github.com/inbo/vespa-db-sub000/internal/domains/observation/service"
	"github.com/inbo/vespa-db-sub000/internal/shared/middleware"
	"github.com/inbo/vespa-db-sub000/internal/shared/response"
	"github.com/inbo/vespa-db-sub000/pkg/logger"
)

type ObservationHandler struct {
	observations service.ObservationService
	geojson      service.GeoJSONService
}

func NewObservationHandler(observations service.ObservationService, geojson service.GeoJSONService) *ObservationHandler {
	return &ObservationHandler{
		observations: observations,
		geojson:      geojson,
	}
}

// ════════════════════════════════════════════════════════════════
// MAP: GET /v1/observations/dynamic-geojson
// ════════════════════════════════════════════════════════════════

func (h *ObservationHandler) DynamicGeoJSON(c *gin.Context) {
	body, err := h.geojson.Get(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		handleError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/geo+json", body)
}

// ════════════════════════════════════════════════════════════════
// READ: GET /v1/observations/:id
// ════════════════════════════════════════════════════════════════

func (h *ObservationHandler) GetByID(c *gin.Context) {
	id, ok := observationID(c)
	if !ok {
		return
	}

	obs, err := h.observations.GetByID(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, obs)
}

// ════════════════════════════════════════════════════════════════
// RESERVE: POST /v1/observations/:id/reserve
// ════════════════════════════════════════════════════════════════

func (h *ObservationHandler) Reserve(c *gin.Context) {
	id, ok := observationID(c)
	if !ok {
		return
	}
	userID, _ := middleware.GetUserID(c)

	resp, err := h.observations.Reserve(c.Request.Context(), id, userID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}

// ════════════════════════════════════════════════════════════════
// RELEASE: POST /v1/observations/:id/release
// ════════════════════════════════════════════════════════════════

func (h *ObservationHandler) Release(c *gin.Context) {
	id, ok := observationID(c)
	if !ok {
		return
	}
	userID, _ := middleware.GetUserID(c)

	resp, err := h.observations.Release(c.Request.Context(), id, userID, middleware.IsStaff(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}

// ════════════════════════════════════════════════════════════════
// ERADICATION: POST /v1/observations/:id/eradication
// ════════════════════════════════════════════════════════════════

func (h *ObservationHandler) RecordEradication(c *gin.Context) {
	id, ok := observationID(c)
	if !ok {
		return
	}

	var req model.EradicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	userID, _ := middleware.GetUserID(c)

	obs, err := h.observations.RecordEradication(c.Request.Context(), id, userID, req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, obs)
}

// ════════════════════════════════════════════════════════════════
// LOCATION: PATCH /v1/observations/:id/location
// ════════════════════════════════════════════════════════════════

func (h *ObservationHandler) UpdateLocation(c *gin.Context) {
	id, ok := observationID(c)
	if !ok {
		return
	}

	var req model.LocationUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	userID, _ := middleware.GetUserID(c)

	obs, err := h.observations.UpdateLocation(c.Request.Context(), id, userID, req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, obs)
}

// ════════════════════════════════════════════════════════════════
// DELETE: DELETE /v1/observations/:id (staff)
// ════════════════════════════════════════════════════════════════

func (h *ObservationHandler) Delete(c *gin.Context) {
	id, ok := observationID(c)
	if !ok {
		return
	}

	if err := h.observations.Delete(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func observationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid observation id")
		return 0, false
	}
	return id, true
}

// handleError maps domain errors to HTTP responses.
func handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrObservationNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, model.ErrInvalidFilter):
		response.BadRequest(c, err.Error())
	case errors.Is(err, model.ErrInvalidEradication), errors.Is(err, model.ErrInvalidLocation):
		response.ValidationFailed(c, err)
	case errors.Is(err, model.ErrNotReservationHolder):
		response.Forbidden(c, err.Error())
	case errors.Is(err, model.ErrAlreadyReserved),
		errors.Is(err, model.ErrAlreadyEradicated),
		errors.Is(err, model.ErrReservationLimit),
		errors.Is(err, model.ErrNotReserved):
		response.Conflict(c, err.Error())
	default:
		logger.Error("observation request failed", err)
		response.InternalServerError(c, "internal server error")
	}
}
