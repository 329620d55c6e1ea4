package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/inbo/vespa-db-sub000/internal/domains/user/model"
	"github.com/inbo/vespa-db-sub000/internal/domains/user/service"
	"github.com/inbo/vespa-db-sub000/internal/shared/middleware"
	"github.com/inbo/vespa-db-sub000/internal/shared/response"
	"github.com/inbo/vespa-db-sub000/pkg/logger"
)

type UserHandler struct {
	service service.UserService
}

func NewUserHandler(svc service.UserService) *UserHandler {
	return &UserHandler{service: svc}
}

// ========================================
// USER PROFILE ENDPOINTS (PROTECTED)
// ========================================

// GetProfile handles GET /users/me
func (h *UserHandler) GetProfile(c *gin.Context) {
	// STEP 1: GET USER ID FROM CONTEXT
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	// STEP 2: GET PROFILE
	profile, err := h.service.GetProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			response.NotFound(c, err.Error())
			return
		}
		logger.Error("Failed to load profile", err)
		response.InternalServerError(c, "failed to load profile")
		return
	}

	// STEP 3: SUCCESS
	response.Success(c, http.StatusOK, profile)
}
