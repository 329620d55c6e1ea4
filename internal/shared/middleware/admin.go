package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/inbo/vespa-db-sub000/internal/shared/response"
)

// StaffMiddleware allows staff users only. Must run after AuthMiddleware.
func StaffMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsStaff(c) {
			response.Forbidden(c, "Access denied: staff role required")
			c.Abort()
			return
		}
		c.Next()
	}
}
