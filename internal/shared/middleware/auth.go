package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/inbo/vespa-db-sub000/internal/shared"
	"github.com/inbo/vespa-db-sub000/internal/shared/response"
	"github.com/inbo/vespa-db-sub000/pkg/jwt"
)

// AuthMiddleware verifies the bearer token and stores the caller in the context.
func AuthMiddleware(tokens *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Unauthorized(c, "invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := tokens.ValidateAccessToken(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid token")
			c.Abort()
			return
		}

		c.Set(shared.CtxUserID, claims.UserID)
		c.Set(shared.CtxIsStaff, claims.IsStaff)
		c.Next()
	}
}

// GetUserID returns the authenticated user id.
func GetUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(shared.CtxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// IsStaff reports whether the authenticated user is staff.
func IsStaff(c *gin.Context) bool {
	return c.GetBool(shared.CtxIsStaff)
}
