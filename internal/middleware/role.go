package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bikerental/internal/pkg/response"
)

// RequireRole ensures that the authenticated user has one of the roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ctxRole)
		if !exists {
			response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Role not found in token")
			return
		}

		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		response.Abort(c, http.StatusForbidden, "FORBIDDEN", "Access denied: insufficient permissions")
	}
}

func AdminOnly() gin.HandlerFunc {
	return RequireRole("admin")
}
