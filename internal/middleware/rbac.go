package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/vidyalaya/sams-api/internal/models"
	appErrors "github.com/vidyalaya/sams-api/pkg/errors"
	"github.com/vidyalaya/sams-api/pkg/response"
)

// RequireRoles enforces role-based access control for routes.
func RequireRoles(allowed ...string) gin.HandlerFunc {
	allowedRoles := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		allowedRoles[role] = struct{}{}
	}
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}
