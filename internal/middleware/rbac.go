package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/campushub/dissertation-api/internal/models"
	appErrors "github.com/campushub/dissertation-api/pkg/errors"
	"github.com/campushub/dissertation-api/pkg/response"
)

// RequireAdmin only lets administrators through.
func RequireAdmin() gin.HandlerFunc {
	return requireFlag(func(claims *models.JWTClaims) bool {
		return claims.IsAdmin
	})
}

// RequireSupervisor lets supervisors and administrators through.
func RequireSupervisor() gin.HandlerFunc {
	return requireFlag(func(claims *models.JWTClaims) bool {
		return claims.IsSupervisor || claims.IsAdmin
	})
}

func requireFlag(allowed func(*models.JWTClaims) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)
		if !allowed(claims) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
