package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-workflow-api/internal/models"
	appErrors "github.com/noah-isme/course-workflow-api/pkg/errors"
	"github.com/noah-isme/course-workflow-api/pkg/response"
)

// RequireRoles rejects callers whose role is not listed.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerFromContext(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !caller.HasRole(roles...) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
