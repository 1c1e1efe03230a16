package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-workflow-api/internal/middleware"
	"github.com/noah-isme/course-workflow-api/internal/models"
	appErrors "github.com/noah-isme/course-workflow-api/pkg/errors"
	"github.com/noah-isme/course-workflow-api/pkg/response"
)

// callerFromContext writes a 401 and returns false when no caller was resolved.
func callerFromContext(c *gin.Context) (models.Caller, bool) {
	caller, ok := middleware.CallerFromContext(c)
	if !ok || caller.ID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Caller{}, false
	}
	return caller, true
}

func invalidPayload(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
}
