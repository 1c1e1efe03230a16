package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-workflow-api/internal/dto"
	"github.com/noah-isme/course-workflow-api/internal/models"
	"github.com/noah-isme/course-workflow-api/internal/service"
	appErrors "github.com/noah-isme/course-workflow-api/pkg/errors"
	"github.com/noah-isme/course-workflow-api/pkg/export"
	"github.com/noah-isme/course-workflow-api/pkg/response"
)

type rosterService interface {
	Export(ctx context.Context, caller models.Caller, courseID string, format export.Format) (*service.RosterFile, error)
	Import(ctx context.Context, caller models.Caller, courseID string, data []byte) (*models.RosterImportResult, error)
}

// RosterHandler exchanges grade spreadsheets.
type RosterHandler struct {
	rosters rosterService
	maxSize int64
}

// NewRosterHandler constructs RosterHandler. maxSize bounds how much of an upload is read.
func NewRosterHandler(rosters rosterService, maxSize int64) *RosterHandler {
	if maxSize <= 0 {
		maxSize = 5 * 1024 * 1024
	}
	return &RosterHandler{rosters: rosters, maxSize: maxSize}
}

// Export godoc
// @Summary Download the roster of approved enrollments
// @Tags Rosters
// @Produce text/csv
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Produce application/pdf
// @Param id path string true "Course ID"
// @Param format query string false "csv, xlsx or pdf"
// @Success 200 {file} file
// @Failure 422 {object} response.Envelope
// @Router /courses/{id}/roster [get]
func (h *RosterHandler) Export(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	var query dto.RosterQuery
	_ = c.ShouldBindQuery(&query)
	format, valid := export.ParseFormat(query.Format)
	if !valid {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv, xlsx or pdf"))
		return
	}
	file, err := h.rosters.Export(c.Request.Context(), caller, c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// Import godoc
// @Summary Upload grades for approved enrollments
// @Tags Rosters
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Course ID"
// @Param file formData file true "Roster csv or xlsx"
// @Success 200 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /courses/{id}/roster [post]
func (h *RosterHandler) Import(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	if header.Size > h.maxSize {
		response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("roster file exceeds %d bytes", h.maxSize)))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file could not be opened"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxSize+1))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file could not be read"))
		return
	}
	result, err := h.rosters.Import(c.Request.Context(), caller, c.Param("id"), data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
