package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-workflow-api/internal/dto"
	"github.com/noah-isme/course-workflow-api/internal/middleware"
	"github.com/noah-isme/course-workflow-api/internal/models"
	"github.com/noah-isme/course-workflow-api/pkg/response"
)

type courseService interface {
	Propose(ctx context.Context, caller models.Caller, req dto.ProposeCourseRequest) (*models.Course, error)
	Decide(ctx context.Context, caller models.Caller, req dto.CourseDecisionRequest) (*dto.CourseDecisionResult, error)
	Delete(ctx context.Context, caller models.Caller, courseID string) (*dto.DeleteCourseResult, error)
	Get(ctx context.Context, courseID string) (*models.Course, error)
	ListMine(ctx context.Context, caller models.Caller) ([]models.Course, error)
	ListProposals(ctx context.Context, caller models.Caller) ([]models.Course, error)
	ListAll(ctx context.Context) ([]models.Course, bool, error)
}

// CourseHandler exposes the course registry.
type CourseHandler struct {
	courses courseService
}

// NewCourseHandler constructs CourseHandler.
func NewCourseHandler(courses courseService) *CourseHandler {
	return &CourseHandler{courses: courses}
}

// Propose godoc
// @Summary Propose a course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body dto.ProposeCourseRequest true "Course proposal"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Propose(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	var req dto.ProposeCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	course, err := h.courses.Propose(c.Request.Context(), caller, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// ListAll godoc
// @Summary List all courses
// @Tags Courses
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) ListAll(c *gin.Context) {
	courses, hit, err := h.courses.ListAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, courses, middleware.ExtractMeta(c))
}

// ListMine godoc
// @Summary List courses taught by the caller
// @Tags Courses
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /courses/mine [get]
func (h *CourseHandler) ListMine(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	courses, err := h.courses.ListMine(c.Request.Context(), caller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses)
}

// ListProposals godoc
// @Summary List proposals awaiting a decision
// @Tags Courses
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /courses/proposals [get]
func (h *CourseHandler) ListProposals(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	courses, err := h.courses.ListProposals(c.Request.Context(), caller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses)
}

// Get godoc
// @Summary Get course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	course, err := h.courses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course)
}

// Decide godoc
// @Summary Approve or reject proposals
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body dto.CourseDecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /courses/decisions [post]
func (h *CourseHandler) Decide(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	var req dto.CourseDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.courses.Decide(c.Request.Context(), caller, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Delete godoc
// @Summary Delete a course and its enrollments
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	result, err := h.courses.Delete(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
