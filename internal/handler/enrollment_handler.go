package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-workflow-api/internal/dto"
	"github.com/noah-isme/course-workflow-api/internal/models"
	"github.com/noah-isme/course-workflow-api/internal/projection"
	appErrors "github.com/noah-isme/course-workflow-api/pkg/errors"
	"github.com/noah-isme/course-workflow-api/pkg/response"
)

type enrollmentService interface {
	ListForStudent(ctx context.Context, caller models.Caller, filter projection.Filter) ([]projection.Row, error)
	StudentAction(ctx context.Context, caller models.Caller, req dto.StudentActionRequest) (*dto.StudentActionResult, error)
	InstructorDecision(ctx context.Context, caller models.Caller, req dto.EnrollmentDecisionRequest) (*dto.InstructorDecisionResult, error)
	FADecision(ctx context.Context, caller models.Caller, req dto.EnrollmentDecisionRequest) (*dto.FADecisionResult, error)
	ListForInstructor(ctx context.Context, caller models.Caller, courseID string, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error)
	ListForFA(ctx context.Context, caller models.Caller, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error)
}

// EnrollmentHandler exposes the enrollment ledger and approval gateway.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// StudentCourses godoc
// @Summary Student course view with unified status
// @Tags Enrollments
// @Produce json
// @Param search query string false "Free text over name, code and instructors"
// @Param department query string false "Offering department"
// @Param slot query string false "Slot"
// @Param credits query number false "Credits"
// @Param status query string false "Unified status"
// @Success 200 {object} response.Envelope
// @Router /student/courses [get]
func (h *EnrollmentHandler) StudentCourses(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	var query dto.StudentCourseQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	rows, err := h.enrollments.ListForStudent(c.Request.Context(), caller, query.Filter())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows)
}

// StudentAction godoc
// @Summary Credit, drop or withdraw from selected courses
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.StudentActionRequest true "Action"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /student/actions [post]
func (h *EnrollmentHandler) StudentAction(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	var req dto.StudentActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.enrollments.StudentAction(c.Request.Context(), caller, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// CourseEnrollments godoc
// @Summary List a course's enrollments
// @Tags Enrollments
// @Produce json
// @Param id path string true "Course ID"
// @Param status query string false "Status"
// @Param department query string false "Student department"
// @Param year query int false "Student entry year"
// @Param search query string false "Email or name"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/enrollments [get]
func (h *EnrollmentHandler) CourseEnrollments(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	var query dto.EnrollmentListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	details, err := h.enrollments.ListForInstructor(c.Request.Context(), caller, c.Param("id"), query.Filter())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details)
}

// InstructorDecision godoc
// @Summary Instructor approves or rejects enrollments
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.EnrollmentDecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /enrollments/instructor-decisions [post]
func (h *EnrollmentHandler) InstructorDecision(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	var req dto.EnrollmentDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.enrollments.InstructorDecision(c.Request.Context(), caller, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// PendingFA godoc
// @Summary Enrollments awaiting the faculty advisor
// @Tags Enrollments
// @Produce json
// @Param status query string false "Status, defaults to pending_fa"
// @Param department query string false "Student department"
// @Param year query int false "Student entry year"
// @Param search query string false "Email or name"
// @Success 200 {object} response.Envelope
// @Router /enrollments/pending-fa [get]
func (h *EnrollmentHandler) PendingFA(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	var query dto.EnrollmentListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	details, err := h.enrollments.ListForFA(c.Request.Context(), caller, query.Filter())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details)
}

// FADecision godoc
// @Summary Faculty advisor approves or rejects enrollments
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.EnrollmentDecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/fa-decisions [post]
func (h *EnrollmentHandler) FADecision(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		return
	}
	var req dto.EnrollmentDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.enrollments.FADecision(c.Request.Context(), caller, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
