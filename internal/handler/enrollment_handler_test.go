package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-workflow-api/internal/dto"
	"github.com/noah-isme/course-workflow-api/internal/models"
	"github.com/noah-isme/course-workflow-api/internal/projection"
	appErrors "github.com/noah-isme/course-workflow-api/pkg/errors"
)

type enrollmentServiceMock struct {
	lastFilter     projection.Filter
	lastListFilter models.EnrollmentFilter
	lastCourseID   string
	lastAction     dto.StudentActionRequest
	lastDecision   dto.EnrollmentDecisionRequest
	actionErr      error
}

func (m *enrollmentServiceMock) ListForStudent(ctx context.Context, caller models.Caller, filter projection.Filter) ([]projection.Row, error) {
	m.lastFilter = filter
	return []projection.Row{{Course: models.Course{ID: "c1"}, UnifiedStatus: models.EnrollmentStatusNotEnrolled, Priority: 4, Selectable: true}}, nil
}

func (m *enrollmentServiceMock) StudentAction(ctx context.Context, caller models.Caller, req dto.StudentActionRequest) (*dto.StudentActionResult, error) {
	m.lastAction = req
	if m.actionErr != nil {
		return nil, m.actionErr
	}
	return &dto.StudentActionResult{Action: req.Action}, nil
}

func (m *enrollmentServiceMock) InstructorDecision(ctx context.Context, caller models.Caller, req dto.EnrollmentDecisionRequest) (*dto.InstructorDecisionResult, error) {
	m.lastDecision = req
	return &dto.InstructorDecisionResult{Modified: 1, Skipped: []string{"e2"}}, nil
}

func (m *enrollmentServiceMock) FADecision(ctx context.Context, caller models.Caller, req dto.EnrollmentDecisionRequest) (*dto.FADecisionResult, error) {
	m.lastDecision = req
	return &dto.FADecisionResult{Modified: 2}, nil
}

func (m *enrollmentServiceMock) ListForInstructor(ctx context.Context, caller models.Caller, courseID string, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	m.lastCourseID = courseID
	m.lastListFilter = filter
	return nil, nil
}

func (m *enrollmentServiceMock) ListForFA(ctx context.Context, caller models.Caller, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	m.lastListFilter = filter
	return nil, nil
}

func TestEnrollmentHandlerStudentCoursesParsesFacets(t *testing.T) {
	mockSvc := &enrollmentServiceMock{}
	handler := NewEnrollmentHandler(mockSvc)

	c, w := newTestContext(http.MethodGet, "/student/courses?search=bio&department=SCI&slot=A&credits=4&status=NOT_ENROLLED", nil, studentClaims)
	handler.StudentCourses(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bio", mockSvc.lastFilter.Search)
	assert.Equal(t, "SCI", mockSvc.lastFilter.Department)
	require.NotNil(t, mockSvc.lastFilter.Credits)
	assert.Equal(t, 4.0, *mockSvc.lastFilter.Credits)
	assert.Equal(t, models.EnrollmentStatusNotEnrolled, mockSvc.lastFilter.Status)
	assert.Contains(t, w.Body.String(), `"unified_status":"not_enrolled"`)
}

func TestEnrollmentHandlerStudentCoursesRejectsBadCredits(t *testing.T) {
	handler := NewEnrollmentHandler(&enrollmentServiceMock{})

	c, w := newTestContext(http.MethodGet, "/student/courses?credits=lots", nil, studentClaims)
	handler.StudentCourses(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnrollmentHandlerStudentActionInvalidSelection(t *testing.T) {
	mockSvc := &enrollmentServiceMock{actionErr: appErrors.WithDetails(appErrors.ErrInvalidActionForSelection, "not allowed",
		dto.InvalidSelection{Action: "credit", IDs: []string{"c2"}})}
	handler := NewEnrollmentHandler(mockSvc)

	c, w := newTestContext(http.MethodPost, "/student/actions", []byte(`{"courseIds":["c1","c2"],"action":"credit"}`), studentClaims)
	handler.StudentAction(c)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, models.StudentActionCredit, mockSvc.lastAction.Action)
	body := decodeError(t, w)
	assert.Equal(t, "INVALID_ACTION_FOR_SELECTION", body.Code)
	assert.Equal(t, []interface{}{"c2"}, body.Details.(map[string]interface{})["ids"])
}

func TestEnrollmentHandlerDecisions(t *testing.T) {
	mockSvc := &enrollmentServiceMock{}
	handler := NewEnrollmentHandler(mockSvc)

	c, w := newTestContext(http.MethodPost, "/enrollments/instructor-decisions", []byte(`{"enrollmentIds":["e1","e2"],"action":"reject"}`), instructorClaims)
	handler.InstructorDecision(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.DecisionReject, mockSvc.lastDecision.Action)
	assert.Contains(t, w.Body.String(), `"skipped":["e2"]`)

	c, w = newTestContext(http.MethodPost, "/enrollments/fa-decisions", []byte(`{"enrollmentIds":["e1"],"action":"approve"}`), faClaims)
	handler.FADecision(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"modified":2`)
}

func TestEnrollmentHandlerLists(t *testing.T) {
	mockSvc := &enrollmentServiceMock{}
	handler := NewEnrollmentHandler(mockSvc)

	c, w := newTestContext(http.MethodGet, "/courses/c1/enrollments?status=APPROVED&year=2023&search=sam", nil, instructorClaims)
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	handler.CourseEnrollments(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "c1", mockSvc.lastCourseID)
	assert.Equal(t, models.EnrollmentStatusApproved, mockSvc.lastListFilter.Status)
	require.NotNil(t, mockSvc.lastListFilter.Year)
	assert.Equal(t, 2023, *mockSvc.lastListFilter.Year)

	c, w = newTestContext(http.MethodGet, "/enrollments/pending-fa?department=BIO", nil, faClaims)
	handler.PendingFA(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "BIO", mockSvc.lastListFilter.Department)
	assert.Equal(t, models.EnrollmentStatus(""), mockSvc.lastListFilter.Status)
}
