package service

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-workflow-api/internal/dto"
	"github.com/noah-isme/course-workflow-api/internal/models"
	"github.com/noah-isme/course-workflow-api/internal/projection"
	"github.com/noah-isme/course-workflow-api/internal/repository"
	appErrors "github.com/noah-isme/course-workflow-api/pkg/errors"
)

type enrollmentRepoFake struct {
	rows    []models.Enrollment
	courses *courseRepoFake
	users   map[string]models.User
	seq     int
	// beforeCreate runs ahead of every insert, letting a test commit a competing row.
	beforeCreate func(enrollment models.Enrollment)
}

func newEnrollmentRepoFake(courses *courseRepoFake) *enrollmentRepoFake {
	f := &enrollmentRepoFake{courses: courses, users: make(map[string]models.User)}
	if courses != nil {
		courses.enrollments = f
	}
	return f
}

func (f *enrollmentRepoFake) add(e models.Enrollment) string {
	f.seq++
	if e.ID == "" {
		e.ID = fmt.Sprintf("enr-%d", f.seq)
	}
	if e.Status == "" {
		e.Status = models.EnrollmentStatusPendingInstructor
	}
	e.RequestDate = time.Unix(int64(f.seq), 0)
	f.rows = append(f.rows, e)
	return e.ID
}

func (f *enrollmentRepoFake) get(id string) *models.Enrollment {
	for i := range f.rows {
		if f.rows[i].ID == id {
			return &f.rows[i]
		}
	}
	return nil
}

func (f *enrollmentRepoFake) forCourse(courseID string) []models.Enrollment {
	var out []models.Enrollment
	for _, row := range f.rows {
		if row.CourseID == courseID {
			out = append(out, row)
		}
	}
	return out
}

func (f *enrollmentRepoFake) deleteCourse(courseID string) int64 {
	kept := f.rows[:0]
	var removed int64
	for _, row := range f.rows {
		if row.CourseID == courseID {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	f.rows = kept
	return removed
}

func (f *enrollmentRepoFake) ListLatestByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	latest := make(map[string]models.Enrollment)
	for _, row := range f.rows {
		if row.StudentID == studentID {
			latest[row.CourseID] = row
		}
	}
	out := make([]models.Enrollment, 0, len(latest))
	for _, row := range latest {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseID < out[j].CourseID })
	return out, nil
}

func (f *enrollmentRepoFake) LockByStudentAndCourses(ctx context.Context, exec sqlx.ExtContext, studentID string, courseIDs []string) ([]models.Enrollment, error) {
	wanted := make(map[string]struct{}, len(courseIDs))
	for _, id := range courseIDs {
		wanted[id] = struct{}{}
	}
	var out []models.Enrollment
	for _, row := range f.rows {
		if _, ok := wanted[row.CourseID]; ok && row.StudentID == studentID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *enrollmentRepoFake) LockByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.Enrollment, error) {
	var out []models.Enrollment
	for _, id := range ids {
		if row := f.get(id); row != nil {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *enrollmentRepoFake) Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	if f.beforeCreate != nil {
		f.beforeCreate(*enrollment)
	}
	for _, row := range f.rows {
		if row.StudentID == enrollment.StudentID && row.CourseID == enrollment.CourseID && !row.Status.IsTerminal() {
			return fmt.Errorf("create enrollment for course %s: %w", enrollment.CourseID, repository.ErrLiveEnrollmentExists)
		}
	}
	enrollment.ID = f.add(*enrollment)
	return nil
}

func (f *enrollmentRepoFake) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, ids []string, status models.EnrollmentStatus) (int64, error) {
	var n int64
	for _, id := range ids {
		if row := f.get(id); row != nil {
			row.Status = status
			n++
		}
	}
	return n, nil
}

func (f *enrollmentRepoFake) UpdateStatusFrom(ctx context.Context, exec sqlx.ExtContext, ids []string, from, to models.EnrollmentStatus) (int64, error) {
	var n int64
	for _, id := range ids {
		if row := f.get(id); row != nil && row.Status == from {
			row.Status = to
			n++
		}
	}
	return n, nil
}

func (f *enrollmentRepoFake) SetGrades(ctx context.Context, exec sqlx.ExtContext, updates []models.GradeUpdate) (int64, error) {
	var n int64
	for _, update := range updates {
		row := f.get(update.EnrollmentID)
		if row == nil || row.Status != models.EnrollmentStatusApproved {
			continue
		}
		if update.Grade == "" {
			row.Grade = nil
		} else {
			grade := update.Grade
			row.Grade = &grade
		}
		n++
	}
	return n, nil
}

func (f *enrollmentRepoFake) ListDetails(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	var out []models.EnrollmentDetail
	for _, row := range f.rows {
		user := f.users[row.StudentID]
		if filter.CourseID != "" && row.CourseID != filter.CourseID {
			continue
		}
		if filter.Status != "" && row.Status != filter.Status {
			continue
		}
		if filter.Department != "" && user.Department != filter.Department {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(user.Email+" "+user.FirstName+" "+user.LastName), strings.ToLower(filter.Search)) {
			continue
		}
		detail := models.EnrollmentDetail{
			Enrollment:        row,
			StudentEmail:      user.Email,
			StudentFirstName:  user.FirstName,
			StudentLastName:   user.LastName,
			StudentDepartment: user.Department,
			StudentYear:       user.EntryYear,
		}
		if course, ok := f.courses.courses[row.CourseID]; ok {
			detail.CourseCode = course.CourseCode
			detail.CourseName = course.CourseName
		}
		out = append(out, detail)
	}
	return out, nil
}

var studentYear = 2023

var studentIdentity = models.Identity{ID: "stu-1", Role: models.RoleStudent, FirstName: "Sam", LastName: "Student", EntryYear: &studentYear}

type enrollmentFixture struct {
	svc         *EnrollmentService
	courses     *courseRepoFake
	enrollments *enrollmentRepoFake
	mock        sqlmock.Sqlmock
}

func newEnrollmentFixture(t *testing.T, config EnrollmentConfig) enrollmentFixture {
	courses := newCourseRepoFake()
	enrollments := newEnrollmentRepoFake(courses)
	tx, mock := newTxProviderMock(t)
	directory := newDirectoryStub(adaIdentity, alanIdentity, faIdentity, studentIdentity)
	svc := NewEnrollmentService(enrollments, courses, directory, tx, NewMetricsService(), nil, nil, nil, config)
	return enrollmentFixture{svc: svc, courses: courses, enrollments: enrollments, mock: mock}
}

func openCourse(id, name string, years ...int64) models.Course {
	return models.Course{
		ID:                id,
		CourseCode:        strings.ToUpper(id),
		CourseName:        name,
		Status:            models.CourseStatusEnrolling,
		AllowedEntryYears: years,
		Instructors: []models.CourseInstructor{
			{InstructorID: "ins-2", Name: "Alan Turing"},
			{InstructorID: "ins-1", Name: "Ada Lovelace", IsCoordinator: true},
		},
	}
}

func TestEnrollmentServiceListForStudent(t *testing.T) {
	f := newEnrollmentFixture(t, EnrollmentConfig{})
	f.courses.put(openCourse("c1", "Biology", 2023))
	f.courses.put(openCourse("c2", "Chemistry", 2020))
	closed := openCourse("c3", "Drawing")
	closed.Status = models.CourseStatusCompleted
	f.courses.put(closed)
	f.courses.put(openCourse("c4", "Zoology"))
	f.enrollments.add(models.Enrollment{StudentID: "stu-1", CourseID: "c3", Status: models.EnrollmentStatusWithdrawn})
	f.enrollments.add(models.Enrollment{StudentID: "stu-1", CourseID: "c4", Status: models.EnrollmentStatusApproved})
	f.enrollments.add(models.Enrollment{StudentID: "stu-2", CourseID: "c1", Status: models.EnrollmentStatusApproved})

	rows, err := f.svc.ListForStudent(context.Background(), studentCaller, projection.Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "c4", rows[0].Course.ID)
	assert.Equal(t, models.EnrollmentStatusApproved, rows[0].UnifiedStatus)
	assert.Equal(t, "c1", rows[1].Course.ID)
	assert.Equal(t, models.EnrollmentStatusNotEnrolled, rows[1].UnifiedStatus)
	assert.Equal(t, "c3", rows[2].Course.ID)
	assert.False(t, rows[2].Selectable)

	filtered, err := f.svc.ListForStudent(context.Background(), studentCaller, projection.Filter{Search: "bio"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "c1", filtered[0].Course.ID)

	_, err = f.svc.ListForStudent(context.Background(), adaCaller, projection.Filter{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestEnrollmentServiceCreditBatchIsAllOrNothing(t *testing.T) {
	f := newEnrollmentFixture(t, EnrollmentConfig{})
	f.courses.put(openCourse("c1", "Biology"))
	f.courses.put(openCourse("c2", "Chemistry"))
	f.enrollments.add(models.Enrollment{StudentID: "stu-1", CourseID: "c2", Status: models.EnrollmentStatusApproved})
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.StudentAction(context.Background(), studentCaller, dto.StudentActionRequest{
		CourseIDs: []string{"c1", "c2"},
		Action:    models.StudentActionCredit,
	})
	require.Error(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidActionForSelection.Code, appErr.Code)
	assert.Equal(t, dto.InvalidSelection{Action: "credit", IDs: []string{"c2"}}, appErr.Details)
	assert.Empty(t, f.enrollments.forCourse("c1"))
	assert.Len(t, f.enrollments.forCourse("c2"), 1)
}

func TestEnrollmentServiceCreditAssignsCoordinator(t *testing.T) {
	f := newEnrollmentFixture(t, EnrollmentConfig{})
	f.courses.put(openCourse("c1", "Biology", 2023))
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	res, err := f.svc.StudentAction(context.Background(), studentCaller, dto.StudentActionRequest{
		CourseIDs: []string{"c1", "c1"},
		Action:    models.StudentActionCredit,
	})
	require.NoError(t, err)
	require.Len(t, res.Enrollments, 1)
	assert.Equal(t, models.EnrollmentStatusPendingInstructor, res.Enrollments[0].Status)
	assert.Equal(t, "ins-1", res.Enrollments[0].InstructorID)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.svc.StudentAction(context.Background(), studentCaller, dto.StudentActionRequest{
		CourseIDs: []string{"c1"},
		Action:    models.StudentActionCredit,
	})
	assert.ErrorIs(t, err, appErrors.ErrInvalidActionForSelection)
	assert.Len(t, f.enrollments.forCourse("c1"), 1)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestEnrollmentServiceCreditLosingConcurrentInsertIsConflict(t *testing.T) {
	f := newEnrollmentFixture(t, EnrollmentConfig{})
	f.courses.put(openCourse("c1", "Biology"))
	f.enrollments.beforeCreate = func(e models.Enrollment) {
		f.enrollments.beforeCreate = nil
		f.enrollments.add(models.Enrollment{StudentID: e.StudentID, CourseID: e.CourseID, InstructorID: e.InstructorID})
	}
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.StudentAction(context.Background(), studentCaller, dto.StudentActionRequest{
		CourseIDs: []string{"c1"},
		Action:    models.StudentActionCredit,
	})
	require.Error(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Equal(t, dto.InvalidSelection{Action: "credit", IDs: []string{"c1"}}, appErr.Details)
	assert.Len(t, f.enrollments.forCourse("c1"), 1)
}

func TestEnrollmentServiceCreditRequiresOpenCourseAndEntryYear(t *testing.T) {
	f := newEnrollmentFixture(t, EnrollmentConfig{})
	proposed := openCourse("c1", "Biology")
	proposed.Status = models.CourseStatusProposed
	f.courses.put(proposed)
	f.courses.put(openCourse("c2", "Chemistry", 2019))

	for _, id := range []string{"c1", "c2"} {
		f.mock.ExpectBegin()
		f.mock.ExpectRollback()
		_, err := f.svc.StudentAction(context.Background(), studentCaller, dto.StudentActionRequest{
			CourseIDs: []string{id},
			Action:    models.StudentActionCredit,
		})
		assert.ErrorIs(t, err, appErrors.ErrInvalidActionForSelection, id)
	}

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err := f.svc.StudentAction(context.Background(), studentCaller, dto.StudentActionRequest{
		CourseIDs: []string{"ghost"},
		Action:    models.StudentActionCredit,
	})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestEnrollmentServiceDropAndWithdraw(t *testing.T) {
	f := newEnrollmentFixture(t, EnrollmentConfig{})
	f.courses.put(openCourse("c1", "Biology"))
	f.courses.put(openCourse("c2", "Chemistry"))
	first := f.enrollments.add(models.Enrollment{StudentID: "stu-1", CourseID: "c1", Status: models.EnrollmentStatusApproved})
	second := f.enrollments.add(models.Enrollment{StudentID: "stu-1", CourseID: "c2", Status: models.EnrollmentStatusPendingFA})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	res, err := f.svc.StudentAction(context.Background(), studentCaller, dto.StudentActionRequest{
		CourseIDs: []string{"c2", "c1"},
		Action:    models.StudentActionDrop,
	})
	require.NoError(t, err)
	require.Len(t, res.Enrollments, 2)
	assert.Equal(t, models.EnrollmentStatusDropped, f.enrollments.get(first).Status)
	assert.Equal(t, models.EnrollmentStatusDropped, f.enrollments.get(second).Status)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.svc.StudentAction(context.Background(), studentCaller, dto.StudentActionRequest{
		CourseIDs: []string{"c1"},
		Action:    models.StudentActionWithdraw,
	})
	assert.ErrorIs(t, err, appErrors.ErrInvalidActionForSelection)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestEnrollmentServiceReenrollPolicy(t *testing.T) {
	for _, allow := range []bool{false, true} {
		f := newEnrollmentFixture(t, EnrollmentConfig{AllowReenroll: allow})
		f.courses.put(openCourse("c1", "Biology"))
		old := f.enrollments.add(models.Enrollment{StudentID: "stu-1", CourseID: "c1", Status: models.EnrollmentStatusWithdrawn})
		f.mock.ExpectBegin()
		if allow {
			f.mock.ExpectCommit()
		} else {
			f.mock.ExpectRollback()
		}

		res, err := f.svc.StudentAction(context.Background(), studentCaller, dto.StudentActionRequest{
			CourseIDs: []string{"c1"},
			Action:    models.StudentActionCredit,
		})
		if !allow {
			assert.ErrorIs(t, err, appErrors.ErrInvalidActionForSelection)
			assert.Len(t, f.enrollments.forCourse("c1"), 1)
			continue
		}
		require.NoError(t, err)
		assert.NotEqual(t, old, res.Enrollments[0].ID)
		assert.Equal(t, models.EnrollmentStatusWithdrawn, f.enrollments.get(old).Status)
		assert.Len(t, f.enrollments.forCourse("c1"), 2)
		require.NoError(t, f.mock.ExpectationsWereMet())
	}
}

func TestEnrollmentServiceInstructorDecisionSkipsOtherStatuses(t *testing.T) {
	f := newEnrollmentFixture(t, EnrollmentConfig{})
	f.courses.put(openCourse("c1", "Biology"))
	pending := f.enrollments.add(models.Enrollment{StudentID: "stu-1", CourseID: "c1"})
	waitingFA := f.enrollments.add(models.Enrollment{StudentID: "stu-2", CourseID: "c1", Status: models.EnrollmentStatusPendingFA})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	res, err := f.svc.InstructorDecision(context.Background(), alanCaller, dto.EnrollmentDecisionRequest{
		EnrollmentIDs: []string{pending, waitingFA},
		Action:        models.DecisionApprove,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Modified)
	assert.Equal(t, []string{waitingFA}, res.Skipped)
	assert.Equal(t, models.EnrollmentStatusPendingFA, f.enrollments.get(pending).Status)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestEnrollmentServiceInstructorDecisionGuards(t *testing.T) {
	f := newEnrollmentFixture(t, EnrollmentConfig{})
	f.courses.put(openCourse("c1", "Biology"))
	other := openCourse("c2", "Chemistry")
	other.Instructors = []models.CourseInstructor{{InstructorID: "ins-9", IsCoordinator: true}}
	f.courses.put(other)
	mine := f.enrollments.add(models.Enrollment{StudentID: "stu-1", CourseID: "c1"})
	theirs := f.enrollments.add(models.Enrollment{StudentID: "stu-1", CourseID: "c2"})

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err := f.svc.InstructorDecision(context.Background(), adaCaller, dto.EnrollmentDecisionRequest{
		EnrollmentIDs: []string{mine, theirs},
		Action:        models.DecisionReject,
	})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	assert.Equal(t, models.EnrollmentStatusPendingInstructor, f.enrollments.get(mine).Status)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.svc.InstructorDecision(context.Background(), adaCaller, dto.EnrollmentDecisionRequest{
		EnrollmentIDs: []string{mine, "ghost"},
		Action:        models.DecisionReject,
	})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = f.svc.InstructorDecision(context.Background(), adaCaller, dto.EnrollmentDecisionRequest{
		EnrollmentIDs: []string{mine},
		Action:        "maybe",
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestEnrollmentServiceFADecisionIsIdempotentAndHardened(t *testing.T) {
	f := newEnrollmentFixture(t, EnrollmentConfig{})
	f.courses.put(openCourse("c1", "Biology"))
	waiting := f.enrollments.add(models.Enrollment{StudentID: "stu-1", CourseID: "c1", Status: models.EnrollmentStatusPendingFA})
	early := f.enrollments.add(models.Enrollment{StudentID: "stu-2", CourseID: "c1"})
	req := dto.EnrollmentDecisionRequest{EnrollmentIDs: []string{waiting}, Action: models.DecisionApprove}

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	res, err := f.svc.FADecision(context.Background(), faCaller, req)
	require.NoError(t, err)
	assert.Equal(t, dto.FADecisionResult{Modified: 1}, *res)
	assert.Equal(t, models.EnrollmentStatusApproved, f.enrollments.get(waiting).Status)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	res, err = f.svc.FADecision(context.Background(), faCaller, req)
	require.NoError(t, err)
	assert.Equal(t, dto.FADecisionResult{Unchanged: 1}, *res)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.svc.FADecision(context.Background(), faCaller, dto.EnrollmentDecisionRequest{
		EnrollmentIDs: []string{waiting, early},
		Action:        models.DecisionReject,
	})
	require.Error(t, err)
	assert.Equal(t, dto.InvalidSelection{Action: "reject", IDs: []string{waiting, early}}, appErrors.FromError(err).Details)
	assert.Equal(t, models.EnrollmentStatusApproved, f.enrollments.get(waiting).Status)
	assert.Equal(t, models.EnrollmentStatusPendingInstructor, f.enrollments.get(early).Status)

	_, err = f.svc.FADecision(context.Background(), adaCaller, req)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestEnrollmentServiceReviewLists(t *testing.T) {
	f := newEnrollmentFixture(t, EnrollmentConfig{})
	f.courses.put(openCourse("c1", "Biology"))
	f.enrollments.users["stu-1"] = models.User{ID: "stu-1", Email: "sam@uni.edu", FirstName: "Sam", LastName: "Student", Department: "BIO"}
	f.enrollments.users["stu-2"] = models.User{ID: "stu-2", Email: "kim@uni.edu", FirstName: "Kim", LastName: "Lee", Department: "CHEM"}
	f.enrollments.add(models.Enrollment{StudentID: "stu-1", CourseID: "c1", Status: models.EnrollmentStatusPendingFA})
	f.enrollments.add(models.Enrollment{StudentID: "stu-2", CourseID: "c1"})

	queue, err := f.svc.ListForFA(context.Background(), faCaller, models.EnrollmentFilter{})
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, "Sam Student", queue[0].StudentFullName())
	assert.Equal(t, "BIO", queue[0].StudentDepartment)

	roster, err := f.svc.ListForInstructor(context.Background(), adaCaller, "c1", models.EnrollmentFilter{Search: "kim"})
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, "stu-2", roster[0].StudentID)

	_, err = f.svc.ListForInstructor(context.Background(), faCaller, "c1", models.EnrollmentFilter{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	_, err = f.svc.ListForInstructor(context.Background(), adaCaller, "ghost", models.EnrollmentFilter{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = f.svc.ListForFA(context.Background(), faCaller, models.EnrollmentFilter{Status: "bogus"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestEnrollmentServiceRejectsBlankSelections(t *testing.T) {
	f := newEnrollmentFixture(t, EnrollmentConfig{})
	f.courses.put(openCourse("c1", "Biology"))
	blank := []string{"  ", ""}

	res, err := f.svc.StudentAction(context.Background(), studentCaller, dto.StudentActionRequest{CourseIDs: blank, Action: models.StudentActionDrop})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.InstructorDecision(context.Background(), adaCaller, dto.EnrollmentDecisionRequest{EnrollmentIDs: blank, Action: models.DecisionApprove})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.FADecision(context.Background(), faCaller, dto.EnrollmentDecisionRequest{EnrollmentIDs: blank, Action: models.DecisionApprove})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	require.NoError(t, f.mock.ExpectationsWereMet())
}
