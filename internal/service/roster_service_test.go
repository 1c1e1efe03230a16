package service

import (
	"bytes"
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-workflow-api/internal/models"
	appErrors "github.com/noah-isme/course-workflow-api/pkg/errors"
	"github.com/noah-isme/course-workflow-api/pkg/export"
)

type rosterFixture struct {
	svc         *RosterService
	enrollments *enrollmentRepoFake
	courses     *courseRepoFake
	mock        sqlmock.Sqlmock
	ids         map[string]string
}

func newRosterFixture(t *testing.T, config RosterConfig) rosterFixture {
	courses := newCourseRepoFake()
	enrollments := newEnrollmentRepoFake(courses)
	courses.put(openCourse("c1", "Biology"))
	other := openCourse("c2", "Chemistry")
	other.Instructors = []models.CourseInstructor{{InstructorID: "ins-9", IsCoordinator: true}}
	courses.put(other)

	enrollments.users["stu-1"] = models.User{ID: "stu-1", Email: "sam@uni.edu", FirstName: "Sam", LastName: "Student"}
	enrollments.users["stu-2"] = models.User{ID: "stu-2", Email: "kim@uni.edu", FirstName: "Kim", LastName: "Lee"}
	enrollments.users["stu-3"] = models.User{ID: "stu-3", Email: "lou@uni.edu", FirstName: "Lou", LastName: "Reed"}
	grade := "A-"
	ids := map[string]string{
		"graded":   enrollments.add(models.Enrollment{StudentID: "stu-1", CourseID: "c1", Status: models.EnrollmentStatusApproved, Grade: &grade}),
		"ungraded": enrollments.add(models.Enrollment{StudentID: "stu-2", CourseID: "c1", Status: models.EnrollmentStatusApproved}),
		"waiting":  enrollments.add(models.Enrollment{StudentID: "stu-3", CourseID: "c1", Status: models.EnrollmentStatusPendingFA}),
		"foreign":  enrollments.add(models.Enrollment{StudentID: "stu-3", CourseID: "c2", Status: models.EnrollmentStatusApproved}),
	}

	tx, mock := newTxProviderMock(t)
	svc := NewRosterService(enrollments, courses, tx, NewMetricsService(), nil, nil, config)
	return rosterFixture{svc: svc, enrollments: enrollments, courses: courses, mock: mock, ids: ids}
}

func (f rosterFixture) grade(key string) *string {
	return f.enrollments.get(f.ids[key]).Grade
}

func TestRosterServiceRowsListApprovedOnly(t *testing.T) {
	f := newRosterFixture(t, RosterConfig{})

	_, rows, err := f.svc.Rows(context.Background(), adaCaller, "c1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.RosterRow{EnrollmentID: f.ids["graded"], StudentName: "Sam Student", StudentEmail: "sam@uni.edu", Grade: "A-"}, rows[0])
	assert.Equal(t, "", rows[1].Grade)

	_, _, err = f.svc.Rows(context.Background(), faCaller, "c1")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	_, _, err = f.svc.Rows(context.Background(), adaCaller, "ghost")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestRosterServiceExportWithoutApprovedStudents(t *testing.T) {
	f := newRosterFixture(t, RosterConfig{})
	f.courses.put(openCourse("c3", "Physics"))

	_, err := f.svc.Export(context.Background(), adaCaller, "c3", export.FormatCSV)
	assert.ErrorIs(t, err, appErrors.ErrNoEligibleStudents)
}

func TestRosterServiceCSVRoundTripKeepsGrades(t *testing.T) {
	f := newRosterFixture(t, RosterConfig{})

	file, err := f.svc.Export(context.Background(), adaCaller, "c1", export.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "roster_C1.csv", file.Filename)
	assert.Equal(t, export.MIMECSV, file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Data, []byte("enrollment_id,student_name,student_email,grade")))

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	res, err := f.svc.Import(context.Background(), adaCaller, "c1", file.Data)
	require.NoError(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())

	assert.Equal(t, models.RosterImportResult{CourseID: "c1", Rows: 2, Updated: 2}, *res)
	require.NotNil(t, f.grade("graded"))
	assert.Equal(t, "A-", *f.grade("graded"))
	assert.Nil(t, f.grade("ungraded"))
}

func TestRosterServiceXLSXRoundTripAppliesEdits(t *testing.T) {
	f := newRosterFixture(t, RosterConfig{})

	file, err := f.svc.Export(context.Background(), adaCaller, "c1", export.FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, export.MIMEXLSX, file.ContentType)

	table, err := export.ReadTable(export.FormatXLSX, file.Data)
	require.NoError(t, err)
	require.Len(t, table, 3)
	table[2][3] = " B+ "
	edited, err := export.NewXLSXExporter("Roster").Render(export.Dataset{
		Headers: models.RosterColumns,
		Rows: []map[string]string{
			{"enrollment_id": table[1][0], "student_name": table[1][1], "student_email": table[1][2], "grade": table[1][3]},
			{"enrollment_id": table[2][0], "student_name": table[2][1], "student_email": table[2][2], "grade": table[2][3]},
		},
	})
	require.NoError(t, err)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	_, err = f.svc.Import(context.Background(), adaCaller, "c1", edited)
	require.NoError(t, err)
	require.NotNil(t, f.grade("ungraded"))
	assert.Equal(t, "B+", *f.grade("ungraded"))
}

func TestRosterServicePDFExport(t *testing.T) {
	f := newRosterFixture(t, RosterConfig{})

	file, err := f.svc.Export(context.Background(), adaCaller, "c1", export.FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, export.MIMEPDF, file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Data, []byte("%PDF")))

	_, err = f.svc.Import(context.Background(), adaCaller, "c1", file.Data)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestRosterServiceImportRejectsNonApprovedRowAndWritesNothing(t *testing.T) {
	f := newRosterFixture(t, RosterConfig{})
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.ImportRows(context.Background(), adaCaller, "c1", []models.RosterRow{
		{EnrollmentID: f.ids["ungraded"], Grade: "B"},
		{EnrollmentID: f.ids["waiting"], Grade: "C"},
	})
	require.Error(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrRowImport.Code, appErr.Code)
	assert.Equal(t, []models.RosterRowError{
		{Row: 3, EnrollmentID: f.ids["waiting"], Reason: models.RosterReasonEnrollmentNotApproved},
	}, appErr.Details)
	assert.Nil(t, f.grade("ungraded"))
	assert.Nil(t, f.grade("waiting"))
}

func TestRosterServiceImportReportsSpreadsheetLinesPastBlankLines(t *testing.T) {
	f := newRosterFixture(t, RosterConfig{})
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	payload := []byte("enrollment_id,student_name,student_email,grade\n" +
		f.ids["ungraded"] + ",Kim Lee,kim@uni.edu,B\n" +
		"\n" +
		f.ids["waiting"] + ",Lou Reed,lou@uni.edu,C\n")
	_, err := f.svc.Import(context.Background(), adaCaller, "c1", payload)
	require.Error(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())

	assert.Equal(t, []models.RosterRowError{
		{Row: 4, EnrollmentID: f.ids["waiting"], Reason: models.RosterReasonEnrollmentNotApproved},
	}, appErrors.FromError(err).Details)
}

func TestRosterServiceImportReportsEveryRowReason(t *testing.T) {
	f := newRosterFixture(t, RosterConfig{})
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.ImportRows(context.Background(), adaCaller, "c1", []models.RosterRow{
		{EnrollmentID: f.ids["graded"], Grade: "A"},
		{EnrollmentID: "", Grade: "B"},
		{EnrollmentID: f.ids["graded"], Grade: "C"},
		{EnrollmentID: "ghost", Grade: "D"},
		{EnrollmentID: f.ids["foreign"], Grade: "E"},
	})
	require.Error(t, err)

	assert.Equal(t, []models.RosterRowError{
		{Row: 3, Reason: models.RosterReasonMissingEnrollmentID},
		{Row: 4, EnrollmentID: f.ids["graded"], Reason: models.RosterReasonDuplicateRow},
		{Row: 5, EnrollmentID: "ghost", Reason: models.RosterReasonEnrollmentNotFound},
		{Row: 6, EnrollmentID: f.ids["foreign"], Reason: models.RosterReasonCourseMismatch},
	}, appErrors.FromError(err).Details)
	assert.Equal(t, "A-", *f.grade("graded"))
}

func TestRosterServiceImportByNonInstructor(t *testing.T) {
	f := newRosterFixture(t, RosterConfig{})
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.ImportRows(context.Background(), faCaller, "c1", []models.RosterRow{
		{EnrollmentID: f.ids["ungraded"], Grade: "B"},
	})
	require.Error(t, err)
	assert.Equal(t, []models.RosterRowError{
		{Row: 2, EnrollmentID: f.ids["ungraded"], Reason: models.RosterReasonNotCourseInstructor},
	}, appErrors.FromError(err).Details)
}

func TestRosterServiceImportValidatesFile(t *testing.T) {
	f := newRosterFixture(t, RosterConfig{MaxFileSize: 64})

	_, err := f.svc.Import(context.Background(), adaCaller, "c1", nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Import(context.Background(), adaCaller, "c1", bytes.Repeat([]byte("a,b,c,d\n"), 20))
	assert.ErrorIs(t, err, appErrors.ErrPayloadTooLarge)

	_, err = f.svc.Import(context.Background(), adaCaller, "c1", []byte("id,name,email,grade\n1,a,b,c\n"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Import(context.Background(), adaCaller, "c1", []byte("enrollment_id,student_name,student_email,grade\n,,,\n"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Import(context.Background(), adaCaller, "ghost", []byte("enrollment_id,student_name,student_email,grade\nx,,,A\n"))
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestParseRosterTableKeepsRowNumbers(t *testing.T) {
	lines, err := parseRosterTable([][]string{
		{"Enrollment_ID ", "student_name", "student_email", "grade"},
		{"e1", "Sam", "sam@uni.edu", " A "},
		{"", " ", "", ""},
		{"e2", "Kim", "kim@uni.edu", ""},
	})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, 2, lines[0].number)
	assert.Equal(t, "A", lines[0].row.Grade)
	assert.Equal(t, 4, lines[1].number)
}
