package models

// RosterColumns is the fixed column order of roster spreadsheets.
var RosterColumns = []string{"enrollment_id", "student_name", "student_email", "grade"}

// RosterRow is one approved enrollment in an exported or imported roster.
type RosterRow struct {
	EnrollmentID string `json:"enrollment_id"`
	StudentName  string `json:"student_name"`
	StudentEmail string `json:"student_email"`
	Grade        string `json:"grade"`
}

// RosterRowReason explains why an imported row was rejected.
type RosterRowReason string

const (
	RosterReasonEnrollmentNotFound    RosterRowReason = "enrollment_not_found"
	RosterReasonEnrollmentNotApproved RosterRowReason = "enrollment_not_approved"
	RosterReasonCourseMismatch        RosterRowReason = "course_mismatch"
	RosterReasonNotCourseInstructor   RosterRowReason = "not_course_instructor"
	RosterReasonDuplicateRow          RosterRowReason = "duplicate_row"
	RosterReasonMissingEnrollmentID   RosterRowReason = "missing_enrollment_id"
)

// RosterRowError reports a rejected row. Row is 1-based and counts the header.
type RosterRowError struct {
	Row          int             `json:"row"`
	EnrollmentID string          `json:"enrollment_id,omitempty"`
	Reason       RosterRowReason `json:"reason"`
}

// RosterImportResult summarises a committed import.
type RosterImportResult struct {
	CourseID string `json:"course_id"`
	Rows     int    `json:"rows"`
	Updated  int    `json:"updated"`
}
