package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Stored enrollment statuses.
const (
	EnrollmentStatusPendingInstructor EnrollmentStatus = "pending_instructor"
	EnrollmentStatusPendingFA         EnrollmentStatus = "pending_fa"
	EnrollmentStatusApproved          EnrollmentStatus = "approved"
	EnrollmentStatusRejected          EnrollmentStatus = "rejected"
	EnrollmentStatusDropped           EnrollmentStatus = "dropped"
	EnrollmentStatusWithdrawn         EnrollmentStatus = "withdrawn"
)

// Derived statuses, never persisted.
const (
	EnrollmentStatusNotEnrolled EnrollmentStatus = "not_enrolled"
	EnrollmentStatusUnknown     EnrollmentStatus = "unknown"
)

// IsTerminal reports whether no actor may move the row further.
func (s EnrollmentStatus) IsTerminal() bool {
	switch s {
	case EnrollmentStatusRejected, EnrollmentStatusDropped, EnrollmentStatusWithdrawn:
		return true
	}
	return false
}

// Valid reports whether s is a stored status.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusPendingInstructor, EnrollmentStatusPendingFA, EnrollmentStatusApproved,
		EnrollmentStatusRejected, EnrollmentStatusDropped, EnrollmentStatusWithdrawn:
		return true
	}
	return false
}

// Enrollment captures a student's request to take a course.
type Enrollment struct {
	ID           string           `db:"id" json:"id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	CourseID     string           `db:"course_id" json:"course_id"`
	InstructorID string           `db:"instructor_id" json:"instructor_id"`
	Status       EnrollmentStatus `db:"status" json:"status"`
	Grade        *string          `db:"grade" json:"grade,omitempty"`
	RequestDate  time.Time        `db:"request_date" json:"request_date"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentEmail      string `db:"student_email" json:"student_email"`
	StudentFirstName  string `db:"student_first_name" json:"student_first_name"`
	StudentLastName   string `db:"student_last_name" json:"student_last_name"`
	StudentDepartment string `db:"student_department" json:"student_department"`
	StudentYear       *int   `db:"student_year" json:"student_year,omitempty"`
	CourseCode        string `db:"course_code" json:"course_code"`
	CourseName        string `db:"course_name" json:"course_name"`
}

// StudentFullName joins the student's first and last name.
func (d EnrollmentDetail) StudentFullName() string {
	return User{FirstName: d.StudentFirstName, LastName: d.StudentLastName}.FullName()
}

// EnrollmentFilter provides filters for instructor and FA listings.
type EnrollmentFilter struct {
	CourseID   string
	Status     EnrollmentStatus
	Department string
	Year       *int
	Search     string
}

// GradeUpdate sets the grade of one approved enrollment.
type GradeUpdate struct {
	EnrollmentID string
	Grade        string
}
