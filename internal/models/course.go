package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// CourseStatus represents the lifecycle of a course offering.
type CourseStatus string

const (
	CourseStatusProposed  CourseStatus = "proposed"
	CourseStatusEnrolling CourseStatus = "enrolling"
	CourseStatusCompleted CourseStatus = "completed"
	CourseStatusRejected  CourseStatus = "rejected"
)

// Course is an offering owned by one or more instructors.
type Course struct {
	ID                string             `db:"id" json:"id"`
	CourseCode        string             `db:"course_code" json:"course_code"`
	CourseName        string             `db:"course_name" json:"course_name"`
	OfferingDept      string             `db:"offering_dept" json:"offering_dept"`
	Credits           float64            `db:"credits" json:"credits"`
	Session           string             `db:"session" json:"session"`
	Slot              string             `db:"slot" json:"slot"`
	AllowedEntryYears pq.Int64Array      `db:"allowed_entry_years" json:"allowed_entry_years"`
	Status            CourseStatus       `db:"status" json:"status"`
	CreatedBy         string             `db:"created_by" json:"created_by"`
	CreatedAt         time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `db:"updated_at" json:"updated_at"`
	Instructors       []CourseInstructor `db:"-" json:"instructors"`
}

// CourseInstructor links an instructor to a course in display order.
type CourseInstructor struct {
	CourseID      string `db:"course_id" json:"-"`
	InstructorID  string `db:"instructor_id" json:"instructor_id"`
	Name          string `db:"name" json:"name"`
	IsCoordinator bool   `db:"is_coordinator" json:"is_coordinator"`
	Position      int    `db:"position" json:"-"`
}

// HasInstructor reports whether userID is listed on the course.
func (c Course) HasInstructor(userID string) bool {
	for _, inst := range c.Instructors {
		if inst.InstructorID == userID {
			return true
		}
	}
	return false
}

// Coordinator returns the flagged coordinator, falling back to the first instructor.
func (c Course) Coordinator() (CourseInstructor, bool) {
	for _, inst := range c.Instructors {
		if inst.IsCoordinator {
			return inst, true
		}
	}
	if len(c.Instructors) > 0 {
		return c.Instructors[0], true
	}
	return CourseInstructor{}, false
}

// InstructorDisplay joins instructor names in list order.
func (c Course) InstructorDisplay() string {
	names := make([]string, 0, len(c.Instructors))
	for _, inst := range c.Instructors {
		names = append(names, inst.Name)
	}
	return strings.Join(names, ", ")
}

// AcceptsEntryYear reports whether a student of the given entry year may enroll.
// An empty allow-list admits everyone.
func (c Course) AcceptsEntryYear(year *int) bool {
	if len(c.AllowedEntryYears) == 0 {
		return true
	}
	if year == nil {
		return false
	}
	for _, allowed := range c.AllowedEntryYears {
		if allowed == int64(*year) {
			return true
		}
	}
	return false
}

// OpenForEnrollment reports whether students may currently credit the course.
func (c Course) OpenForEnrollment() bool {
	return c.Status == CourseStatusEnrolling
}

// CourseFilter narrows course listings.
type CourseFilter struct {
	Status       CourseStatus
	InstructorID string
}

// SlotConflict describes the instructor already booked in a (session, slot).
type SlotConflict struct {
	Session        string `db:"session" json:"session"`
	Slot           string `db:"slot" json:"slot"`
	InstructorID   string `db:"instructor_id" json:"instructor_id"`
	InstructorName string `db:"instructor_name" json:"instructor_name"`
	CourseID       string `db:"course_id" json:"course_id"`
}
