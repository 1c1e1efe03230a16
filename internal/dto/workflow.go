package dto

import (
	"github.com/noah-isme/course-workflow-api/internal/models"
)

// InstructorInput names an instructor either by directory id or by full name.
type InstructorInput struct {
	InstructorID  string `json:"instructorId"`
	Name          string `json:"name" validate:"required_without=InstructorID"`
	IsCoordinator bool   `json:"isCoordinator"`
}

// ProposeCourseRequest creates a course proposal.
type ProposeCourseRequest struct {
	CourseCode        string            `json:"courseCode" validate:"required,max=32"`
	CourseName        string            `json:"courseName" validate:"required,max=200"`
	OfferingDept      string            `json:"offeringDept" validate:"required,max=64"`
	Credits           float64           `json:"credits" validate:"gte=0,lte=40"`
	Session           string            `json:"session" validate:"required,max=32"`
	Slot              string            `json:"slot" validate:"required,max=32"`
	AllowedEntryYears []int             `json:"allowedEntryYears" validate:"omitempty,dive,min=1900,max=3000"`
	Instructors       []InstructorInput `json:"instructors" validate:"omitempty,dive"`
}

// CourseDecisionRequest approves or rejects course proposals in bulk.
type CourseDecisionRequest struct {
	CourseIDs []string        `json:"courseIds" validate:"required,min=1,dive,required"`
	Action    models.Decision `json:"action" validate:"required,oneof=approve reject"`
}

// CourseDecisionResult reports the outcome of a proposal decision.
type CourseDecisionResult struct {
	Status  models.CourseStatus `json:"status"`
	Updated int                 `json:"updated"`
}

// DeleteCourseResult reports what a course deletion removed.
type DeleteCourseResult struct {
	CourseID           string `json:"courseId"`
	EnrollmentsRemoved int64  `json:"enrollmentsRemoved"`
}

// StudentActionRequest credits, drops or withdraws from a selection of courses.
type StudentActionRequest struct {
	CourseIDs []string             `json:"courseIds" validate:"required,min=1,dive,required"`
	Action    models.StudentAction `json:"action" validate:"required,oneof=credit drop withdraw"`
}

// StudentActionResult lists the enrollments created or updated by a student action.
type StudentActionResult struct {
	Action      models.StudentAction `json:"action"`
	Enrollments []models.Enrollment  `json:"enrollments"`
}

// EnrollmentDecisionRequest applies an instructor or FA decision to enrollments.
type EnrollmentDecisionRequest struct {
	EnrollmentIDs []string        `json:"enrollmentIds" validate:"required,min=1,dive,required"`
	Action        models.Decision `json:"action" validate:"required,oneof=approve reject"`
}

// InstructorDecisionResult counts rows moved; rows not awaiting the instructor are skipped.
type InstructorDecisionResult struct {
	Modified int      `json:"modified"`
	Skipped  []string `json:"skipped"`
}

// FADecisionResult counts rows moved and rows that were already in the target status.
type FADecisionResult struct {
	Modified  int `json:"modified"`
	Unchanged int `json:"unchanged"`
}

// InvalidSelection is the detail payload of a rejected bulk selection.
type InvalidSelection struct {
	Action string   `json:"action"`
	IDs    []string `json:"ids"`
}

// MissingIDs is the detail payload when a selection references unknown ids.
type MissingIDs struct {
	IDs []string `json:"ids"`
}
