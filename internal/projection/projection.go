// Package projection derives the student-facing view of courses: one unified
// status per course, a display order, facet filtering and bulk selection.
// Every function is pure; callers pass the current filter and selection in.
//
// The service layer uses Project, Apply and UnifiedStatus to build the student
// course listing. Selection and its Scope, Toggle and ToggleSelectAll helpers
// are the client view-model contract for turning that listing into a bulk
// action request; the server never holds a selection itself.
package projection

import (
	"sort"
	"strings"

	"github.com/noah-isme/course-workflow-api/internal/models"
)

var priorities = map[models.EnrollmentStatus]int{
	models.EnrollmentStatusApproved:          1,
	models.EnrollmentStatusPendingInstructor: 2,
	models.EnrollmentStatusPendingFA:         3,
	models.EnrollmentStatusNotEnrolled:       4,
	models.EnrollmentStatusRejected:          5,
	models.EnrollmentStatusDropped:           6,
	models.EnrollmentStatusWithdrawn:         7,
	models.EnrollmentStatusUnknown:           8,
}

// Row is a course as presented to one student.
type Row struct {
	Course        models.Course           `json:"course"`
	Enrollment    *models.Enrollment      `json:"enrollment,omitempty"`
	UnifiedStatus models.EnrollmentStatus `json:"unified_status"`
	Priority      int                     `json:"priority"`
	Selectable    bool                    `json:"selectable"`
}

// UnifiedStatus collapses a course and the student's enrollment, if any, into one label.
func UnifiedStatus(course models.Course, enrollment *models.Enrollment) models.EnrollmentStatus {
	if enrollment != nil && enrollment.Status != "" && enrollment.Status != "none" {
		return enrollment.Status
	}
	if enrollment == nil && course.OpenForEnrollment() {
		return models.EnrollmentStatusNotEnrolled
	}
	return models.EnrollmentStatusUnknown
}

// Priority returns the display rank of a status; lower ranks are listed first.
func Priority(status models.EnrollmentStatus) int {
	if p, ok := priorities[status]; ok {
		return p
	}
	return priorities[models.EnrollmentStatusUnknown]
}

// Selectable reports whether a row with this status may join a bulk action.
func Selectable(status models.EnrollmentStatus) bool {
	switch status {
	case models.EnrollmentStatusWithdrawn, models.EnrollmentStatusRejected, models.EnrollmentStatusDropped:
		return false
	}
	return true
}

// Project builds the row for a course.
func Project(course models.Course, enrollment *models.Enrollment) Row {
	status := UnifiedStatus(course, enrollment)
	return Row{
		Course:        course,
		Enrollment:    enrollment,
		UnifiedStatus: status,
		Priority:      Priority(status),
		Selectable:    Selectable(status),
	}
}

// Sort orders rows by priority, then case-insensitive course name.
func Sort(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Priority != rows[j].Priority {
			return rows[i].Priority < rows[j].Priority
		}
		ni, nj := strings.ToLower(rows[i].Course.CourseName), strings.ToLower(rows[j].Course.CourseName)
		if ni != nj {
			return ni < nj
		}
		return rows[i].Course.ID < rows[j].Course.ID
	})
}

// Filter holds the free-text search and exact-match facets. Zero values impose no constraint.
type Filter struct {
	Search     string
	Department string
	Slot       string
	Credits    *float64
	Status     models.EnrollmentStatus
}

// Match reports whether the row passes every active constraint.
func (f Filter) Match(row Row) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		haystack := []string{row.Course.CourseName, row.Course.CourseCode, row.Course.InstructorDisplay()}
		found := false
		for _, field := range haystack {
			if strings.Contains(strings.ToLower(field), q) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Department != "" && row.Course.OfferingDept != f.Department {
		return false
	}
	if f.Slot != "" && row.Course.Slot != f.Slot {
		return false
	}
	if f.Credits != nil && row.Course.Credits != *f.Credits {
		return false
	}
	if f.Status != "" && row.UnifiedStatus != f.Status {
		return false
	}
	return true
}

// Apply returns the visible rows in display order without modifying the input.
func Apply(rows []Row, filter Filter) []Row {
	visible := make([]Row, 0, len(rows))
	for _, row := range rows {
		if filter.Match(row) {
			visible = append(visible, row)
		}
	}
	Sort(visible)
	return visible
}
