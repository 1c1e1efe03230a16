package dto

import (
	"strings"

	"github.com/noah-isme/course-workflow-api/internal/models"
	"github.com/noah-isme/course-workflow-api/internal/projection"
)

// StudentCourseQuery carries the student course view facets.
type StudentCourseQuery struct {
	Search     string   `form:"search"`
	Department string   `form:"department"`
	Slot       string   `form:"slot"`
	Credits    *float64 `form:"credits"`
	Status     string   `form:"status"`
}

// Filter converts the query into a projection filter.
func (q StudentCourseQuery) Filter() projection.Filter {
	return projection.Filter{
		Search:     strings.TrimSpace(q.Search),
		Department: strings.TrimSpace(q.Department),
		Slot:       strings.TrimSpace(q.Slot),
		Credits:    q.Credits,
		Status:     models.EnrollmentStatus(strings.ToLower(strings.TrimSpace(q.Status))),
	}
}

// EnrollmentListQuery carries instructor and FA listing filters.
type EnrollmentListQuery struct {
	Status     string `form:"status"`
	Department string `form:"department"`
	Year       *int   `form:"year"`
	Search     string `form:"search"`
}

// Filter converts the query into a repository filter.
func (q EnrollmentListQuery) Filter() models.EnrollmentFilter {
	return models.EnrollmentFilter{
		Status:     models.EnrollmentStatus(strings.ToLower(strings.TrimSpace(q.Status))),
		Department: strings.TrimSpace(q.Department),
		Year:       q.Year,
		Search:     strings.TrimSpace(q.Search),
	}
}

// RosterQuery selects the export format.
type RosterQuery struct {
	Format string `form:"format"`
}
