package models

import (
	"strings"
	"time"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin            UserRole = "ADMIN"
	RoleFacultyAdvisor   UserRole = "FACULTY_ADVISOR"
	RoleCourseInstructor UserRole = "COURSE_INSTRUCTOR"
	RoleStudent          UserRole = "STUDENT"
)

// User represents a person stored in the identity directory.
type User struct {
	ID         string    `db:"id" json:"id"`
	Email      string    `db:"email" json:"email"`
	FirstName  string    `db:"first_name" json:"first_name"`
	LastName   string    `db:"last_name" json:"last_name"`
	Role       UserRole  `db:"role" json:"role"`
	Department string    `db:"department" json:"department"`
	EntryYear  *int      `db:"entry_year" json:"entry_year,omitempty"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Identity is the resolved view of a user consumed by the workflow core.
type Identity struct {
	ID         string   `json:"id"`
	Role       UserRole `json:"role"`
	FirstName  string   `json:"first_name"`
	LastName   string   `json:"last_name"`
	Email      string   `json:"email"`
	Department string   `json:"department,omitempty"`
	EntryYear  *int     `json:"entry_year,omitempty"`
}

// FullName joins first and last name.
func (i Identity) FullName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// IdentityFromUser projects a user record onto an Identity.
func IdentityFromUser(u User) Identity {
	return Identity{
		ID:         u.ID,
		Role:       u.Role,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Email:      u.Email,
		Department: u.Department,
		EntryYear:  u.EntryYear,
	}
}

