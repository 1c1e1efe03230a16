package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/course-workflow-api/internal/models"
)

const (
	uniqueViolation     = "23505"
	liveEnrollmentIndex = "uq_enrollments_live"
)

// ErrLiveEnrollmentExists is returned by Create when the student already holds a
// pending or approved enrollment in the course.
var ErrLiveEnrollmentExists = errors.New("live enrollment already exists")

const enrollmentColumns = `e.id, e.student_id, e.course_id, e.instructor_id, e.status, e.grade, e.request_date, e.updated_at`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListLatestByStudent returns the most recent enrollment per course for a student.
func (r *EnrollmentRepository) ListLatestByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	query := `SELECT DISTINCT ON (e.course_id) ` + enrollmentColumns + `
        FROM enrollments e WHERE e.student_id = $1
        ORDER BY e.course_id, e.request_date DESC, e.id DESC`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// LockByStudentAndCourses locks every enrollment the student holds in the listed
// courses, oldest first, so the caller can evaluate the latest row per course.
func (r *EnrollmentRepository) LockByStudentAndCourses(ctx context.Context, exec sqlx.ExtContext, studentID string, courseIDs []string) ([]models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments e
        WHERE e.student_id = $1 AND e.course_id = ANY($2)
        ORDER BY e.request_date, e.id FOR UPDATE`
	var enrollments []models.Enrollment
	if err := sqlx.SelectContext(ctx, r.exec(exec), &enrollments, query, studentID, pq.Array(courseIDs)); err != nil {
		return nil, fmt.Errorf("lock student enrollments: %w", err)
	}
	return enrollments, nil
}

// LockByIDs locks the listed enrollments and returns the rows that exist.
func (r *EnrollmentRepository) LockByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments e WHERE e.id = ANY($1) ORDER BY e.id FOR UPDATE`
	var enrollments []models.Enrollment
	if err := sqlx.SelectContext(ctx, r.exec(exec), &enrollments, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("lock enrollments: %w", err)
	}
	return enrollments, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.RequestDate.IsZero() {
		enrollment.RequestDate = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusPendingInstructor
	}
	enrollment.UpdatedAt = enrollment.RequestDate
	const query = `INSERT INTO enrollments (id, student_id, course_id, instructor_id, status, grade, request_date, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.exec(exec).ExecContext(ctx, query,
		enrollment.ID, enrollment.StudentID, enrollment.CourseID, enrollment.InstructorID,
		enrollment.Status, enrollment.Grade, enrollment.RequestDate, enrollment.UpdatedAt,
	); err != nil {
		if isLiveEnrollmentViolation(err) {
			return fmt.Errorf("create enrollment for course %s: %w", enrollment.CourseID, ErrLiveEnrollmentExists)
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

func isLiveEnrollmentViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return false
	}
	return pqErr.Constraint == "" || pqErr.Constraint == liveEnrollmentIndex
}

// UpdateStatus sets status on every listed enrollment.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, ids []string, status models.EnrollmentStatus) (int64, error) {
	const query = `UPDATE enrollments SET status = $1, updated_at = $2 WHERE id = ANY($3)`
	res, err := r.exec(exec).ExecContext(ctx, query, status, time.Now().UTC(), pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("update enrollment status: %w", err)
	}
	return rowsAffected(res, "enrollment status")
}

// UpdateStatusFrom moves only the listed enrollments currently in from.
func (r *EnrollmentRepository) UpdateStatusFrom(ctx context.Context, exec sqlx.ExtContext, ids []string, from, to models.EnrollmentStatus) (int64, error) {
	const query = `UPDATE enrollments SET status = $1, updated_at = $2 WHERE id = ANY($3) AND status = $4`
	res, err := r.exec(exec).ExecContext(ctx, query, to, time.Now().UTC(), pq.Array(ids), from)
	if err != nil {
		return 0, fmt.Errorf("transition enrollments: %w", err)
	}
	return rowsAffected(res, "enrollment transition")
}

// SetGrades writes grades to approved enrollments and returns how many rows changed.
// A blank grade clears the column.
// Rows that are no longer approved are left untouched.
func (r *EnrollmentRepository) SetGrades(ctx context.Context, exec sqlx.ExtContext, updates []models.GradeUpdate) (int64, error) {
	const query = `UPDATE enrollments SET grade = NULLIF($2, ''), updated_at = $3 WHERE id = $1 AND status = $4`
	target := r.exec(exec)
	now := time.Now().UTC()
	var total int64
	for _, update := range updates {
		res, err := target.ExecContext(ctx, query, update.EnrollmentID, update.Grade, now, models.EnrollmentStatusApproved)
		if err != nil {
			return total, fmt.Errorf("set grade for %s: %w", update.EnrollmentID, err)
		}
		affected, err := rowsAffected(res, "grade")
		if err != nil {
			return total, err
		}
		total += affected
	}
	return total, nil
}

// ListDetails returns enrollments joined with student and course fields.
func (r *EnrollmentRepository) ListDetails(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	base := `FROM enrollments e
JOIN users u ON u.id = e.student_id
JOIN courses c ON c.id = e.course_id`
	var conditions []string
	var args []interface{}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("u.department = $%d", len(args)+1))
		args = append(args, filter.Department)
	}
	if filter.Year != nil {
		conditions = append(conditions, fmt.Sprintf("u.entry_year = $%d", len(args)+1))
		args = append(args, *filter.Year)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		placeholder := fmt.Sprintf("$%d", len(args)+1)
		conditions = append(conditions, fmt.Sprintf("(u.email ILIKE %[1]s OR u.first_name ILIKE %[1]s OR u.last_name ILIKE %[1]s)", placeholder))
		args = append(args, "%"+search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	query := `SELECT ` + enrollmentColumns + `,
        u.email AS student_email, u.first_name AS student_first_name, u.last_name AS student_last_name,
        u.department AS student_department, u.entry_year AS student_year,
        c.course_code, c.course_name
        ` + base + clause + ` ORDER BY LOWER(u.last_name), LOWER(u.first_name), e.id`

	var details []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &details, query, args...); err != nil {
		return nil, fmt.Errorf("list enrollment details: %w", err)
	}
	return details, nil
}

func rowsAffected(res interface{ RowsAffected() (int64, error) }, label string) (int64, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s rows affected: %w", label, err)
	}
	return affected, nil
}
