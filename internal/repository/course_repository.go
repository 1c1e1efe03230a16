package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/course-workflow-api/internal/models"
)

const courseColumns = `c.id, c.course_code, c.course_name, c.offering_dept, c.credits, c.session, c.slot,
        c.allowed_entry_years, c.status, c.created_by, c.created_at, c.updated_at`

// CourseRepository persists courses and their instructor lists.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// LockSlot takes a transaction-scoped advisory lock on (session, slot) so that
// concurrent proposals for the same slot serialize their conflict check.
func (r *CourseRepository) LockSlot(ctx context.Context, exec sqlx.ExtContext, session, slot string) error {
	const query = `SELECT pg_advisory_xact_lock(hashtext($1))`
	if _, err := r.exec(exec).ExecContext(ctx, query, session+"|"+slot); err != nil {
		return fmt.Errorf("lock course slot: %w", err)
	}
	return nil
}

// FindSlotConflicts lists instructors already teaching a non-rejected course in (session, slot).
func (r *CourseRepository) FindSlotConflicts(ctx context.Context, exec sqlx.ExtContext, session, slot string, instructorIDs []string) ([]models.SlotConflict, error) {
	if len(instructorIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT c.id AS course_id, c.session, c.slot, ci.instructor_id, ci.name AS instructor_name
        FROM course_instructors ci
        JOIN courses c ON c.id = ci.course_id
        WHERE c.session = $1 AND c.slot = $2 AND c.status <> $3 AND ci.instructor_id = ANY($4)
        ORDER BY c.created_at, ci.position`
	var conflicts []models.SlotConflict
	if err := sqlx.SelectContext(ctx, r.exec(exec), &conflicts, query, session, slot, models.CourseStatusRejected, pq.Array(instructorIDs)); err != nil {
		return nil, fmt.Errorf("find slot conflicts: %w", err)
	}
	return conflicts, nil
}

// Create inserts the course followed by its instructors in list order.
func (r *CourseRepository) Create(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error {
	if course == nil {
		return fmt.Errorf("course payload is nil")
	}
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = course.CreatedAt
	if course.AllowedEntryYears == nil {
		course.AllowedEntryYears = pq.Int64Array{}
	}

	target := r.exec(exec)
	const insertCourse = `INSERT INTO courses (id, course_code, course_name, offering_dept, credits, session, slot, allowed_entry_years, status, created_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if _, err := target.ExecContext(ctx, insertCourse,
		course.ID, course.CourseCode, course.CourseName, course.OfferingDept, course.Credits,
		course.Session, course.Slot, course.AllowedEntryYears, course.Status, course.CreatedBy,
		course.CreatedAt, course.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create course: %w", err)
	}

	const insertInstructor = `INSERT INTO course_instructors (course_id, instructor_id, name, is_coordinator, position) VALUES ($1, $2, $3, $4, $5)`
	for i := range course.Instructors {
		inst := &course.Instructors[i]
		inst.CourseID = course.ID
		inst.Position = i
		if _, err := target.ExecContext(ctx, insertInstructor, inst.CourseID, inst.InstructorID, inst.Name, inst.IsCoordinator, inst.Position); err != nil {
			return fmt.Errorf("create course instructor: %w", err)
		}
	}
	return nil
}

// FindByID returns a course with its instructors. sql.ErrNoRows is returned unwrapped.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses c WHERE c.id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	courses := []models.Course{course}
	if err := r.attachInstructors(ctx, r.db, courses); err != nil {
		return nil, err
	}
	return &courses[0], nil
}

// FindForUpdate locks the course row exclusively for the rest of the transaction.
func (r *CourseRepository) FindForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error) {
	return r.findLocked(ctx, exec, id, "FOR UPDATE")
}

// FindForShare locks the course row against concurrent deletion.
func (r *CourseRepository) FindForShare(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error) {
	return r.findLocked(ctx, exec, id, "FOR SHARE")
}

func (r *CourseRepository) findLocked(ctx context.Context, exec sqlx.ExtContext, id, lock string) (*models.Course, error) {
	target := r.exec(exec)
	query := `SELECT ` + courseColumns + ` FROM courses c WHERE c.id = $1 ` + lock
	var course models.Course
	if err := sqlx.GetContext(ctx, target, &course, query, id); err != nil {
		return nil, err
	}
	courses := []models.Course{course}
	if err := r.attachInstructors(ctx, target, courses); err != nil {
		return nil, err
	}
	return &courses[0], nil
}

// List returns courses matching filter ordered by name.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	var conditions []string
	var args []interface{}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("c.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.InstructorID != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM course_instructors ci WHERE ci.course_id = c.id AND ci.instructor_id = $%d)", len(args)+1))
		args = append(args, filter.InstructorID)
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	query := `SELECT ` + courseColumns + ` FROM courses c` + clause + ` ORDER BY LOWER(c.course_name), c.id`

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	if err := r.attachInstructors(ctx, r.db, courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// ListByIDs returns the courses with the given ids, in no particular order.
func (r *CourseRepository) ListByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.Course, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	target := r.exec(exec)
	query := `SELECT ` + courseColumns + ` FROM courses c WHERE c.id = ANY($1)`
	var courses []models.Course
	if err := sqlx.SelectContext(ctx, target, &courses, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list courses by id: %w", err)
	}
	if err := r.attachInstructors(ctx, target, courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// LockIDs locks the listed course rows and returns the ids that exist.
func (r *CourseRepository) LockIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]string, error) {
	const query = `SELECT id FROM courses WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	var found []string
	if err := sqlx.SelectContext(ctx, r.exec(exec), &found, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("lock courses: %w", err)
	}
	return found, nil
}

// UpdateStatus sets status on every listed course.
func (r *CourseRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, ids []string, status models.CourseStatus) (int64, error) {
	const query = `UPDATE courses SET status = $1, updated_at = $2 WHERE id = ANY($3)`
	res, err := r.exec(exec).ExecContext(ctx, query, status, time.Now().UTC(), pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("update course status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("course status rows affected: %w", err)
	}
	return affected, nil
}

// Delete removes the course's enrollments, instructors and the course itself,
// returning the number of enrollments removed.
func (r *CourseRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) (int64, error) {
	target := r.exec(exec)
	res, err := target.ExecContext(ctx, `DELETE FROM enrollments WHERE course_id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete course enrollments: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("course enrollments rows affected: %w", err)
	}
	if _, err := target.ExecContext(ctx, `DELETE FROM course_instructors WHERE course_id = $1`, id); err != nil {
		return 0, fmt.Errorf("delete course instructors: %w", err)
	}
	if _, err := target.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id); err != nil {
		return 0, fmt.Errorf("delete course: %w", err)
	}
	return removed, nil
}

func (r *CourseRepository) attachInstructors(ctx context.Context, exec sqlx.QueryerContext, courses []models.Course) error {
	if len(courses) == 0 {
		return nil
	}
	ids := make([]string, len(courses))
	index := make(map[string]int, len(courses))
	for i, course := range courses {
		ids[i] = course.ID
		index[course.ID] = i
	}
	const query = `SELECT course_id, instructor_id, name, is_coordinator, position
        FROM course_instructors WHERE course_id = ANY($1) ORDER BY course_id, position`
	var rows []models.CourseInstructor
	if err := sqlx.SelectContext(ctx, exec, &rows, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("list course instructors: %w", err)
	}
	for _, row := range rows {
		if i, ok := index[row.CourseID]; ok {
			courses[i].Instructors = append(courses[i].Instructors, row)
		}
	}
	return nil
}
