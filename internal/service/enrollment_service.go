package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/noah-isme/course-workflow-api/internal/dto"
	"github.com/noah-isme/course-workflow-api/internal/models"
	"github.com/noah-isme/course-workflow-api/internal/projection"
	"github.com/noah-isme/course-workflow-api/internal/repository"
	"github.com/noah-isme/course-workflow-api/pkg/database"
	appErrors "github.com/noah-isme/course-workflow-api/pkg/errors"
)

type enrollmentRepository interface {
	ListLatestByStudent(ctx context.Context, studentID string) ([]models.Enrollment, error)
	LockByStudentAndCourses(ctx context.Context, exec sqlx.ExtContext, studentID string, courseIDs []string) ([]models.Enrollment, error)
	LockByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.Enrollment, error)
	Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, ids []string, status models.EnrollmentStatus) (int64, error)
	UpdateStatusFrom(ctx context.Context, exec sqlx.ExtContext, ids []string, from, to models.EnrollmentStatus) (int64, error)
	ListDetails(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error)
}

type enrollmentCourseReader interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindForShare(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error)
	ListByIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.Course, error)
}

type identityLookup interface {
	ResolveByID(ctx context.Context, id string) (*models.Identity, error)
}

// EnrollmentConfig toggles workflow policy.
type EnrollmentConfig struct {
	// AllowReenroll lets a student credit a course again after a terminal status.
	AllowReenroll bool
}

// EnrollmentService runs the enrollment ledger and the approval gateway.
type EnrollmentService struct {
	repo       enrollmentRepository
	courses    enrollmentCourseReader
	identities identityLookup
	tx         database.TxBeginner
	metrics    *MetricsService
	events     *EventPublisher
	validator  *validator.Validate
	logger     *zap.Logger
	config     EnrollmentConfig
	tracer     trace.Tracer
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, courses enrollmentCourseReader, identities identityLookup, tx database.TxBeginner, metrics *MetricsService, events *EventPublisher, validate *validator.Validate, logger *zap.Logger, config EnrollmentConfig) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:       repo,
		courses:    courses,
		identities: identities,
		tx:         tx,
		metrics:    metrics,
		events:     events,
		validator:  validate,
		logger:     logger,
		config:     config,
		tracer:     otel.Tracer("github.com/noah-isme/course-workflow-api/internal/service/enrollment"),
	}
}

// ListForStudent returns the student's course view: open courses their entry year
// may join plus every course they hold an enrollment in, filtered and sorted.
func (s *EnrollmentService) ListForStudent(ctx context.Context, caller models.Caller, filter projection.Filter) ([]projection.Row, error) {
	if !caller.HasRole(models.RoleStudent) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students have a course view")
	}
	if filter.Status != "" && filter.Status != models.EnrollmentStatusNotEnrolled &&
		filter.Status != models.EnrollmentStatusUnknown && !filter.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status filter")
	}
	student, err := s.identities.ResolveByID(ctx, caller.ID)
	if err != nil {
		return nil, err
	}

	open, err := s.courses.List(ctx, models.CourseFilter{Status: models.CourseStatusEnrolling})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list open courses")
	}
	enrollments, err := s.repo.ListLatestByStudent(ctx, caller.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	byCourse := make(map[string]*models.Enrollment, len(enrollments))
	for i := range enrollments {
		byCourse[enrollments[i].CourseID] = &enrollments[i]
	}

	rows := make([]projection.Row, 0, len(open)+len(enrollments))
	seen := make(map[string]struct{}, len(open))
	for _, course := range open {
		enrollment := byCourse[course.ID]
		if enrollment == nil && !course.AcceptsEntryYear(student.EntryYear) {
			continue
		}
		seen[course.ID] = struct{}{}
		rows = append(rows, projection.Project(course, enrollment))
	}

	var others []string
	for courseID := range byCourse {
		if _, ok := seen[courseID]; !ok {
			others = append(others, courseID)
		}
	}
	if len(others) > 0 {
		sort.Strings(others)
		courses, err := s.courses.ListByIDs(ctx, nil, others)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrolled courses")
		}
		for _, course := range courses {
			rows = append(rows, projection.Project(course, byCourse[course.ID]))
		}
	}
	return projection.Apply(rows, filter), nil
}

// StudentAction credits, drops or withdraws across a selection of courses. The
// batch is validated against locked rows and applied only if every course allows the action.
func (s *EnrollmentService) StudentAction(ctx context.Context, caller models.Caller, req dto.StudentActionRequest) (*dto.StudentActionResult, error) {
	ctx, span := s.tracer.Start(ctx, "enrollment.student_action")
	span.SetAttributes(
		attribute.String("enrollment.action", string(req.Action)),
		attribute.Int("enrollment.selection", len(req.CourseIDs)),
	)
	defer span.End()

	if !caller.HasRole(models.RoleStudent) {
		return nil, spanFail(span, appErrors.Clone(appErrors.ErrForbidden, "only students may act on their enrollments"))
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, spanFail(span, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student action payload"))
	}
	student, err := s.identities.ResolveByID(ctx, caller.ID)
	if err != nil {
		return nil, spanFail(span, err)
	}

	courseIDs, err := selectionIDs(req.CourseIDs, "courseIds")
	if err != nil {
		return nil, spanFail(span, err)
	}
	sort.Strings(courseIDs)
	target, _ := req.Action.TargetStatus()
	result := &dto.StudentActionResult{Action: req.Action, Enrollments: []models.Enrollment{}}
	moves := make(map[models.EnrollmentStatus]int)

	err = database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		courses := make(map[string]*models.Course, len(courseIDs))
		var missing []string
		for _, id := range courseIDs {
			course, err := s.courses.FindForShare(ctx, tx, id)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					missing = append(missing, id)
					continue
				}
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
			}
			courses[id] = course
		}
		if len(missing) > 0 {
			return appErrors.WithDetails(appErrors.ErrNotFound, "course not found", dto.MissingIDs{IDs: missing})
		}

		existing, err := s.repo.LockByStudentAndCourses(ctx, tx, caller.ID, courseIDs)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
		}
		latest := make(map[string]*models.Enrollment, len(existing))
		for i := range existing {
			latest[existing[i].CourseID] = &existing[i]
		}

		var invalid []string
		for _, id := range courseIDs {
			current := projection.UnifiedStatus(*courses[id], latest[id])
			if !s.studentActionAllowed(*courses[id], student, current, req.Action) {
				invalid = append(invalid, id)
			}
		}
		if len(invalid) > 0 {
			return appErrors.WithDetails(appErrors.ErrInvalidActionForSelection,
				"action "+string(req.Action)+" is not allowed for every selected course",
				dto.InvalidSelection{Action: string(req.Action), IDs: invalid})
		}

		if req.Action == models.StudentActionCredit {
			for _, id := range courseIDs {
				coordinator, ok := courses[id].Coordinator()
				if !ok {
					return appErrors.Clone(appErrors.ErrInvariantViolation, "course "+id+" has no instructors")
				}
				if prev := latest[id]; prev != nil {
					moves[prev.Status]++
				} else {
					moves[models.EnrollmentStatusNotEnrolled]++
				}
				enrollment := &models.Enrollment{
					StudentID:    caller.ID,
					CourseID:     id,
					InstructorID: coordinator.InstructorID,
					Status:       models.EnrollmentStatusPendingInstructor,
				}
				if err := s.repo.Create(ctx, tx, enrollment); err != nil {
					if errors.Is(err, repository.ErrLiveEnrollmentExists) {
						return appErrors.WithDetails(appErrors.ErrConflict,
							"course "+id+" already has a live enrollment for this student",
							dto.InvalidSelection{Action: string(req.Action), IDs: []string{id}})
					}
					return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
				}
				result.Enrollments = append(result.Enrollments, *enrollment)
			}
			return nil
		}

		ids := make([]string, 0, len(courseIDs))
		for _, id := range courseIDs {
			current := latest[id]
			if !models.CanTransition(current.Status, target) {
				return appErrors.Clone(appErrors.ErrInvariantViolation, "enrollment "+current.ID+" cannot move to "+string(target))
			}
			moves[current.Status]++
			ids = append(ids, current.ID)
		}
		updated, err := s.repo.UpdateStatus(ctx, tx, ids, target)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollments")
		}
		if int(updated) != len(ids) {
			return appErrors.Clone(appErrors.ErrInvariantViolation, "enrollment rows changed during update")
		}
		for _, id := range courseIDs {
			enrollment := *latest[id]
			enrollment.Status = target
			result.Enrollments = append(result.Enrollments, enrollment)
		}
		return nil
	})
	if err != nil {
		return nil, spanFail(span, appErrors.FromError(err))
	}

	for from, n := range moves {
		s.metrics.RecordTransition("enrollment", string(from), string(target), n)
	}
	s.logger.Info("student enrollment action applied",
		zap.String("caller_id", caller.ID),
		zap.String("action", string(req.Action)),
		zap.Strings("course_ids", courseIDs),
	)
	enrollmentIDs := make([]string, len(result.Enrollments))
	for i, enrollment := range result.Enrollments {
		enrollmentIDs[i] = enrollment.ID
	}
	s.events.Publish(ctx, WorkflowEvent{
		Type:      EventEnrollmentTransition,
		ActorID:   caller.ID,
		EntityIDs: enrollmentIDs,
		To:        string(target),
		Count:     len(enrollmentIDs),
	})
	return result, nil
}

func (s *EnrollmentService) studentActionAllowed(course models.Course, student *models.Identity, current models.EnrollmentStatus, action models.StudentAction) bool {
	if !models.StudentActionAllowed(current, action, s.config.AllowReenroll) {
		return false
	}
	if action == models.StudentActionCredit {
		return course.OpenForEnrollment() && course.AcceptsEntryYear(student.EntryYear)
	}
	return true
}

// InstructorDecision approves or rejects enrollments awaiting the instructor.
// Rows in any other status are skipped and reported, not rejected.
func (s *EnrollmentService) InstructorDecision(ctx context.Context, caller models.Caller, req dto.EnrollmentDecisionRequest) (*dto.InstructorDecisionResult, error) {
	ctx, span := s.tracer.Start(ctx, "enrollment.instructor_decision")
	span.SetAttributes(
		attribute.String("enrollment.action", string(req.Action)),
		attribute.Int("enrollment.selection", len(req.EnrollmentIDs)),
	)
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		return nil, spanFail(span, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload"))
	}
	target, _ := req.Action.InstructorTarget()
	ids, err := selectionIDs(req.EnrollmentIDs, "enrollmentIds")
	if err != nil {
		return nil, spanFail(span, err)
	}
	result := &dto.InstructorDecisionResult{Skipped: []string{}}
	var moved []string

	err = database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		rows, err := s.lockEnrollments(ctx, tx, ids)
		if err != nil {
			return err
		}

		courseIDs := make([]string, 0, len(rows))
		for _, row := range rows {
			courseIDs = append(courseIDs, row.CourseID)
		}
		courses, err := s.courses.ListByIDs(ctx, tx, uniqueStrings(courseIDs))
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
		}
		owned := make(map[string]bool, len(courses))
		for _, course := range courses {
			owned[course.ID] = course.HasInstructor(caller.ID)
		}

		var foreign, pending []string
		for _, row := range rows {
			switch {
			case !owned[row.CourseID]:
				foreign = append(foreign, row.ID)
			case row.Status == models.EnrollmentStatusPendingInstructor:
				pending = append(pending, row.ID)
			default:
				result.Skipped = append(result.Skipped, row.ID)
			}
		}
		if len(foreign) > 0 {
			return appErrors.WithDetails(appErrors.ErrForbidden, "caller does not teach every selected course", dto.MissingIDs{IDs: foreign})
		}
		if len(pending) == 0 {
			return nil
		}
		modified, err := s.repo.UpdateStatusFrom(ctx, tx, pending, models.EnrollmentStatusPendingInstructor, target)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollments")
		}
		result.Modified = int(modified)
		moved = pending
		return nil
	})
	if err != nil {
		return nil, spanFail(span, appErrors.FromError(err))
	}

	span.SetAttributes(attribute.Int("enrollment.modified", result.Modified))
	s.metrics.RecordTransition("enrollment", string(models.EnrollmentStatusPendingInstructor), string(target), result.Modified)
	s.logger.Info("instructor decision applied",
		zap.String("caller_id", caller.ID),
		zap.Strings("enrollment_ids", ids),
		zap.String("action", string(req.Action)),
		zap.Int("modified", result.Modified),
		zap.Int("skipped", len(result.Skipped)),
	)
	if result.Modified > 0 {
		s.events.Publish(ctx, WorkflowEvent{
			Type:      EventEnrollmentTransition,
			ActorID:   caller.ID,
			EntityIDs: moved,
			From:      string(models.EnrollmentStatusPendingInstructor),
			To:        string(target),
			Count:     result.Modified,
		})
	}
	return result, nil
}

// FADecision approves or rejects enrollments awaiting the faculty advisor. Rows
// already in the target status are left as they are; any other status fails the batch.
func (s *EnrollmentService) FADecision(ctx context.Context, caller models.Caller, req dto.EnrollmentDecisionRequest) (*dto.FADecisionResult, error) {
	ctx, span := s.tracer.Start(ctx, "enrollment.fa_decision")
	span.SetAttributes(
		attribute.String("enrollment.action", string(req.Action)),
		attribute.Int("enrollment.selection", len(req.EnrollmentIDs)),
	)
	defer span.End()

	if !caller.HasRole(models.RoleFacultyAdvisor) {
		return nil, spanFail(span, appErrors.Clone(appErrors.ErrForbidden, "only faculty advisors may decide enrollments"))
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, spanFail(span, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload"))
	}
	target, _ := req.Action.FATarget()
	ids, err := selectionIDs(req.EnrollmentIDs, "enrollmentIds")
	if err != nil {
		return nil, spanFail(span, err)
	}
	result := &dto.FADecisionResult{}
	var moved []string

	err = database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		rows, err := s.lockEnrollments(ctx, tx, ids)
		if err != nil {
			return err
		}
		var toMove, invalid []string
		for _, row := range rows {
			switch row.Status {
			case models.EnrollmentStatusPendingFA:
				toMove = append(toMove, row.ID)
			case target:
				result.Unchanged++
			default:
				invalid = append(invalid, row.ID)
			}
		}
		if len(invalid) > 0 {
			return appErrors.WithDetails(appErrors.ErrInvalidActionForSelection,
				"only enrollments awaiting the faculty advisor can be decided",
				dto.InvalidSelection{Action: string(req.Action), IDs: invalid})
		}
		if len(toMove) == 0 {
			return nil
		}
		modified, err := s.repo.UpdateStatus(ctx, tx, toMove, target)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollments")
		}
		result.Modified = int(modified)
		moved = toMove
		return nil
	})
	if err != nil {
		return nil, spanFail(span, appErrors.FromError(err))
	}

	s.metrics.RecordTransition("enrollment", string(models.EnrollmentStatusPendingFA), string(target), result.Modified)
	s.logger.Info("faculty advisor decision applied",
		zap.String("caller_id", caller.ID),
		zap.Strings("enrollment_ids", ids),
		zap.String("action", string(req.Action)),
		zap.Int("modified", result.Modified),
	)
	if result.Modified > 0 {
		s.events.Publish(ctx, WorkflowEvent{
			Type:      EventEnrollmentTransition,
			ActorID:   caller.ID,
			EntityIDs: moved,
			From:      string(models.EnrollmentStatusPendingFA),
			To:        string(target),
			Count:     result.Modified,
		})
	}
	return result, nil
}

// ListForInstructor returns a course's enrollments with student fields for its instructors.
func (s *EnrollmentService) ListForInstructor(ctx context.Context, caller models.Caller, courseID string, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.HasInstructor(caller.ID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only course instructors may list its enrollments")
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status filter")
	}
	filter.CourseID = courseID
	details, err := s.repo.ListDetails(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return details, nil
}

// ListForFA returns enrollments for faculty advisor review, defaulting to pending_fa.
func (s *EnrollmentService) ListForFA(ctx context.Context, caller models.Caller, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	if !caller.HasRole(models.RoleFacultyAdvisor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only faculty advisors may review enrollments")
	}
	if filter.Status == "" {
		filter.Status = models.EnrollmentStatusPendingFA
	}
	if !filter.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status filter")
	}
	details, err := s.repo.ListDetails(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return details, nil
}

func (s *EnrollmentService) lockEnrollments(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]models.Enrollment, error) {
	rows, err := s.repo.LockByIDs(ctx, exec, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	found := make([]string, len(rows))
	for i, row := range rows {
		found[i] = row.ID
	}
	if missing := missingIDs(ids, found); len(missing) > 0 {
		return nil, appErrors.WithDetails(appErrors.ErrNotFound, "enrollment not found", dto.MissingIDs{IDs: missing})
	}
	return rows, nil
}

func spanFail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
