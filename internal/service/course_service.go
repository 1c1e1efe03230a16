package service

import (
	"context"
	"database/sql"
	"errors"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/noah-isme/course-workflow-api/internal/dto"
	"github.com/noah-isme/course-workflow-api/internal/models"
	"github.com/noah-isme/course-workflow-api/pkg/database"
	appErrors "github.com/noah-isme/course-workflow-api/pkg/errors"
)

// textPolicy strips markup from free-text course fields.
var textPolicy = bluemonday.StrictPolicy()

const (
	catalogCacheKey     = "courses:all"
	catalogCachePattern = "courses:*"
)

type courseRepository interface {
	LockSlot(ctx context.Context, exec sqlx.ExtContext, session, slot string) error
	FindSlotConflicts(ctx context.Context, exec sqlx.ExtContext, session, slot string, instructorIDs []string) ([]models.SlotConflict, error)
	Create(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error)
	LockIDs(ctx context.Context, exec sqlx.ExtContext, ids []string) ([]string, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, ids []string, status models.CourseStatus) (int64, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) (int64, error)
}

type instructorResolver interface {
	ResolveByID(ctx context.Context, id string) (*models.Identity, error)
	ResolveInstructorByID(ctx context.Context, id string) (*models.Identity, error)
	ResolveInstructorName(ctx context.Context, name string) (*models.Identity, error)
}

// CourseService owns the course registry: proposals, FA decisions and deletion.
type CourseService struct {
	repo       courseRepository
	identities instructorResolver
	tx         database.TxBeginner
	cache      *CacheService
	cacheTTL   time.Duration
	metrics    *MetricsService
	events     *EventPublisher
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, identities instructorResolver, tx database.TxBeginner, cache *CacheService, cacheTTL time.Duration, metrics *MetricsService, events *EventPublisher, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		repo:       repo,
		identities: identities,
		tx:         tx,
		cache:      cache,
		cacheTTL:   cacheTTL,
		metrics:    metrics,
		events:     events,
		validator:  validate,
		logger:     logger,
	}
}

// Propose creates a course in proposed status after resolving instructors and
// checking the (session, slot) conflict invariant under an advisory lock.
func (s *CourseService) Propose(ctx context.Context, caller models.Caller, req dto.ProposeCourseRequest) (*models.Course, error) {
	if !caller.HasRole(models.RoleCourseInstructor, models.RoleFacultyAdvisor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only instructors and faculty advisors may propose courses")
	}
	req = normaliseProposal(req)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	instructors, err := s.resolveInstructors(ctx, caller, req.Instructors)
	if err != nil {
		return nil, err
	}

	course := &models.Course{
		CourseCode:        req.CourseCode,
		CourseName:        req.CourseName,
		OfferingDept:      req.OfferingDept,
		Credits:           req.Credits,
		Session:           req.Session,
		Slot:              req.Slot,
		AllowedEntryYears: uniqueYears(req.AllowedEntryYears),
		Status:            models.CourseStatusProposed,
		CreatedBy:         caller.ID,
		Instructors:       instructors,
	}

	ids := make([]string, len(instructors))
	for i, inst := range instructors {
		ids[i] = inst.InstructorID
	}

	err = database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.repo.LockSlot(ctx, tx, course.Session, course.Slot); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock course slot")
		}
		conflicts, err := s.repo.FindSlotConflicts(ctx, tx, course.Session, course.Slot, ids)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot conflicts")
		}
		if len(conflicts) > 0 {
			conflict := conflicts[0]
			return appErrors.WithDetails(appErrors.ErrSlotConflict,
				conflict.InstructorName+" already teaches in "+conflict.Session+" slot "+conflict.Slot, conflict)
		}
		if err := s.repo.Create(ctx, tx, course); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}

	s.invalidateCatalog(ctx)
	s.metrics.RecordTransition("course", "", string(models.CourseStatusProposed), 1)
	s.logger.Info("course proposed",
		zap.String("course_id", course.ID),
		zap.String("caller_id", caller.ID),
		zap.String("session", course.Session),
		zap.String("slot", course.Slot),
	)
	s.events.Publish(ctx, WorkflowEvent{
		Type:     EventCourseProposed,
		ActorID:  caller.ID,
		CourseID: course.ID,
		To:       string(models.CourseStatusProposed),
		Count:    1,
	})
	return course, nil
}

// resolveInstructors maps inputs to directory identities, de-duplicates them and
// guarantees exactly one coordinator, promoting or appending the caller when none is flagged.
func (s *CourseService) resolveInstructors(ctx context.Context, caller models.Caller, inputs []dto.InstructorInput) ([]models.CourseInstructor, error) {
	resolved := make([]models.CourseInstructor, 0, len(inputs)+1)
	index := make(map[string]int, len(inputs))
	for _, input := range inputs {
		var (
			identity *models.Identity
			err      error
		)
		if input.InstructorID != "" {
			identity, err = s.identities.ResolveInstructorByID(ctx, input.InstructorID)
		} else {
			identity, err = s.identities.ResolveInstructorName(ctx, input.Name)
		}
		if err != nil {
			return nil, err
		}
		if i, ok := index[identity.ID]; ok {
			resolved[i].IsCoordinator = resolved[i].IsCoordinator || input.IsCoordinator
			continue
		}
		index[identity.ID] = len(resolved)
		resolved = append(resolved, models.CourseInstructor{
			InstructorID:  identity.ID,
			Name:          identity.FullName(),
			IsCoordinator: input.IsCoordinator,
		})
	}

	coordinator := -1
	for i := range resolved {
		if resolved[i].IsCoordinator {
			if coordinator >= 0 {
				resolved[i].IsCoordinator = false
				continue
			}
			coordinator = i
		}
	}
	if coordinator >= 0 {
		return resolved, nil
	}

	if i, ok := index[caller.ID]; ok {
		resolved[i].IsCoordinator = true
		return resolved, nil
	}
	self, err := s.identities.ResolveByID(ctx, caller.ID)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Code == appErrors.ErrNotFound.Code {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "caller is not registered in the directory")
		}
		return nil, err
	}
	return append(resolved, models.CourseInstructor{
		InstructorID:  self.ID,
		Name:          self.FullName(),
		IsCoordinator: true,
	}), nil
}

// Decide moves every listed proposal to enrolling or rejected. Unknown ids fail the whole call.
func (s *CourseService) Decide(ctx context.Context, caller models.Caller, req dto.CourseDecisionRequest) (*dto.CourseDecisionResult, error) {
	if !caller.HasRole(models.RoleFacultyAdvisor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only faculty advisors may decide proposals")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	target, _ := req.Action.CourseTarget()
	ids, err := selectionIDs(req.CourseIDs, "courseIds")
	if err != nil {
		return nil, err
	}

	var updated int64
	err = database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		found, err := s.repo.LockIDs(ctx, tx, ids)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
		}
		if missing := missingIDs(ids, found); len(missing) > 0 {
			return appErrors.WithDetails(appErrors.ErrNotFound, "course not found", dto.MissingIDs{IDs: missing})
		}
		updated, err = s.repo.UpdateStatus(ctx, tx, ids, target)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course status")
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}

	s.invalidateCatalog(ctx)
	s.metrics.RecordTransition("course", string(models.CourseStatusProposed), string(target), int(updated))
	s.logger.Info("course proposals decided",
		zap.Strings("course_ids", ids),
		zap.String("action", string(req.Action)),
		zap.Int64("modified", updated),
	)
	s.events.Publish(ctx, WorkflowEvent{
		Type:      EventCourseDecided,
		ActorID:   caller.ID,
		EntityIDs: ids,
		To:        string(target),
		Count:     int(updated),
	})
	return &dto.CourseDecisionResult{Status: target, Updated: int(updated)}, nil
}

// Delete removes a course and all of its enrollments. Only listed instructors may delete.
func (s *CourseService) Delete(ctx context.Context, caller models.Caller, courseID string) (*dto.DeleteCourseResult, error) {
	var removed int64
	err := database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		course, err := s.repo.FindForUpdate(ctx, tx, courseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "course not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
		if !course.HasInstructor(caller.ID) {
			return appErrors.Clone(appErrors.ErrForbidden, "only course instructors may delete the course")
		}
		removed, err = s.repo.Delete(ctx, tx, courseID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}

	s.invalidateCatalog(ctx)
	s.logger.Info("course deleted",
		zap.String("course_id", courseID),
		zap.String("caller_id", caller.ID),
		zap.Int64("enrollments_removed", removed),
	)
	s.events.Publish(ctx, WorkflowEvent{
		Type:     EventCourseDeleted,
		ActorID:  caller.ID,
		CourseID: courseID,
		Count:    int(removed),
	})
	return &dto.DeleteCourseResult{CourseID: courseID, EnrollmentsRemoved: removed}, nil
}

// Get returns a single course.
func (s *CourseService) Get(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// ListMine returns courses the caller teaches.
func (s *CourseService) ListMine(ctx context.Context, caller models.Caller) ([]models.Course, error) {
	courses, err := s.repo.List(ctx, models.CourseFilter{InstructorID: caller.ID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}

// ListProposals returns courses awaiting an FA decision.
func (s *CourseService) ListProposals(ctx context.Context, caller models.Caller) ([]models.Course, error) {
	if !caller.HasRole(models.RoleFacultyAdvisor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only faculty advisors may review proposals")
	}
	courses, err := s.repo.List(ctx, models.CourseFilter{Status: models.CourseStatusProposed})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list proposals")
	}
	return courses, nil
}

// ListAll returns the full catalogue, served from cache when enabled. The bool reports a cache hit.
func (s *CourseService) ListAll(ctx context.Context) ([]models.Course, bool, error) {
	courses, hit, err := Remember(ctx, s.cache, catalogCacheKey, s.cacheTTL, func(ctx context.Context) ([]models.Course, error) {
		return s.repo.List(ctx, models.CourseFilter{})
	})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, hit, nil
}

func (s *CourseService) invalidateCatalog(ctx context.Context) {
	s.cache.Invalidate(ctx, catalogCachePattern)
}

func normaliseProposal(req dto.ProposeCourseRequest) dto.ProposeCourseRequest {
	req.CourseCode = plainText(req.CourseCode)
	req.CourseName = plainText(req.CourseName)
	req.OfferingDept = plainText(req.OfferingDept)
	req.Session = strings.TrimSpace(req.Session)
	req.Slot = strings.TrimSpace(req.Slot)
	for i := range req.Instructors {
		req.Instructors[i].InstructorID = strings.TrimSpace(req.Instructors[i].InstructorID)
		req.Instructors[i].Name = strings.TrimSpace(req.Instructors[i].Name)
	}
	return req
}

// plainText strips markup and returns unescaped text.
func plainText(value string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(value)))
}

func uniqueYears(years []int) []int64 {
	seen := make(map[int]struct{}, len(years))
	out := make([]int64, 0, len(years))
	for _, year := range years {
		if _, ok := seen[year]; ok {
			continue
		}
		seen[year] = struct{}{}
		out = append(out, int64(year))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// selectionIDs trims and dedupes a bulk selection, rejecting one left empty.
func selectionIDs(values []string, field string) ([]string, error) {
	ids := uniqueStrings(values)
	if len(ids) == 0 {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, field+" must contain at least one non-blank id",
			map[string]string{"field": field})
	}
	return ids, nil
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func missingIDs(requested, found []string) []string {
	present := make(map[string]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	var missing []string
	for _, id := range requested {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
