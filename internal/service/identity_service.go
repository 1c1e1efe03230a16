package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/course-workflow-api/internal/models"
	appErrors "github.com/noah-isme/course-workflow-api/pkg/errors"
)

type identityRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindActiveByFullName(ctx context.Context, name string, roles []models.UserRole) ([]models.User, error)
}

var instructorRoles = []models.UserRole{models.RoleCourseInstructor, models.RoleFacultyAdvisor}

// IdentityService resolves people in the identity directory.
type IdentityService struct {
	repo   identityRepository
	logger *zap.Logger
}

// NewIdentityService constructs IdentityService.
func NewIdentityService(repo identityRepository, logger *zap.Logger) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{repo: repo, logger: logger}
}

// ResolveByID returns the identity for id.
func (s *IdentityService) ResolveByID(ctx context.Context, id string) (*models.Identity, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	identity := models.IdentityFromUser(*user)
	return &identity, nil
}

// ResolveInstructorByID checks that id belongs to an active instructor or faculty advisor.
func (s *IdentityService) ResolveInstructorByID(ctx context.Context, id string) (*models.Identity, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, unresolvedInstructor(id, 0)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	if !user.Active || !isInstructorRole(user.Role) {
		return nil, unresolvedInstructor(id, 0)
	}
	identity := models.IdentityFromUser(*user)
	return &identity, nil
}

// ResolveInstructorName maps a full name to exactly one active instructor or faculty advisor.
func (s *IdentityService) ResolveInstructorName(ctx context.Context, name string) (*models.Identity, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, unresolvedInstructor(name, 0)
	}
	users, err := s.repo.FindActiveByFullName(ctx, trimmed, instructorRoles)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve instructor")
	}
	if len(users) != 1 {
		s.logger.Debug("instructor name did not resolve", zap.String("name", trimmed), zap.Int("matches", len(users)))
		return nil, unresolvedInstructor(trimmed, len(users))
	}
	identity := models.IdentityFromUser(users[0])
	return &identity, nil
}

func isInstructorRole(role models.UserRole) bool {
	for _, r := range instructorRoles {
		if r == role {
			return true
		}
	}
	return false
}

func unresolvedInstructor(ref string, matches int) *appErrors.Error {
	return appErrors.WithDetails(appErrors.ErrUnresolvedInstructor,
		"instructor "+strings.TrimSpace(ref)+" could not be resolved",
		map[string]interface{}{"instructor": ref, "matches": matches})
}
