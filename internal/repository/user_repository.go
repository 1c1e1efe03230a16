package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/course-workflow-api/internal/models"
)

const userColumns = `id, email, first_name, last_name, role, department, entry_year, active, created_at, updated_at`

// UserRepository provides read access to the identity directory and the audit trail.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// FindActiveByFullName returns active users holding one of roles whose
// "first last" name equals name, ignoring case and surrounding whitespace.
func (r *UserRepository) FindActiveByFullName(ctx context.Context, name string, roles []models.UserRole) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
        WHERE active = TRUE AND role = ANY($1)
        AND LOWER(TRIM(first_name || ' ' || last_name)) = LOWER(TRIM($2))
        ORDER BY id`
	roleNames := make([]string, len(roles))
	for i, role := range roles {
		roleNames[i] = string(role)
	}
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, pq.Array(roleNames), name); err != nil {
		return nil, fmt.Errorf("find users by name: %w", err)
	}
	return users, nil
}

// CreateAuditLog stores an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, new_values, ip_address, user_agent, created_at) VALUES (:id, :user_id, :action, :resource, :resource_id, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
