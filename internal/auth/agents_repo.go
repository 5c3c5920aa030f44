package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pulsecheck-io/pulsecheck/internal/platform/db"
	"github.com/pulsecheck-io/pulsecheck/internal/shared"
	"github.com/pulsecheck-io/pulsecheck/internal/tenancy"
)

// AgentFilter narrows an agent listing.
type AgentFilter struct {
	// Search matches case-insensitively against email and display name.
	Search string
}

// AgentsRepository defines persistence operations for tenant agent accounts.
// Agents are rows in the users table managed by a tenant admin.
type AgentsRepository interface {
	CreateAgent(ctx context.Context, scope tenancy.Scope, u User) (User, error)
	ListAgents(ctx context.Context, scope tenancy.Scope, filter AgentFilter) ([]User, error)
	GetAgent(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (User, error)
	UpdateAgent(ctx context.Context, scope tenancy.Scope, u User) error
}

// CreateAgent inserts a new agent account under the scope's tenant. The
// (tenant_id, email) unique constraint surfaces as ErrEmailTaken.
func (r *PGRepository) CreateAgent(ctx context.Context, scope tenancy.Scope, u User) (User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.TenantID = scope.StampTenant(u.TenantID)
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	table := tenancy.MustScopedKind("users")
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, table, userColumns)
	_, err := r.pool.Exec(ctx, query,
		u.ID, u.TenantID, u.Email, u.DisplayName, u.PasswordHash, u.Roles, u.IsActive, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	return u, nil
}

// ListAgents returns the agents visible under the scope, ordered by display
// name.
func (r *PGRepository) ListAgents(ctx context.Context, scope tenancy.Scope, filter AgentFilter) ([]User, error) {
	table := tenancy.MustScopedKind("users")
	cond, arg := scope.Condition(1)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s`, userColumns, table, cond)
	args := []any{arg}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(` AND (email ILIKE $%d OR display_name ILIKE $%d)`, len(args), len(args))
	}
	query += ` ORDER BY display_name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, u)
	}
	return agents, rows.Err()
}

// GetAgent returns a single agent visible under the scope.
func (r *PGRepository) GetAgent(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (User, error) {
	table := tenancy.MustScopedKind("users")
	cond, arg := scope.Condition(2)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND %s`, userColumns, table, cond)
	u, err := scanUser(r.pool.QueryRow(ctx, query, id, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// UpdateAgent applies profile and role changes to an existing agent. Email
// and tenant_id are deliberately absent from the SET list.
func (r *PGRepository) UpdateAgent(ctx context.Context, scope tenancy.Scope, u User) error {
	table := tenancy.MustScopedKind("users")
	cond, arg := scope.Condition(6)
	query := fmt.Sprintf(
		`UPDATE %s SET display_name = $2, roles = $3, is_active = $4, updated_at = $5 WHERE id = $1 AND %s`,
		table, cond)
	tag, err := r.pool.Exec(ctx, query, u.ID, u.DisplayName, u.Roles, u.IsActive, time.Now().UTC(), arg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ AgentsRepository = (*PGRepository)(nil)
