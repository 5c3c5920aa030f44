package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulsecheck-io/pulsecheck/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*User, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, tenant_id, email, display_name, password_hash, roles, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.Roles, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// FindByEmail fetches a user by email within a tenant. Login runs before any
// identity is resolved, so the lookup takes the tenant id directly rather
// than a scope.
func (r *PGRepository) FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE tenant_id = $1 AND email = $2`, userColumns)
	u, err := scanUser(r.pool.QueryRow(ctx, query, tenantID, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

var _ Repository = (*PGRepository)(nil)
