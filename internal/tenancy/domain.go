// Package tenancy defines the tenant identity boundary: the Tenant record,
// the per-request caller identity, and the access scope every tenant-scoped
// repository operates under.
package tenancy

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/text/language"

	"github.com/pulsecheck-io/pulsecheck/internal/platform/db"
	"github.com/pulsecheck-io/pulsecheck/internal/shared"
)

// Tenant is an isolated customer account. Rows are created at provisioning
// and never reassigned or deleted while scoped rows reference them.
type Tenant struct {
	ID              uuid.UUID
	Name            string
	Slug            string
	DefaultLanguage string
	SurveyStyle     string
	CreatedAt       time.Time
}

// Repository defines persistence operations for tenants.
type Repository interface {
	Create(ctx context.Context, t Tenant) (Tenant, error)
	GetBySlug(ctx context.Context, slug string) (Tenant, error)
	GetByID(ctx context.Context, id uuid.UUID) (Tenant, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL tenant repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Create inserts a tenant row. The default language is canonicalized to a
// BCP 47 tag; a duplicate slug maps to ErrDuplicateSlug.
func (r *PGRepository) Create(ctx context.Context, t Tenant) (Tenant, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if tag, err := language.Parse(t.DefaultLanguage); err == nil {
		t.DefaultLanguage = tag.String()
	} else {
		t.DefaultLanguage = "en"
	}
	if t.SurveyStyle == "" {
		t.SurveyStyle = "friendly"
	}
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO tenants (id, name, slug, default_language, survey_style, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.Name, t.Slug, t.DefaultLanguage, t.SurveyStyle, now)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Tenant{}, ErrDuplicateSlug
		}
		return Tenant{}, err
	}
	t.CreatedAt = now
	return t, nil
}

// GetBySlug fetches a tenant by its routing slug.
func (r *PGRepository) GetBySlug(ctx context.Context, slug string) (Tenant, error) {
	return r.get(ctx, `SELECT id, name, slug, default_language, survey_style, created_at FROM tenants WHERE slug = $1`, slug)
}

// GetByID fetches a tenant by primary key.
func (r *PGRepository) GetByID(ctx context.Context, id uuid.UUID) (Tenant, error) {
	return r.get(ctx, `SELECT id, name, slug, default_language, survey_style, created_at FROM tenants WHERE id = $1`, id)
}

func (r *PGRepository) get(ctx context.Context, query string, arg any) (Tenant, error) {
	var t Tenant
	err := r.pool.QueryRow(ctx, query, arg).Scan(&t.ID, &t.Name, &t.Slug, &t.DefaultLanguage, &t.SurveyStyle, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, shared.ErrNotFound
		}
		return Tenant{}, err
	}
	return t, nil
}

// ErrDuplicateSlug indicates a tenant slug collision at provisioning.
var ErrDuplicateSlug = errors.New("tenant slug already taken")

var _ Repository = (*PGRepository)(nil)
