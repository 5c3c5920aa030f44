package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulsecheck-io/pulsecheck/internal/shared"
	"github.com/pulsecheck-io/pulsecheck/internal/tenancy"
)

// Repository defines persistence operations for catalog items.
type Repository interface {
	Create(ctx context.Context, scope tenancy.Scope, item Item) (Item, error)
	List(ctx context.Context, scope tenancy.Scope, filter ListFilter) ([]Item, error)
	Get(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (Item, error)
	Update(ctx context.Context, scope tenancy.Scope, item Item) error
}

// repo implements Repository using PostgreSQL.
type repo struct {
	db *pgxpool.Pool
}

// NewRepository creates a new catalog repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repo{db: db}
}

const itemColumns = `id, tenant_id, name, category, is_active, created_at`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.TenantID, &it.Name, &it.Category, &it.IsActive, &it.CreatedAt)
	return it, err
}

func (r *repo) Create(ctx context.Context, scope tenancy.Scope, item Item) (Item, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	// Tenant stamping happens here, at persistence time, never earlier.
	item.TenantID = scope.StampTenant(item.TenantID)
	item.CreatedAt = time.Now().UTC()

	table := tenancy.MustScopedKind("catalog_items")
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6)`, table, itemColumns)
	_, err := r.db.Exec(ctx, query, item.ID, item.TenantID, item.Name, item.Category, item.IsActive, item.CreatedAt)
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

func (r *repo) List(ctx context.Context, scope tenancy.Scope, filter ListFilter) ([]Item, error) {
	table := tenancy.MustScopedKind("catalog_items")
	cond, arg := scope.Condition(1)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s`, itemColumns, table, cond)
	args := []any{arg}

	if filter.Category != nil {
		args = append(args, *filter.Category)
		query += fmt.Sprintf(` AND category = $%d`, len(args))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		query += fmt.Sprintf(` AND is_active = $%d`, len(args))
	}
	query += ` ORDER BY name`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *repo) Get(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (Item, error) {
	table := tenancy.MustScopedKind("catalog_items")

	if scope.IsBypass() {
		// Bypass mode: fetch by primary key, then compare the stored tenant
		// against the payload tenant. A mismatch reads as not found.
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, itemColumns, table)
		it, err := scanItem(r.db.QueryRow(ctx, query, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Item{}, shared.ErrNotFound
			}
			return Item{}, err
		}
		if err := scope.CheckRow(it.TenantID); err != nil {
			return Item{}, err
		}
		return it, nil
	}

	cond, arg := scope.Condition(2)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND %s`, itemColumns, table, cond)
	it, err := scanItem(r.db.QueryRow(ctx, query, id, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, shared.ErrNotFound
		}
		return Item{}, err
	}
	return it, nil
}

func (r *repo) Update(ctx context.Context, scope tenancy.Scope, item Item) error {
	table := tenancy.MustScopedKind("catalog_items")
	cond, arg := scope.Condition(5)
	// tenant_id is deliberately absent from the SET list.
	query := fmt.Sprintf(`UPDATE %s SET name = $2, category = $3, is_active = $4 WHERE id = $1 AND %s`, table, cond)
	tag, err := r.db.Exec(ctx, query, item.ID, item.Name, item.Category, item.IsActive, arg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
