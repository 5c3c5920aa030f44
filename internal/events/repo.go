package events

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

// Repository defines persistence operations for events.
type Repository interface {
	Create(ctx context.Context, scope tenancy.Scope, ev Event) (Event, error)
	List(ctx context.Context, scope tenancy.Scope, filter ListFilter) ([]Event, error)
	Get(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (Event, error)
	Update(ctx context.Context, scope tenancy.Scope, ev Event) error
}

type repo struct {
	db *pgxpool.Pool
}

// NewRepository creates a new events repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repo{db: db}
}

const eventColumns = `id, tenant_id, event_type, customer_id, contact_phone, product_id, service_id, status, metadata, occurred_at, created_at`

func scanEvent(row pgx.Row) (Event, error) {
	var ev Event
	err := row.Scan(&ev.ID, &ev.TenantID, &ev.EventType, &ev.CustomerID, &ev.ContactPhone,
		&ev.ProductID, &ev.ServiceID, &ev.Status, &ev.Metadata, &ev.OccurredAt, &ev.CreatedAt)
	return ev, err
}

func (r *repo) Create(ctx context.Context, scope tenancy.Scope, ev Event) (Event, error) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	ev.TenantID = scope.StampTenant(ev.TenantID)
	ev.CreatedAt = time.Now().UTC()
	if len(ev.Metadata) == 0 {
		ev.Metadata = []byte(`{}`)
	}

	table := tenancy.MustScopedKind("events")
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`, table, eventColumns)
	_, err := r.db.Exec(ctx, query, ev.ID, ev.TenantID, ev.EventType, ev.CustomerID, ev.ContactPhone,
		ev.ProductID, ev.ServiceID, ev.Status, ev.Metadata, ev.OccurredAt, ev.CreatedAt)
	if err != nil {
		return Event{}, err
	}
	return ev, nil
}

func (r *repo) List(ctx context.Context, scope tenancy.Scope, filter ListFilter) ([]Event, error) {
	table := tenancy.MustScopedKind("events")
	cond, arg := scope.Condition(1)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s`, eventColumns, table, cond)
	args := []any{arg}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.EventType != "" {
		args = append(args, filter.EventType)
		query += fmt.Sprintf(` AND event_type = $%d`, len(args))
	}
	if filter.ProductID != nil {
		args = append(args, *filter.ProductID)
		query += fmt.Sprintf(` AND product_id = $%d`, len(args))
	}
	if filter.ServiceID != nil {
		args = append(args, *filter.ServiceID)
		query += fmt.Sprintf(` AND service_id = $%d`, len(args))
	}
	query += ` ORDER BY occurred_at DESC LIMIT 200`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *repo) Get(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (Event, error) {
	table := tenancy.MustScopedKind("events")

	if scope.IsBypass() {
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, eventColumns, table)
		ev, err := scanEvent(r.db.QueryRow(ctx, query, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Event{}, shared.ErrNotFound
			}
			return Event{}, err
		}
		if err := scope.CheckRow(ev.TenantID); err != nil {
			return Event{}, err
		}
		return ev, nil
	}

	cond, arg := scope.Condition(2)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND %s`, eventColumns, table, cond)
	ev, err := scanEvent(r.db.QueryRow(ctx, query, id, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, shared.ErrNotFound
		}
		return Event{}, err
	}
	return ev, nil
}

func (r *repo) Update(ctx context.Context, scope tenancy.Scope, ev Event) error {
	table := tenancy.MustScopedKind("events")
	cond, arg := scope.Condition(4)
	query := fmt.Sprintf(`UPDATE %s SET status = $2, metadata = $3 WHERE id = $1 AND %s`, table, cond)
	tag, err := r.db.Exec(ctx, query, ev.ID, ev.Status, ev.Metadata, arg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
