package surveys

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulsecheck-io/pulsecheck/internal/platform/db"
	"github.com/pulsecheck-io/pulsecheck/internal/shared"
	"github.com/pulsecheck-io/pulsecheck/internal/tenancy"
)

// Repository defines persistence operations for the surveys module.
type Repository interface {
	CreateTemplate(ctx context.Context, scope tenancy.Scope, t Template) (Template, error)
	ListTemplates(ctx context.Context, scope tenancy.Scope, filter TemplateFilter) ([]Template, error)
	GetTemplate(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (Template, error)
	UpdateTemplate(ctx context.Context, scope tenancy.Scope, t Template) error
	DeactivateSiblingTemplates(ctx context.Context, scope tenancy.Scope, exceptID uuid.UUID, eventType, language string) error

	CreateSession(ctx context.Context, scope tenancy.Scope, s Session) (Session, error)
	CreateGenerated(ctx context.Context, scope tenancy.Scope, t Template, s Session) (Template, Session, error)
	GetSession(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (Session, error)
	UpdateSession(ctx context.Context, scope tenancy.Scope, s Session) error
	IncrementReminder(ctx context.Context, scope tenancy.Scope, id uuid.UUID) error
	ActiveSessionByPhone(ctx context.Context, phone string) (Session, error)
	SessionByID(ctx context.Context, id uuid.UUID) (Session, error)

	UpsertResponse(ctx context.Context, scope tenancy.Scope, resp Response) error
	ListResponses(ctx context.Context, scope tenancy.Scope, sessionID uuid.UUID) ([]Response, error)
	ResponsesBySession(ctx context.Context, sessionID uuid.UUID) ([]Response, error)

	UpsertOutcome(ctx context.Context, scope tenancy.Scope, o Outcome) error
	GetOutcome(ctx context.Context, scope tenancy.Scope, sessionID uuid.UUID) (Outcome, error)
}

type repo struct {
	db *pgxpool.Pool
}

// NewRepository creates a new surveys repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repo{db: db}
}

const templateColumns = `id, tenant_id, name, event_type, language, version, schema_json, created_by, is_active, channel, flow_id, flow_status, published_at, validation_errors, created_at, updated_at`

func scanTemplate(row pgx.Row) (Template, error) {
	var t Template
	err := row.Scan(&t.ID, &t.TenantID, &t.Name, &t.EventType, &t.Language, &t.Version, &t.SchemaJSON,
		&t.CreatedBy, &t.IsActive, &t.Channel, &t.FlowID, &t.FlowStatus, &t.PublishedAt, &t.ValidationErrors,
		&t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func prepTemplate(scope tenancy.Scope, t Template) Template {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.TenantID = scope.StampTenant(t.TenantID)
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	return t
}

func insertTemplate(ctx context.Context, q execer, t Template) error {
	table := tenancy.MustScopedKind("survey_templates")
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`, table, templateColumns)
	_, err := q.Exec(ctx, query, t.ID, t.TenantID, t.Name, t.EventType, t.Language, t.Version, t.SchemaJSON,
		t.CreatedBy, t.IsActive, t.Channel, t.FlowID, t.FlowStatus, t.PublishedAt, t.ValidationErrors,
		t.CreatedAt, t.UpdatedAt)
	return err
}

func (r *repo) CreateTemplate(ctx context.Context, scope tenancy.Scope, t Template) (Template, error) {
	t = prepTemplate(scope, t)
	if err := insertTemplate(ctx, r.db, t); err != nil {
		return Template{}, err
	}
	return t, nil
}

func (r *repo) ListTemplates(ctx context.Context, scope tenancy.Scope, filter TemplateFilter) ([]Template, error) {
	table := tenancy.MustScopedKind("survey_templates")
	cond, arg := scope.Condition(1)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s`, templateColumns, table, cond)
	args := []any{arg}

	if filter.EventType != "" {
		args = append(args, filter.EventType)
		query += fmt.Sprintf(` AND event_type = $%d`, len(args))
	}
	if filter.Language != "" {
		args = append(args, filter.Language)
		query += fmt.Sprintf(` AND language = $%d`, len(args))
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repo) GetTemplate(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (Template, error) {
	table := tenancy.MustScopedKind("survey_templates")

	if scope.IsBypass() {
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, templateColumns, table)
		t, err := scanTemplate(r.db.QueryRow(ctx, query, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Template{}, shared.ErrNotFound
			}
			return Template{}, err
		}
		if err := scope.CheckRow(t.TenantID); err != nil {
			return Template{}, err
		}
		return t, nil
	}

	cond, arg := scope.Condition(2)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND %s`, templateColumns, table, cond)
	t, err := scanTemplate(r.db.QueryRow(ctx, query, id, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Template{}, shared.ErrNotFound
		}
		return Template{}, err
	}
	return t, nil
}

func (r *repo) UpdateTemplate(ctx context.Context, scope tenancy.Scope, t Template) error {
	table := tenancy.MustScopedKind("survey_templates")
	cond, arg := scope.Condition(10)
	query := fmt.Sprintf(`UPDATE %s SET name = $2, schema_json = $3, is_active = $4, flow_id = $5,
		flow_status = $6, published_at = $7, validation_errors = $8, updated_at = $9
		WHERE id = $1 AND %s`, table, cond)
	tag, err := r.db.Exec(ctx, query, t.ID, t.Name, t.SchemaJSON, t.IsActive, t.FlowID,
		t.FlowStatus, t.PublishedAt, t.ValidationErrors, time.Now().UTC(), arg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repo) DeactivateSiblingTemplates(ctx context.Context, scope tenancy.Scope, exceptID uuid.UUID, eventType, language string) error {
	table := tenancy.MustScopedKind("survey_templates")
	cond, arg := scope.Condition(4)
	query := fmt.Sprintf(`UPDATE %s SET is_active = FALSE, updated_at = NOW()
		WHERE id <> $1 AND event_type = $2 AND language = $3 AND is_active AND %s`, table, cond)
	_, err := r.db.Exec(ctx, query, exceptID, eventType, language, arg)
	return err
}

const sessionColumns = `id, tenant_id, event_id, template_id, recipient_phone, channel, status, sent_at, completed_at, last_interaction_at, reminder_count, created_at`

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.TenantID, &s.EventID, &s.TemplateID, &s.RecipientPhone, &s.Channel,
		&s.Status, &s.SentAt, &s.CompletedAt, &s.LastInteractionAt, &s.ReminderCount, &s.CreatedAt)
	return s, err
}

func prepSession(scope tenancy.Scope, s Session) Session {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.TenantID = scope.StampTenant(s.TenantID)
	s.CreatedAt = time.Now().UTC()
	return s
}

func insertSession(ctx context.Context, q execer, s Session) error {
	table := tenancy.MustScopedKind("survey_sessions")
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`, table, sessionColumns)
	_, err := q.Exec(ctx, query, s.ID, s.TenantID, s.EventID, s.TemplateID, s.RecipientPhone, s.Channel,
		s.Status, s.SentAt, s.CompletedAt, s.LastInteractionAt, s.ReminderCount, s.CreatedAt)
	return err
}

func (r *repo) CreateSession(ctx context.Context, scope tenancy.Scope, s Session) (Session, error) {
	s = prepSession(scope, s)
	if err := insertSession(ctx, r.db, s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// CreateGenerated persists a generated template together with its session in
// one transaction; a session must never exist without its template.
func (r *repo) CreateGenerated(ctx context.Context, scope tenancy.Scope, t Template, s Session) (Template, Session, error) {
	t = prepTemplate(scope, t)
	s.TemplateID = t.ID
	s = prepSession(scope, s)

	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := insertTemplate(ctx, tx, t); err != nil {
			return err
		}
		return insertSession(ctx, tx, s)
	})
	if err != nil {
		return Template{}, Session{}, err
	}
	return t, s, nil
}

func (r *repo) GetSession(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (Session, error) {
	table := tenancy.MustScopedKind("survey_sessions")

	if scope.IsBypass() {
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, sessionColumns, table)
		s, err := scanSession(r.db.QueryRow(ctx, query, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Session{}, shared.ErrNotFound
			}
			return Session{}, err
		}
		if err := scope.CheckRow(s.TenantID); err != nil {
			return Session{}, err
		}
		return s, nil
	}

	cond, arg := scope.Condition(2)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 AND %s`, sessionColumns, table, cond)
	s, err := scanSession(r.db.QueryRow(ctx, query, id, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, shared.ErrNotFound
		}
		return Session{}, err
	}
	return s, nil
}

func (r *repo) UpdateSession(ctx context.Context, scope tenancy.Scope, s Session) error {
	table := tenancy.MustScopedKind("survey_sessions")
	cond, arg := scope.Condition(7)
	query := fmt.Sprintf(`UPDATE %s SET status = $2, sent_at = $3, completed_at = $4, last_interaction_at = $5,
		reminder_count = $6 WHERE id = $1 AND %s`, table, cond)
	tag, err := r.db.Exec(ctx, query, s.ID, s.Status, s.SentAt, s.CompletedAt, s.LastInteractionAt, s.ReminderCount, arg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repo) IncrementReminder(ctx context.Context, scope tenancy.Scope, id uuid.UUID) error {
	table := tenancy.MustScopedKind("survey_sessions")
	cond, arg := scope.Condition(2)
	query := fmt.Sprintf(`UPDATE %s SET reminder_count = reminder_count + 1
		WHERE id = $1 AND %s AND status IN ('pending','sent','in_progress')`, table, cond)
	tag, err := r.db.Exec(ctx, query, id, arg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ActiveSessionByPhone is the one deliberately cross-tenant read: the
// messaging platform only knows the recipient's phone number, so the lookup
// cannot carry a tenant id. The response includes the session's tenant id,
// which the automation must echo back on every subsequent operation.
func (r *repo) ActiveSessionByPhone(ctx context.Context, phone string) (Session, error) {
	table := tenancy.MustScopedKind("survey_sessions")
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE recipient_phone = $1
		AND status IN ('pending','sent','in_progress') ORDER BY created_at DESC LIMIT 1`, sessionColumns, table)
	s, err := scanSession(r.db.QueryRow(ctx, query, phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, shared.ErrNotFound
		}
		return Session{}, err
	}
	return s, nil
}

// SessionByID fetches a session by its opaque identifier without a tenant
// restriction. Reserved for /internal reads where the session id itself is
// the capability handed out by ActiveSessionByPhone.
func (r *repo) SessionByID(ctx context.Context, id uuid.UUID) (Session, error) {
	table := tenancy.MustScopedKind("survey_sessions")
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, sessionColumns, table)
	s, err := scanSession(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, shared.ErrNotFound
		}
		return Session{}, err
	}
	return s, nil
}

func (r *repo) UpsertResponse(ctx context.Context, scope tenancy.Scope, resp Response) error {
	if resp.ID == uuid.Nil {
		resp.ID = uuid.New()
	}
	resp.TenantID = scope.StampTenant(resp.TenantID)

	table := tenancy.MustScopedKind("survey_responses")
	query := fmt.Sprintf(`INSERT INTO %s (id, tenant_id, session_id, question_id, answer_json, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (session_id, question_id) DO UPDATE SET answer_json = EXCLUDED.answer_json`, table)
	_, err := r.db.Exec(ctx, query, resp.ID, resp.TenantID, resp.SessionID, resp.QuestionID, resp.AnswerJSON, time.Now().UTC())
	return err
}

func (r *repo) ListResponses(ctx context.Context, scope tenancy.Scope, sessionID uuid.UUID) ([]Response, error) {
	table := tenancy.MustScopedKind("survey_responses")
	cond, arg := scope.Condition(2)
	query := fmt.Sprintf(`SELECT id, tenant_id, session_id, question_id, answer_json, created_at
		FROM %s WHERE session_id = $1 AND %s ORDER BY question_id`, table, cond)
	return r.queryResponses(ctx, query, sessionID, arg)
}

// ResponsesBySession returns a session's responses without a tenant
// restriction; see SessionByID for when that is acceptable.
func (r *repo) ResponsesBySession(ctx context.Context, sessionID uuid.UUID) ([]Response, error) {
	table := tenancy.MustScopedKind("survey_responses")
	query := fmt.Sprintf(`SELECT id, tenant_id, session_id, question_id, answer_json, created_at
		FROM %s WHERE session_id = $1 ORDER BY question_id`, table)
	return r.queryResponses(ctx, query, sessionID)
}

func (r *repo) queryResponses(ctx context.Context, query string, args ...any) ([]Response, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Response
	for rows.Next() {
		var resp Response
		if err := rows.Scan(&resp.ID, &resp.TenantID, &resp.SessionID, &resp.QuestionID, &resp.AnswerJSON, &resp.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, rows.Err()
}

func (r *repo) UpsertOutcome(ctx context.Context, scope tenancy.Scope, o Outcome) error {
	o.TenantID = scope.StampTenant(o.TenantID)
	table := tenancy.MustScopedKind("survey_outcomes")
	query := fmt.Sprintf(`INSERT INTO %s (session_id, tenant_id, confirmation_status, satisfaction_score, sentiment, computed_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (session_id) DO UPDATE SET confirmation_status = EXCLUDED.confirmation_status,
			satisfaction_score = EXCLUDED.satisfaction_score, sentiment = EXCLUDED.sentiment,
			computed_at = EXCLUDED.computed_at`, table)
	_, err := r.db.Exec(ctx, query, o.SessionID, o.TenantID, o.ConfirmationStatus, o.SatisfactionScore, o.Sentiment, time.Now().UTC())
	return err
}

func (r *repo) GetOutcome(ctx context.Context, scope tenancy.Scope, sessionID uuid.UUID) (Outcome, error) {
	table := tenancy.MustScopedKind("survey_outcomes")
	const columns = "session_id, tenant_id, confirmation_status, satisfaction_score, sentiment, computed_at"

	if scope.IsBypass() {
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE session_id = $1`, columns, table)
		o, err := scanOutcome(r.db.QueryRow(ctx, query, sessionID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Outcome{}, shared.ErrNotFound
			}
			return Outcome{}, err
		}
		if err := scope.CheckRow(o.TenantID); err != nil {
			return Outcome{}, err
		}
		return o, nil
	}

	cond, arg := scope.Condition(2)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE session_id = $1 AND %s`, columns, table, cond)
	o, err := scanOutcome(r.db.QueryRow(ctx, query, sessionID, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Outcome{}, shared.ErrNotFound
		}
		return Outcome{}, err
	}
	return o, nil
}

func scanOutcome(row pgx.Row) (Outcome, error) {
	var o Outcome
	err := row.Scan(&o.SessionID, &o.TenantID, &o.ConfirmationStatus, &o.SatisfactionScore, &o.Sentiment, &o.ComputedAt)
	return o, err
}
