package surveys

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pulsecheck-io/pulsecheck/internal/events"
	"github.com/pulsecheck-io/pulsecheck/internal/shared"
	"github.com/pulsecheck-io/pulsecheck/internal/tenancy"
)

// ErrTemplatePublished rejects edits to an already published template.
var ErrTemplatePublished = errors.New("template already published")

// ErrAlreadyPublished rejects a second publish of the same template.
var ErrAlreadyPublished = errors.New("already published")

// EventSource supplies the event a generated survey follows up on.
type EventSource interface {
	Get(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (events.Event, error)
}

// ReminderScheduler queues a follow-up reminder for a pending session.
type ReminderScheduler interface {
	ScheduleReminder(ctx context.Context, sessionID, tenantID uuid.UUID) error
}

// Service wraps survey business rules for both interactive and automation
// callers.
type Service struct {
	repo      Repository
	eventSrc  EventSource
	flows     FlowPublisher
	reminders ReminderScheduler
	audit     *shared.AuditLogger
	logger    *slog.Logger
}

// NewService constructs a new Service. flows and reminders may be nil in
// deployments without the gateway or the worker.
func NewService(repo Repository, eventSrc EventSource, flows FlowPublisher, reminders ReminderScheduler, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, eventSrc: eventSrc, flows: flows, reminders: reminders, audit: audit, logger: logger}
}

// CreateTemplate persists a new template version for the dashboard. An
// activating create deactivates sibling templates for the same event type and
// language.
func (s *Service) CreateTemplate(ctx context.Context, scope tenancy.Scope, actor string, t Template) (Template, error) {
	if t.Language == "" {
		t.Language = "en"
	}
	if t.CreatedBy == "" {
		t.CreatedBy = actor
	}
	if t.Channel == "" {
		t.Channel = "whatsapp_flow"
	}
	t.Version = 1
	draft := FlowStatusDraft
	t.FlowStatus = &draft

	created, err := s.repo.CreateTemplate(ctx, scope, t)
	if err != nil {
		return Template{}, err
	}
	if created.IsActive {
		if err := s.repo.DeactivateSiblingTemplates(ctx, scope, created.ID, created.EventType, created.Language); err != nil {
			return Template{}, err
		}
	}
	s.recordAudit(ctx, created.TenantID, actor, "survey_template.create", created.ID.String())
	return created, nil
}

// ListTemplates returns the templates visible under the scope.
func (s *Service) ListTemplates(ctx context.Context, scope tenancy.Scope, filter TemplateFilter) ([]Template, error) {
	return s.repo.ListTemplates(ctx, scope, filter)
}

// GetTemplate returns a single template visible under the scope.
func (s *Service) GetTemplate(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (Template, error) {
	return s.repo.GetTemplate(ctx, scope, id)
}

// TemplatePatch carries the editable template fields.
type TemplatePatch struct {
	Name       *string
	SchemaJSON json.RawMessage
	IsActive   *bool
}

// UpdateTemplate edits an unpublished template. Published templates are
// immutable; clone instead.
func (s *Service) UpdateTemplate(ctx context.Context, scope tenancy.Scope, actor string, id uuid.UUID, patch TemplatePatch) (Template, error) {
	t, err := s.repo.GetTemplate(ctx, scope, id)
	if err != nil {
		return Template{}, err
	}
	if t.FlowStatus != nil && *t.FlowStatus == FlowStatusPublished {
		return Template{}, ErrTemplatePublished
	}
	if patch.Name != nil {
		t.Name = *patch.Name
	}
	if len(patch.SchemaJSON) > 0 {
		t.SchemaJSON = patch.SchemaJSON
	}
	if patch.IsActive != nil {
		t.IsActive = *patch.IsActive
		if t.IsActive {
			if err := s.repo.DeactivateSiblingTemplates(ctx, scope, t.ID, t.EventType, t.Language); err != nil {
				return Template{}, err
			}
		}
	}
	if err := s.repo.UpdateTemplate(ctx, scope, t); err != nil {
		return Template{}, err
	}
	s.recordAudit(ctx, t.TenantID, actor, "survey_template.update", t.ID.String())
	return t, nil
}

// PublishResult reports the outcome of the publish pipeline.
type PublishResult struct {
	FlowID      string
	PublishedAt time.Time
}

// PublishTemplate runs the three-step publish pipeline against the messaging
// platform: create the flow if missing, upload the schema (validation
// failures are recorded on the row), then publish.
func (s *Service) PublishTemplate(ctx context.Context, scope tenancy.Scope, actor string, id uuid.UUID) (PublishResult, error) {
	if s.flows == nil {
		return PublishResult{}, errors.New("surveys: flow publisher not configured")
	}
	t, err := s.repo.GetTemplate(ctx, scope, id)
	if err != nil {
		return PublishResult{}, err
	}
	if t.FlowStatus != nil && *t.FlowStatus == FlowStatusPublished {
		return PublishResult{}, ErrAlreadyPublished
	}

	if t.FlowID == nil || *t.FlowID == "" {
		flowID, err := s.flows.CreateFlow(ctx, t.Name, []string{"SURVEY"})
		if err != nil {
			return PublishResult{}, s.markPublishError(ctx, scope, t, err)
		}
		t.FlowID = &flowID
		if err := s.repo.UpdateTemplate(ctx, scope, t); err != nil {
			return PublishResult{}, err
		}
	}

	upload, err := s.flows.UploadFlowJSON(ctx, *t.FlowID, t.SchemaJSON)
	if err != nil {
		return PublishResult{}, s.markPublishError(ctx, scope, t, err)
	}
	if !upload.OK {
		status := FlowStatusError
		t.FlowStatus = &status
		if len(upload.Errors) > 0 {
			t.ValidationErrors = upload.Errors
		} else {
			t.ValidationErrors = []byte(`{"message":"upload failed"}`)
		}
		if err := s.repo.UpdateTemplate(ctx, scope, t); err != nil {
			return PublishResult{}, err
		}
		return PublishResult{}, fmt.Errorf("surveys: flow validation failed")
	}

	t.ValidationErrors = nil
	if err := s.flows.PublishFlow(ctx, *t.FlowID); err != nil {
		return PublishResult{}, s.markPublishError(ctx, scope, t, err)
	}

	now := time.Now().UTC()
	published := FlowStatusPublished
	t.FlowStatus = &published
	t.PublishedAt = &now
	if err := s.repo.UpdateTemplate(ctx, scope, t); err != nil {
		return PublishResult{}, err
	}
	s.recordAudit(ctx, t.TenantID, actor, "survey_template.publish", t.ID.String())
	return PublishResult{FlowID: *t.FlowID, PublishedAt: now}, nil
}

func (s *Service) markPublishError(ctx context.Context, scope tenancy.Scope, t Template, cause error) error {
	status := FlowStatusError
	t.FlowStatus = &status
	detail, _ := json.Marshal(map[string]string{"error": cause.Error()})
	t.ValidationErrors = detail
	if err := s.repo.UpdateTemplate(ctx, scope, t); err != nil && s.logger != nil {
		s.logger.Warn("record publish error", slog.Any("error", err))
	}
	return cause
}

// GenerateRequest is the automation payload creating a template and session
// for an AI-generated survey.
type GenerateRequest struct {
	TenantID   uuid.UUID
	EventID    uuid.UUID
	Language   string
	CreatedBy  string
	SchemaJSON json.RawMessage
}

// GenerateResult carries the identifiers the workflow engine continues with.
type GenerateResult struct {
	TemplateID uuid.UUID
	SessionID  uuid.UUID
}

// Generated persists an AI-generated template and opens a pending session for
// the event's contact. Bypass scope: the event is fetched by primary key and
// its stored tenant compared against the payload tenant; a mismatch reads as
// not found.
func (s *Service) Generated(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	scope := tenancy.Bypass(req.TenantID)

	ev, err := s.eventSrc.Get(ctx, scope, req.EventID)
	if err != nil {
		return GenerateResult{}, err
	}

	language := req.Language
	if language == "" {
		language = "en"
	}
	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = "ai"
	}

	template, session, err := s.repo.CreateGenerated(ctx, scope,
		Template{
			TenantID:   req.TenantID,
			EventType:  ev.EventType,
			Language:   language,
			Version:    1,
			SchemaJSON: req.SchemaJSON,
			CreatedBy:  createdBy,
			Channel:    "whatsapp_flow",
		},
		Session{
			TenantID:       req.TenantID,
			EventID:        ev.ID,
			RecipientPhone: ev.ContactPhone,
			Channel:        "whatsapp",
			Status:         SessionPending,
		})
	if err != nil {
		return GenerateResult{}, err
	}

	if s.reminders != nil {
		if err := s.reminders.ScheduleReminder(ctx, session.ID, session.TenantID); err != nil && s.logger != nil {
			s.logger.Warn("schedule reminder", slog.Any("error", err))
		}
	}

	return GenerateResult{TemplateID: template.ID, SessionID: session.ID}, nil
}

// AnswerRequest is the automation payload recording one answer.
type AnswerRequest struct {
	TenantID   uuid.UUID
	SessionID  uuid.UUID
	QuestionID string
	AnswerJSON json.RawMessage
	AnsweredAt *time.Time
}

// Answer upserts an answer for a session question and keeps the session's
// interaction state current.
func (s *Service) Answer(ctx context.Context, req AnswerRequest) error {
	scope := tenancy.Bypass(req.TenantID)

	session, err := s.repo.GetSession(ctx, scope, req.SessionID)
	if err != nil {
		return err
	}

	if err := s.repo.UpsertResponse(ctx, scope, Response{
		TenantID:   req.TenantID,
		SessionID:  session.ID,
		QuestionID: req.QuestionID,
		AnswerJSON: req.AnswerJSON,
	}); err != nil {
		return err
	}

	at := time.Now().UTC()
	if req.AnsweredAt != nil {
		at = *req.AnsweredAt
	}
	session.LastInteractionAt = &at
	if session.Status == SessionPending {
		session.Status = SessionInProgress
	}
	return s.repo.UpdateSession(ctx, scope, session)
}

// CompleteResult reports the computed outcome of a completed session.
type CompleteResult struct {
	Confirmation string
	Rating       *float64
}

// Complete marks a session completed and computes its outcome from the
// recorded responses.
func (s *Service) Complete(ctx context.Context, tenantID, sessionID uuid.UUID) (CompleteResult, error) {
	scope := tenancy.Bypass(tenantID)

	session, err := s.repo.GetSession(ctx, scope, sessionID)
	if err != nil {
		return CompleteResult{}, err
	}

	now := time.Now().UTC()
	session.Status = SessionCompleted
	session.CompletedAt = &now
	if err := s.repo.UpdateSession(ctx, scope, session); err != nil {
		return CompleteResult{}, err
	}

	responses, err := s.repo.ListResponses(ctx, scope, session.ID)
	if err != nil {
		return CompleteResult{}, err
	}

	confirmation, rating := computeOutcome(responses)
	if err := s.repo.UpsertOutcome(ctx, scope, Outcome{
		SessionID:          session.ID,
		TenantID:           tenantID,
		ConfirmationStatus: confirmation,
		SatisfactionScore:  rating,
	}); err != nil {
		return CompleteResult{}, err
	}
	return CompleteResult{Confirmation: confirmation, Rating: rating}, nil
}

// ActiveSession returns the newest awaiting session for a phone number.
func (s *Service) ActiveSession(ctx context.Context, phone string) (Session, error) {
	return s.repo.ActiveSessionByPhone(ctx, phone)
}

// SessionDetail returns a session by its opaque identifier.
func (s *Service) SessionDetail(ctx context.Context, id uuid.UUID) (Session, error) {
	return s.repo.SessionByID(ctx, id)
}

// SessionResponses returns a session's recorded answers.
func (s *Service) SessionResponses(ctx context.Context, id uuid.UUID) ([]Response, error) {
	return s.repo.ResponsesBySession(ctx, id)
}

// SessionOverview bundles everything the dashboard shows for one session.
// Outcome is nil until the session completes.
type SessionOverview struct {
	Session   Session
	Responses []Response
	Outcome   *Outcome
}

// Overview loads a session together with its answers and computed outcome.
// The three reads are independent, so they run concurrently.
func (s *Service) Overview(ctx context.Context, scope tenancy.Scope, sessionID uuid.UUID) (SessionOverview, error) {
	var ov SessionOverview

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sess, err := s.repo.GetSession(ctx, scope, sessionID)
		if err != nil {
			return err
		}
		ov.Session = sess
		return nil
	})

	g.Go(func() error {
		resps, err := s.repo.ListResponses(ctx, scope, sessionID)
		if err != nil {
			return err
		}
		ov.Responses = resps
		return nil
	})

	g.Go(func() error {
		out, err := s.repo.GetOutcome(ctx, scope, sessionID)
		if errors.Is(err, shared.ErrNotFound) {
			// Session not yet completed.
			return nil
		}
		if err != nil {
			return err
		}
		ov.Outcome = &out
		return nil
	})

	if err := g.Wait(); err != nil {
		return SessionOverview{}, err
	}
	return ov, nil
}

// RemindSession bumps the reminder counter for a session still awaiting
// completion. Invoked by the background worker.
func (s *Service) RemindSession(ctx context.Context, tenantID, sessionID uuid.UUID) error {
	scope := tenancy.Bypass(tenantID)
	err := s.repo.IncrementReminder(ctx, scope, sessionID)
	if errors.Is(err, shared.ErrNotFound) {
		// Completed or expired in the meantime; nothing to remind.
		return nil
	}
	return err
}

// computeOutcome derives the confirmation status and satisfaction rating
// from the answer payloads. Answers are documents like {"value": "yes"},
// {"value": true} or {"value": 4.5}.
func computeOutcome(responses []Response) (string, *float64) {
	confirmation := ConfirmationPartial
	var rating *float64

	for _, r := range responses {
		var answer struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(r.AnswerJSON, &answer); err != nil || len(answer.Value) == 0 {
			continue
		}

		switch r.QuestionID {
		case "q1":
			var asBool bool
			var asString string
			if err := json.Unmarshal(answer.Value, &asBool); err == nil {
				if asBool {
					confirmation = ConfirmationConfirmed
				} else {
					confirmation = ConfirmationNotConfirmed
				}
			} else if err := json.Unmarshal(answer.Value, &asString); err == nil {
				switch {
				case strings.EqualFold(asString, "yes"):
					confirmation = ConfirmationConfirmed
				case strings.EqualFold(asString, "no"):
					confirmation = ConfirmationNotConfirmed
				}
			}
		case "rating":
			var asNumber float64
			var asString string
			if err := json.Unmarshal(answer.Value, &asNumber); err == nil {
				rating = &asNumber
			} else if err := json.Unmarshal(answer.Value, &asString); err == nil {
				if parsed, err := strconv.ParseFloat(asString, 64); err == nil {
					rating = &parsed
				}
			}
		}
	}
	return confirmation, rating
}

func (s *Service) recordAudit(ctx context.Context, tenantID uuid.UUID, actor string, action string, entityID string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		TenantID: tenantID,
		Actor:    actor,
		Action:   action,
		Entity:   "survey_template",
		EntityID: entityID,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}
