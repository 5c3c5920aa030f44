package surveys

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsecheck-io/pulsecheck/internal/events"
	"github.com/pulsecheck-io/pulsecheck/internal/shared"
	"github.com/pulsecheck-io/pulsecheck/internal/tenancy"
	_ "github.com/pulsecheck-io/pulsecheck/testing"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	templates map[uuid.UUID]Template
	sessions  map[uuid.UUID]Session
	responses map[uuid.UUID][]Response
	outcomes  map[uuid.UUID]Outcome

	updateTemplateError error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		templates: make(map[uuid.UUID]Template),
		sessions:  make(map[uuid.UUID]Session),
		responses: make(map[uuid.UUID][]Response),
		outcomes:  make(map[uuid.UUID]Outcome),
	}
}

func (m *mockRepository) CreateTemplate(ctx context.Context, scope tenancy.Scope, t Template) (Template, error) {
	t.ID = uuid.New()
	t.TenantID = scope.StampTenant(t.TenantID)
	t.CreatedAt = time.Now().UTC()
	m.templates[t.ID] = t
	return t, nil
}

func (m *mockRepository) ListTemplates(ctx context.Context, scope tenancy.Scope, filter TemplateFilter) ([]Template, error) {
	var out []Template
	for _, t := range m.templates {
		if t.TenantID != scope.TenantID() {
			continue
		}
		if filter.EventType != "" && t.EventType != filter.EventType {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *mockRepository) GetTemplate(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (Template, error) {
	t, ok := m.templates[id]
	if !ok {
		return Template{}, shared.ErrNotFound
	}
	if err := scope.CheckRow(t.TenantID); err != nil {
		return Template{}, err
	}
	return t, nil
}

func (m *mockRepository) UpdateTemplate(ctx context.Context, scope tenancy.Scope, t Template) error {
	if m.updateTemplateError != nil {
		return m.updateTemplateError
	}
	existing, ok := m.templates[t.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if err := scope.CheckRow(existing.TenantID); err != nil {
		return err
	}
	// tenant_id is never part of an update.
	t.TenantID = existing.TenantID
	m.templates[t.ID] = t
	return nil
}

func (m *mockRepository) DeactivateSiblingTemplates(ctx context.Context, scope tenancy.Scope, exceptID uuid.UUID, eventType, language string) error {
	for id, t := range m.templates {
		if id == exceptID || t.TenantID != scope.TenantID() {
			continue
		}
		if t.EventType == eventType && t.Language == language {
			t.IsActive = false
			m.templates[id] = t
		}
	}
	return nil
}

func (m *mockRepository) CreateSession(ctx context.Context, scope tenancy.Scope, s Session) (Session, error) {
	s.ID = uuid.New()
	s.TenantID = scope.StampTenant(s.TenantID)
	s.CreatedAt = time.Now().UTC()
	m.sessions[s.ID] = s
	return s, nil
}

func (m *mockRepository) CreateGenerated(ctx context.Context, scope tenancy.Scope, t Template, s Session) (Template, Session, error) {
	t, err := m.CreateTemplate(ctx, scope, t)
	if err != nil {
		return Template{}, Session{}, err
	}
	s.TemplateID = t.ID
	s, err = m.CreateSession(ctx, scope, s)
	if err != nil {
		return Template{}, Session{}, err
	}
	return t, s, nil
}

func (m *mockRepository) GetSession(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, shared.ErrNotFound
	}
	if err := scope.CheckRow(s.TenantID); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (m *mockRepository) UpdateSession(ctx context.Context, scope tenancy.Scope, s Session) error {
	existing, ok := m.sessions[s.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if err := scope.CheckRow(existing.TenantID); err != nil {
		return err
	}
	s.TenantID = existing.TenantID
	m.sessions[s.ID] = s
	return nil
}

func (m *mockRepository) IncrementReminder(ctx context.Context, scope tenancy.Scope, id uuid.UUID) error {
	s, ok := m.sessions[id]
	if !ok {
		return shared.ErrNotFound
	}
	if err := scope.CheckRow(s.TenantID); err != nil {
		return err
	}
	switch s.Status {
	case SessionPending, SessionSent, SessionInProgress:
		s.ReminderCount++
		m.sessions[id] = s
		return nil
	default:
		return shared.ErrNotFound
	}
}

func (m *mockRepository) ActiveSessionByPhone(ctx context.Context, phone string) (Session, error) {
	for _, s := range m.sessions {
		if s.RecipientPhone == phone && (s.Status == SessionPending || s.Status == SessionSent || s.Status == SessionInProgress) {
			return s, nil
		}
	}
	return Session{}, shared.ErrNotFound
}

func (m *mockRepository) SessionByID(ctx context.Context, id uuid.UUID) (Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, shared.ErrNotFound
	}
	return s, nil
}

func (m *mockRepository) UpsertResponse(ctx context.Context, scope tenancy.Scope, resp Response) error {
	list := m.responses[resp.SessionID]
	for i, existing := range list {
		if existing.QuestionID == resp.QuestionID {
			list[i].AnswerJSON = resp.AnswerJSON
			m.responses[resp.SessionID] = list
			return nil
		}
	}
	resp.ID = uuid.New()
	resp.TenantID = scope.StampTenant(resp.TenantID)
	resp.CreatedAt = time.Now().UTC()
	m.responses[resp.SessionID] = append(list, resp)
	return nil
}

func (m *mockRepository) ListResponses(ctx context.Context, scope tenancy.Scope, sessionID uuid.UUID) ([]Response, error) {
	var out []Response
	for _, r := range m.responses[sessionID] {
		if r.TenantID == scope.TenantID() {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRepository) ResponsesBySession(ctx context.Context, sessionID uuid.UUID) ([]Response, error) {
	return m.responses[sessionID], nil
}

func (m *mockRepository) UpsertOutcome(ctx context.Context, scope tenancy.Scope, o Outcome) error {
	o.TenantID = scope.StampTenant(o.TenantID)
	o.ComputedAt = time.Now().UTC()
	m.outcomes[o.SessionID] = o
	return nil
}

func (m *mockRepository) GetOutcome(ctx context.Context, scope tenancy.Scope, sessionID uuid.UUID) (Outcome, error) {
	o, ok := m.outcomes[sessionID]
	if !ok {
		return Outcome{}, shared.ErrNotFound
	}
	if err := scope.CheckRow(o.TenantID); err != nil {
		return Outcome{}, err
	}
	return o, nil
}

// ============================================================================
// STUB COLLABORATORS
// ============================================================================

type stubEventSource struct {
	events map[uuid.UUID]events.Event
}

func (s *stubEventSource) Get(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (events.Event, error) {
	ev, ok := s.events[id]
	if !ok {
		return events.Event{}, shared.ErrNotFound
	}
	if err := scope.CheckRow(ev.TenantID); err != nil {
		return events.Event{}, err
	}
	return ev, nil
}

type stubFlows struct {
	createdFlowID string
	uploadResult  UploadResult
	uploadErr     error
	publishErr    error

	createCalls  int
	uploadCalls  int
	publishCalls int
}

func (s *stubFlows) CreateFlow(ctx context.Context, name string, categories []string) (string, error) {
	s.createCalls++
	return s.createdFlowID, nil
}

func (s *stubFlows) UploadFlowJSON(ctx context.Context, flowID string, flowJSON json.RawMessage) (UploadResult, error) {
	s.uploadCalls++
	return s.uploadResult, s.uploadErr
}

func (s *stubFlows) PublishFlow(ctx context.Context, flowID string) error {
	s.publishCalls++
	return s.publishErr
}

type stubReminders struct {
	scheduled []uuid.UUID
}

func (s *stubReminders) ScheduleReminder(ctx context.Context, sessionID, tenantID uuid.UUID) error {
	s.scheduled = append(s.scheduled, sessionID)
	return nil
}

// ============================================================================
// AUTOMATION OPERATIONS
// ============================================================================

func TestGeneratedCreatesTemplateAndSession(t *testing.T) {
	tenantID := uuid.New()
	eventID := uuid.New()
	repo := newMockRepository()
	eventSrc := &stubEventSource{events: map[uuid.UUID]events.Event{
		eventID: {ID: eventID, TenantID: tenantID, EventType: "installation_completed", ContactPhone: "+15550100001"},
	}}
	reminders := &stubReminders{}
	service := NewService(repo, eventSrc, nil, reminders, nil, nil)

	result, err := service.Generated(context.Background(), GenerateRequest{
		TenantID:   tenantID,
		EventID:    eventID,
		SchemaJSON: json.RawMessage(`{"version":"5.0"}`),
	})
	require.NoError(t, err)

	template := repo.templates[result.TemplateID]
	assert.Equal(t, tenantID, template.TenantID)
	assert.Equal(t, "installation_completed", template.EventType)
	assert.Equal(t, "en", template.Language)
	assert.Equal(t, "ai", template.CreatedBy)

	session := repo.sessions[result.SessionID]
	assert.Equal(t, tenantID, session.TenantID)
	assert.Equal(t, eventID, session.EventID)
	assert.Equal(t, "+15550100001", session.RecipientPhone)
	assert.Equal(t, SessionPending, session.Status)

	require.Len(t, reminders.scheduled, 1)
	assert.Equal(t, result.SessionID, reminders.scheduled[0])
}

func TestGeneratedTenantMismatchReadsAsNotFound(t *testing.T) {
	eventID := uuid.New()
	repo := newMockRepository()
	eventSrc := &stubEventSource{events: map[uuid.UUID]events.Event{
		eventID: {ID: eventID, TenantID: uuid.New(), EventType: "repair_completed", ContactPhone: "+15550100002"},
	}}
	service := NewService(repo, eventSrc, nil, nil, nil, nil)

	// The payload names a different tenant than the one owning the event.
	_, err := service.Generated(context.Background(), GenerateRequest{
		TenantID:   uuid.New(),
		EventID:    eventID,
		SchemaJSON: json.RawMessage(`{}`),
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Empty(t, repo.templates)
	assert.Empty(t, repo.sessions)
}

func TestAnswerRecordsResponseAndAdvancesSession(t *testing.T) {
	tenantID := uuid.New()
	repo := newMockRepository()
	session, err := repo.CreateSession(context.Background(), tenancy.Bypass(tenantID), Session{
		Status: SessionPending, RecipientPhone: "+15550100003",
	})
	require.NoError(t, err)
	service := NewService(repo, &stubEventSource{}, nil, nil, nil, nil)

	err = service.Answer(context.Background(), AnswerRequest{
		TenantID:   tenantID,
		SessionID:  session.ID,
		QuestionID: "q1",
		AnswerJSON: json.RawMessage(`{"value":"yes"}`),
	})
	require.NoError(t, err)

	updated := repo.sessions[session.ID]
	assert.Equal(t, SessionInProgress, updated.Status)
	assert.NotNil(t, updated.LastInteractionAt)
	require.Len(t, repo.responses[session.ID], 1)
}

func TestAnswerUpsertsSameQuestion(t *testing.T) {
	tenantID := uuid.New()
	repo := newMockRepository()
	session, err := repo.CreateSession(context.Background(), tenancy.Bypass(tenantID), Session{Status: SessionPending})
	require.NoError(t, err)
	service := NewService(repo, &stubEventSource{}, nil, nil, nil, nil)

	for _, answer := range []string{`{"value":"no"}`, `{"value":"yes"}`} {
		require.NoError(t, service.Answer(context.Background(), AnswerRequest{
			TenantID:   tenantID,
			SessionID:  session.ID,
			QuestionID: "q1",
			AnswerJSON: json.RawMessage(answer),
		}))
	}

	responses := repo.responses[session.ID]
	require.Len(t, responses, 1)
	assert.JSONEq(t, `{"value":"yes"}`, string(responses[0].AnswerJSON))
}

func TestAnswerTenantMismatch(t *testing.T) {
	repo := newMockRepository()
	session, err := repo.CreateSession(context.Background(), tenancy.Bypass(uuid.New()), Session{Status: SessionPending})
	require.NoError(t, err)
	service := NewService(repo, &stubEventSource{}, nil, nil, nil, nil)

	err = service.Answer(context.Background(), AnswerRequest{
		TenantID:   uuid.New(),
		SessionID:  session.ID,
		QuestionID: "q1",
		AnswerJSON: json.RawMessage(`{"value":"yes"}`),
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCompleteComputesOutcome(t *testing.T) {
	cases := []struct {
		name         string
		answers      map[string]string
		confirmation string
		rating       *float64
	}{
		{
			name:         "yes with numeric rating",
			answers:      map[string]string{"q1": `{"value":"yes"}`, "rating": `{"value":4.5}`},
			confirmation: ConfirmationConfirmed,
			rating:       floatPtr(4.5),
		},
		{
			name:         "boolean true",
			answers:      map[string]string{"q1": `{"value":true}`},
			confirmation: ConfirmationConfirmed,
		},
		{
			name:         "no answer",
			answers:      map[string]string{"q1": `{"value":"no"}`},
			confirmation: ConfirmationNotConfirmed,
		},
		{
			name:         "boolean false",
			answers:      map[string]string{"q1": `{"value":false}`},
			confirmation: ConfirmationNotConfirmed,
		},
		{
			name:         "mixed-case yes",
			answers:      map[string]string{"q1": `{"value":"yES"}`},
			confirmation: ConfirmationConfirmed,
		},
		{
			name:         "mixed-case no",
			answers:      map[string]string{"q1": `{"value":"nO"}`},
			confirmation: ConfirmationNotConfirmed,
		},
		{
			name:         "missing q1 is partial",
			answers:      map[string]string{"rating": `{"value":"3"}`},
			confirmation: ConfirmationPartial,
			rating:       floatPtr(3),
		},
		{
			name:         "unparseable q1 is partial",
			answers:      map[string]string{"q1": `{"value":{"odd":"shape"}}`},
			confirmation: ConfirmationPartial,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tenantID := uuid.New()
			repo := newMockRepository()
			session, err := repo.CreateSession(context.Background(), tenancy.Bypass(tenantID), Session{Status: SessionInProgress})
			require.NoError(t, err)
			service := NewService(repo, &stubEventSource{}, nil, nil, nil, nil)

			for questionID, answer := range tc.answers {
				require.NoError(t, service.Answer(context.Background(), AnswerRequest{
					TenantID:   tenantID,
					SessionID:  session.ID,
					QuestionID: questionID,
					AnswerJSON: json.RawMessage(answer),
				}))
			}

			result, err := service.Complete(context.Background(), tenantID, session.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.confirmation, result.Confirmation)
			if tc.rating == nil {
				assert.Nil(t, result.Rating)
			} else {
				require.NotNil(t, result.Rating)
				assert.InDelta(t, *tc.rating, *result.Rating, 0.001)
			}

			updated := repo.sessions[session.ID]
			assert.Equal(t, SessionCompleted, updated.Status)
			assert.NotNil(t, updated.CompletedAt)

			outcome := repo.outcomes[session.ID]
			assert.Equal(t, tc.confirmation, outcome.ConfirmationStatus)
		})
	}
}

// ============================================================================
// TEMPLATE RULES
// ============================================================================

func interactiveScope() (tenancy.Scope, uuid.UUID) {
	tenantID := uuid.New()
	return tenancy.Implicit(tenantID), tenantID
}

func TestCreateTemplateDeactivatesSiblings(t *testing.T) {
	scope, tenantID := interactiveScope()
	repo := newMockRepository()
	service := NewService(repo, &stubEventSource{}, nil, nil, nil, nil)

	first, err := service.CreateTemplate(context.Background(), scope, "u1", Template{
		Name: "v1", EventType: "installation_completed", Language: "en",
		SchemaJSON: json.RawMessage(`{}`), IsActive: true,
	})
	require.NoError(t, err)
	assert.Equal(t, tenantID, first.TenantID)

	second, err := service.CreateTemplate(context.Background(), scope, "u1", Template{
		Name: "v2", EventType: "installation_completed", Language: "en",
		SchemaJSON: json.RawMessage(`{}`), IsActive: true,
	})
	require.NoError(t, err)

	assert.False(t, repo.templates[first.ID].IsActive)
	assert.True(t, repo.templates[second.ID].IsActive)
}

func TestUpdateTemplateRefusedOncePublished(t *testing.T) {
	scope, _ := interactiveScope()
	repo := newMockRepository()
	service := NewService(repo, &stubEventSource{}, nil, nil, nil, nil)

	created, err := service.CreateTemplate(context.Background(), scope, "u1", Template{
		Name: "v1", EventType: "repair_completed", SchemaJSON: json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	published := FlowStatusPublished
	stored := repo.templates[created.ID]
	stored.FlowStatus = &published
	repo.templates[created.ID] = stored

	name := "renamed"
	_, err = service.UpdateTemplate(context.Background(), scope, "u1", created.ID, TemplatePatch{Name: &name})
	assert.ErrorIs(t, err, ErrTemplatePublished)
}

func TestPublishTemplatePipeline(t *testing.T) {
	scope, _ := interactiveScope()
	repo := newMockRepository()
	flows := &stubFlows{createdFlowID: "flow-123", uploadResult: UploadResult{OK: true}}
	service := NewService(repo, &stubEventSource{}, flows, nil, nil, nil)

	created, err := service.CreateTemplate(context.Background(), scope, "u1", Template{
		Name: "v1", EventType: "installation_completed", SchemaJSON: json.RawMessage(`{"version":"5.0"}`),
	})
	require.NoError(t, err)

	result, err := service.PublishTemplate(context.Background(), scope, "u1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "flow-123", result.FlowID)
	assert.Equal(t, 1, flows.createCalls)
	assert.Equal(t, 1, flows.uploadCalls)
	assert.Equal(t, 1, flows.publishCalls)

	stored := repo.templates[created.ID]
	require.NotNil(t, stored.FlowStatus)
	assert.Equal(t, FlowStatusPublished, *stored.FlowStatus)
	assert.NotNil(t, stored.PublishedAt)
	require.NotNil(t, stored.FlowID)
	assert.Equal(t, "flow-123", *stored.FlowID)

	// A second publish is refused.
	_, err = service.PublishTemplate(context.Background(), scope, "u1", created.ID)
	assert.ErrorIs(t, err, ErrAlreadyPublished)
}

func TestPublishTemplateValidationFailure(t *testing.T) {
	scope, _ := interactiveScope()
	repo := newMockRepository()
	flows := &stubFlows{
		createdFlowID: "flow-456",
		uploadResult:  UploadResult{OK: false, Errors: json.RawMessage(`[{"message":"missing screen"}]`)},
	}
	service := NewService(repo, &stubEventSource{}, flows, nil, nil, nil)

	created, err := service.CreateTemplate(context.Background(), scope, "u1", Template{
		Name: "broken", EventType: "repair_completed", SchemaJSON: json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	_, err = service.PublishTemplate(context.Background(), scope, "u1", created.ID)
	require.Error(t, err)
	assert.Equal(t, 0, flows.publishCalls)

	stored := repo.templates[created.ID]
	require.NotNil(t, stored.FlowStatus)
	assert.Equal(t, FlowStatusError, *stored.FlowStatus)
	assert.JSONEq(t, `[{"message":"missing screen"}]`, string(stored.ValidationErrors))
}

func TestPublishReusesExistingFlowID(t *testing.T) {
	scope, _ := interactiveScope()
	repo := newMockRepository()
	flows := &stubFlows{createdFlowID: "never-used", uploadResult: UploadResult{OK: true}}
	service := NewService(repo, &stubEventSource{}, flows, nil, nil, nil)

	created, err := service.CreateTemplate(context.Background(), scope, "u1", Template{
		Name: "v1", EventType: "installation_completed", SchemaJSON: json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	existingFlow := "flow-existing"
	stored := repo.templates[created.ID]
	stored.FlowID = &existingFlow
	repo.templates[created.ID] = stored

	result, err := service.PublishTemplate(context.Background(), scope, "u1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "flow-existing", result.FlowID)
	assert.Equal(t, 0, flows.createCalls)
}

// ============================================================================
// REMINDERS AND LOOKUPS
// ============================================================================

func TestRemindSessionGoneIsNoop(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo, &stubEventSource{}, nil, nil, nil, nil)

	// Session completed or deleted before the reminder fired.
	err := service.RemindSession(context.Background(), uuid.New(), uuid.New())
	assert.NoError(t, err)
}

func TestRemindSessionIncrements(t *testing.T) {
	tenantID := uuid.New()
	repo := newMockRepository()
	session, err := repo.CreateSession(context.Background(), tenancy.Bypass(tenantID), Session{Status: SessionSent})
	require.NoError(t, err)
	service := NewService(repo, &stubEventSource{}, nil, nil, nil, nil)

	require.NoError(t, service.RemindSession(context.Background(), tenantID, session.ID))
	assert.Equal(t, 1, repo.sessions[session.ID].ReminderCount)
}

func TestActiveSessionByPhoneIsPhoneOnly(t *testing.T) {
	repo := newMockRepository()
	tenantID := uuid.New()
	created, err := repo.CreateSession(context.Background(), tenancy.Bypass(tenantID), Session{
		Status: SessionSent, RecipientPhone: "+15550100009",
	})
	require.NoError(t, err)
	service := NewService(repo, &stubEventSource{}, nil, nil, nil, nil)

	found, err := service.ActiveSession(context.Background(), "+15550100009")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	// The caller learns the owning tenant from the response.
	assert.Equal(t, tenantID, found.TenantID)

	_, err = service.ActiveSession(context.Background(), "+10000000000")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestOverviewBundlesSessionWithOutcome(t *testing.T) {
	tenantID := uuid.New()
	repo := newMockRepository()
	scope := tenancy.Bypass(tenantID)
	session, err := repo.CreateSession(context.Background(), scope, Session{Status: SessionInProgress})
	require.NoError(t, err)
	require.NoError(t, repo.UpsertResponse(context.Background(), scope, Response{
		SessionID: session.ID, QuestionID: "q1", AnswerJSON: json.RawMessage(`{"value":"yes"}`),
	}))
	require.NoError(t, repo.UpsertOutcome(context.Background(), scope, Outcome{
		SessionID: session.ID, ConfirmationStatus: ConfirmationConfirmed, SatisfactionScore: floatPtr(4),
	}))
	service := NewService(repo, &stubEventSource{}, nil, nil, nil, nil)

	ov, err := service.Overview(context.Background(), tenancy.Implicit(tenantID), session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, ov.Session.ID)
	require.Len(t, ov.Responses, 1)
	assert.Equal(t, "q1", ov.Responses[0].QuestionID)
	require.NotNil(t, ov.Outcome)
	assert.Equal(t, ConfirmationConfirmed, ov.Outcome.ConfirmationStatus)
	assert.Equal(t, floatPtr(4), ov.Outcome.SatisfactionScore)
}

func TestOverviewBeforeCompletionHasNoOutcome(t *testing.T) {
	tenantID := uuid.New()
	repo := newMockRepository()
	session, err := repo.CreateSession(context.Background(), tenancy.Bypass(tenantID), Session{Status: SessionSent})
	require.NoError(t, err)
	service := NewService(repo, &stubEventSource{}, nil, nil, nil, nil)

	ov, err := service.Overview(context.Background(), tenancy.Implicit(tenantID), session.ID)
	require.NoError(t, err)
	assert.Nil(t, ov.Outcome)
	assert.Empty(t, ov.Responses)
}

func TestOverviewOtherTenantReadsAsNotFound(t *testing.T) {
	repo := newMockRepository()
	session, err := repo.CreateSession(context.Background(), tenancy.Bypass(uuid.New()), Session{Status: SessionSent})
	require.NoError(t, err)
	service := NewService(repo, &stubEventSource{}, nil, nil, nil, nil)

	_, err = service.Overview(context.Background(), tenancy.Implicit(uuid.New()), session.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func floatPtr(f float64) *float64 { return &f }

var _ Repository = (*mockRepository)(nil)
