package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsecheck-io/pulsecheck/internal/shared"
	"github.com/pulsecheck-io/pulsecheck/internal/tenancy"
	_ "github.com/pulsecheck-io/pulsecheck/testing"
)

type mockEventRepo struct {
	events map[uuid.UUID]Event
}

func newMockEventRepo() *mockEventRepo {
	return &mockEventRepo{events: make(map[uuid.UUID]Event)}
}

func (m *mockEventRepo) Create(ctx context.Context, scope tenancy.Scope, ev Event) (Event, error) {
	ev.ID = uuid.New()
	ev.TenantID = scope.StampTenant(ev.TenantID)
	ev.CreatedAt = time.Now().UTC()
	m.events[ev.ID] = ev
	return ev, nil
}

func (m *mockEventRepo) List(ctx context.Context, scope tenancy.Scope, filter ListFilter) ([]Event, error) {
	var out []Event
	for _, ev := range m.events {
		if ev.TenantID == scope.TenantID() {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *mockEventRepo) Get(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (Event, error) {
	ev, ok := m.events[id]
	if !ok {
		return Event{}, shared.ErrNotFound
	}
	if err := scope.CheckRow(ev.TenantID); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func (m *mockEventRepo) Update(ctx context.Context, scope tenancy.Scope, ev Event) error {
	existing, ok := m.events[ev.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if err := scope.CheckRow(existing.TenantID); err != nil {
		return err
	}
	ev.TenantID = existing.TenantID
	m.events[ev.ID] = ev
	return nil
}

var _ Repository = (*mockEventRepo)(nil)

func TestCreateForcesInitialStatus(t *testing.T) {
	scope := tenancy.Implicit(uuid.New())
	repo := newMockEventRepo()
	service := NewService(repo, nil, nil)

	created, err := service.Create(context.Background(), scope, "u1", Event{
		EventType:    "installation_completed",
		CustomerID:   uuid.New(),
		ContactPhone: "+15550100001",
		Status:       StatusCompleted, // caller-supplied status is ignored
		OccurredAt:   time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, created.Status)
	assert.Equal(t, scope.TenantID(), created.TenantID)
}

func TestCreateRejectsProductAndService(t *testing.T) {
	scope := tenancy.Implicit(uuid.New())
	service := NewService(newMockEventRepo(), nil, nil)

	productID := uuid.New()
	serviceID := uuid.New()
	_, err := service.Create(context.Background(), scope, "u1", Event{
		EventType:    "repair_completed",
		CustomerID:   uuid.New(),
		ContactPhone: "+15550100002",
		ProductID:    &productID,
		ServiceID:    &serviceID,
	})
	assert.ErrorIs(t, err, ErrProductXorService)
}

func TestUpdateStatusLifecycle(t *testing.T) {
	scope := tenancy.Implicit(uuid.New())
	repo := newMockEventRepo()
	service := NewService(repo, nil, nil)

	created, err := service.Create(context.Background(), scope, "u1", Event{
		EventType:    "installation_completed",
		CustomerID:   uuid.New(),
		ContactPhone: "+15550100003",
	})
	require.NoError(t, err)

	updated, err := service.UpdateStatus(context.Background(), scope, "u1", created.ID, StatusSurveySent, []byte(`{"note":"flow sent"}`))
	require.NoError(t, err)
	assert.Equal(t, StatusSurveySent, updated.Status)
	assert.JSONEq(t, `{"note":"flow sent"}`, string(updated.Metadata))

	_, err = service.UpdateStatus(context.Background(), scope, "u1", created.ID, "exploded", nil)
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestGetIsTenantScoped(t *testing.T) {
	repo := newMockEventRepo()
	owner := tenancy.Implicit(uuid.New())
	service := NewService(repo, nil, nil)

	created, err := service.Create(context.Background(), owner, "u1", Event{
		EventType:    "installation_completed",
		CustomerID:   uuid.New(),
		ContactPhone: "+15550100004",
	})
	require.NoError(t, err)

	got, err := service.Get(context.Background(), owner, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	// Another tenant sees absence, not denial.
	_, err = service.Get(context.Background(), tenancy.Implicit(uuid.New()), created.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
