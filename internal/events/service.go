package events

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pulsecheck-io/pulsecheck/internal/shared"
	"github.com/pulsecheck-io/pulsecheck/internal/tenancy"
)

// ErrProductXorService rejects events referencing both a product and a service.
var ErrProductXorService = errors.New("use productId or serviceId, not both")

// ErrUnknownStatus rejects updates to a status outside the lifecycle.
var ErrUnknownStatus = errors.New("unknown event status")

// Service wraps event business rules.
type Service struct {
	repo   Repository
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Create records a new customer event under the scope's tenant.
func (s *Service) Create(ctx context.Context, scope tenancy.Scope, actor string, ev Event) (Event, error) {
	if ev.ProductID != nil && ev.ServiceID != nil {
		return Event{}, ErrProductXorService
	}
	ev.Status = StatusCreated
	created, err := s.repo.Create(ctx, scope, ev)
	if err != nil {
		return Event{}, err
	}
	s.recordAudit(ctx, created.TenantID, actor, "event.create", created.ID)
	return created, nil
}

// List returns events visible under the scope.
func (s *Service) List(ctx context.Context, scope tenancy.Scope, filter ListFilter) ([]Event, error) {
	return s.repo.List(ctx, scope, filter)
}

// Get returns a single event visible under the scope.
func (s *Service) Get(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (Event, error) {
	return s.repo.Get(ctx, scope, id)
}

// UpdateStatus moves an event through its lifecycle and optionally replaces
// its metadata document.
func (s *Service) UpdateStatus(ctx context.Context, scope tenancy.Scope, actor string, id uuid.UUID, status string, metadata []byte) (Event, error) {
	if status != "" && !validStatus(status) {
		return Event{}, ErrUnknownStatus
	}
	ev, err := s.repo.Get(ctx, scope, id)
	if err != nil {
		return Event{}, err
	}
	if status != "" {
		ev.Status = status
	}
	if len(metadata) > 0 {
		ev.Metadata = metadata
	}
	if err := s.repo.Update(ctx, scope, ev); err != nil {
		return Event{}, err
	}
	s.recordAudit(ctx, ev.TenantID, actor, "event.update", ev.ID)
	return ev, nil
}

func (s *Service) recordAudit(ctx context.Context, tenantID uuid.UUID, actor string, action string, entityID uuid.UUID) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		TenantID: tenantID,
		Actor:    actor,
		Action:   action,
		Entity:   "event",
		EntityID: entityID.String(),
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}
