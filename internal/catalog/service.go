package catalog

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pulsecheck-io/pulsecheck/internal/shared"
	"github.com/pulsecheck-io/pulsecheck/internal/tenancy"
)

// Service wraps catalog business rules.
type Service struct {
	repo   Repository
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Create persists a new catalog item under the scope's tenant.
func (s *Service) Create(ctx context.Context, scope tenancy.Scope, actor string, item Item) (Item, error) {
	created, err := s.repo.Create(ctx, scope, item)
	if err != nil {
		return Item{}, err
	}
	s.recordAudit(ctx, created.TenantID, actor, "catalog.create", created.ID)
	return created, nil
}

// List returns the items visible under the scope.
func (s *Service) List(ctx context.Context, scope tenancy.Scope, filter ListFilter) ([]Item, error) {
	return s.repo.List(ctx, scope, filter)
}

// Get returns a single item visible under the scope.
func (s *Service) Get(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (Item, error) {
	return s.repo.Get(ctx, scope, id)
}

// Update applies name/category/active changes to an existing item.
func (s *Service) Update(ctx context.Context, scope tenancy.Scope, actor string, item Item) (Item, error) {
	existing, err := s.repo.Get(ctx, scope, item.ID)
	if err != nil {
		return Item{}, err
	}
	existing.Name = item.Name
	existing.Category = item.Category
	existing.IsActive = item.IsActive
	if err := s.repo.Update(ctx, scope, existing); err != nil {
		return Item{}, err
	}
	s.recordAudit(ctx, existing.TenantID, actor, "catalog.update", existing.ID)
	return existing, nil
}

func (s *Service) recordAudit(ctx context.Context, tenantID uuid.UUID, actor string, action string, entityID uuid.UUID) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		TenantID: tenantID,
		Actor:    actor,
		Action:   action,
		Entity:   "catalog_item",
		EntityID: entityID.String(),
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}
