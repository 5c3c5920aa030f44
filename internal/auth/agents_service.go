package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pulsecheck-io/pulsecheck/internal/shared"
	"github.com/pulsecheck-io/pulsecheck/internal/tenancy"
)

// ErrInvalidRole rejects an agent role outside AllRoles.
var ErrInvalidRole = errors.New("unknown role")

// ErrEmailTaken rejects an agent email already registered under the tenant.
var ErrEmailTaken = errors.New("email already in use for this tenant")

// NewAgent carries the input for creating an agent account.
type NewAgent struct {
	Email       string
	DisplayName string
	Password    string
	Roles       []string
}

// AgentsService wraps agent account management rules.
type AgentsService struct {
	repo   AgentsRepository
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewAgentsService constructs a new AgentsService.
func NewAgentsService(repo AgentsRepository, audit *shared.AuditLogger, logger *slog.Logger) *AgentsService {
	return &AgentsService{repo: repo, audit: audit, logger: logger}
}

// CreateAgent provisions an active agent account under the scope's tenant.
// Roles are checked against AllRoles and the password is stored as a bcrypt
// hash only.
func (s *AgentsService) CreateAgent(ctx context.Context, scope tenancy.Scope, actor string, input NewAgent) (User, error) {
	if err := validateRoles(input.Roles); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	created, err := s.repo.CreateAgent(ctx, scope, User{
		Email:        input.Email,
		DisplayName:  input.DisplayName,
		PasswordHash: string(hash),
		Roles:        input.Roles,
		IsActive:     true,
	})
	if err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, created.TenantID, actor, "agent.create", created.ID)
	return created, nil
}

// ListAgents returns the agents visible under the scope.
func (s *AgentsService) ListAgents(ctx context.Context, scope tenancy.Scope, filter AgentFilter) ([]User, error) {
	return s.repo.ListAgents(ctx, scope, filter)
}

// GetAgent returns a single agent visible under the scope.
func (s *AgentsService) GetAgent(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (User, error) {
	return s.repo.GetAgent(ctx, scope, id)
}

// UpdateAgent applies display-name, role and active changes to an existing
// agent. Roles are re-validated on every update.
func (s *AgentsService) UpdateAgent(ctx context.Context, scope tenancy.Scope, actor string, u User) (User, error) {
	if err := validateRoles(u.Roles); err != nil {
		return User{}, err
	}
	existing, err := s.repo.GetAgent(ctx, scope, u.ID)
	if err != nil {
		return User{}, err
	}
	existing.DisplayName = u.DisplayName
	existing.Roles = u.Roles
	existing.IsActive = u.IsActive
	if err := s.repo.UpdateAgent(ctx, scope, existing); err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, existing.TenantID, actor, "agent.update", existing.ID)
	return existing, nil
}

// DeactivateAgent soft-deletes an agent by clearing its active flag. The row
// stays behind so past sessions and audit entries keep a referent.
func (s *AgentsService) DeactivateAgent(ctx context.Context, scope tenancy.Scope, actor string, id uuid.UUID) error {
	existing, err := s.repo.GetAgent(ctx, scope, id)
	if err != nil {
		return err
	}
	existing.IsActive = false
	if err := s.repo.UpdateAgent(ctx, scope, existing); err != nil {
		return err
	}
	s.recordAudit(ctx, existing.TenantID, actor, "agent.deactivate", existing.ID)
	return nil
}

func validateRoles(roles []string) error {
	if len(roles) == 0 {
		return ErrInvalidRole
	}
	for _, role := range roles {
		if !ValidRole(role) {
			return ErrInvalidRole
		}
	}
	return nil
}

func (s *AgentsService) recordAudit(ctx context.Context, tenantID uuid.UUID, actor string, action string, entityID uuid.UUID) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		TenantID: tenantID,
		Actor:    actor,
		Action:   action,
		Entity:   "user",
		EntityID: entityID.String(),
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}
