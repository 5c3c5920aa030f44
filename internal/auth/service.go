package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/pulsecheck-io/pulsecheck/internal/shared"
	"github.com/pulsecheck-io/pulsecheck/internal/tenancy"
)

// Service wraps authentication business rules.
type Service struct {
	repo    Repository
	tenants tenancy.Repository
}

// NewService constructs a new Service.
func NewService(repo Repository, tenants tenancy.Repository) *Service {
	return &Service{repo: repo, tenants: tenants}
}

// Authenticate validates tenant slug plus email/password credentials. Every
// failure collapses into shared.ErrInvalidCredentials so responses do not
// reveal whether the tenant, the account, or the password was wrong.
func (s *Service) Authenticate(ctx context.Context, tenantSlug, email, password string) (*User, error) {
	tenant, err := s.tenants.GetBySlug(ctx, tenantSlug)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	user, err := s.repo.FindByEmail(ctx, tenant.ID, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// ClaimsFor builds the session claim set for an authenticated user.
func (s *Service) ClaimsFor(user *User) shared.Claims {
	return shared.Claims{
		Subject:     user.ID.String(),
		TenantID:    user.TenantID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Roles:       user.Roles,
	}
}
