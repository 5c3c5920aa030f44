package tenancy

import (
	"context"

	"github.com/google/uuid"
)

// Identity is the ephemeral per-request caller identity. Interactive callers
// carry a tenant resolved from verified session claims; automation callers
// carry none and are trusted solely by having passed signature verification.
type Identity struct {
	automation bool
	tenantID   uuid.UUID
	subject    string
	roles      []string
}

// UserIdentity builds the identity of an interactive caller.
func UserIdentity(tenantID uuid.UUID, subject string, roles []string) Identity {
	return Identity{tenantID: tenantID, subject: subject, roles: roles}
}

// AutomationIdentity builds the identity of a signed automation caller.
func AutomationIdentity() Identity {
	return Identity{automation: true}
}

// Tenant resolves the acting tenant. It reads the value captured when the
// identity was built, so repeated calls are idempotent and side-effect free.
// Automation callers resolve to none; their handlers must supply the target
// tenant explicitly from the request payload instead.
func (id Identity) Tenant() (uuid.UUID, bool) {
	if id.automation || id.tenantID == uuid.Nil {
		return uuid.Nil, false
	}
	return id.tenantID, true
}

// Subject returns the caller's stable subject identifier, empty for automation.
func (id Identity) Subject() string {
	return id.subject
}

// Roles returns the caller's role claim set.
func (id Identity) Roles() []string {
	return id.roles
}

// IsAutomation reports whether the caller is an automation integration.
func (id Identity) IsAutomation() bool {
	return id.automation
}

type identityContextKey struct{}

// ContextWithIdentity stores the caller identity in context. The identity is
// an explicit value threaded through the call chain, never a process global.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the caller identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}
