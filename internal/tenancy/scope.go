package tenancy

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pulsecheck-io/pulsecheck/internal/shared"
)

// scopedKinds is the explicit registry of persisted kinds that carry a tenant
// identifier. Repositories assert membership before applying the tenant
// filter, so a new scoped table that is not listed here fails loudly instead
// of silently querying unfiltered.
var scopedKinds = map[string]struct{}{
	"users":            {},
	"catalog_items":    {},
	"events":           {},
	"survey_templates": {},
	"survey_sessions":  {},
	"survey_responses": {},
	"survey_outcomes":  {},
}

// MustScopedKind returns table unchanged if it is a registered scoped kind
// and panics otherwise. The panic is a programming error caught in tests.
func MustScopedKind(table string) string {
	if _, ok := scopedKinds[table]; !ok {
		panic(fmt.Sprintf("tenancy: %q is not a registered scoped kind", table))
	}
	return table
}

// Scope selects the access mode tenant-scoped repositories operate under.
//
// An implicit scope (interactive caller) restricts every read to the resolved
// tenant and stamps new rows at persistence time. A bypass scope (automation
// caller) holds a payload-supplied tenant instead and additionally demands an
// explicit per-row comparison via CheckRow: automation trades the automatic
// filter for a mandatory explicit tenant check on every path.
type Scope struct {
	tenantID uuid.UUID
	bypass   bool
}

// Implicit builds the scope for an interactive caller's resolved tenant.
func Implicit(tenantID uuid.UUID) Scope {
	return Scope{tenantID: tenantID}
}

// Bypass builds the scope for an automation caller from the tenant id the
// request payload supplied.
func Bypass(payloadTenantID uuid.UUID) Scope {
	return Scope{tenantID: payloadTenantID, bypass: true}
}

// ScopeFromContext derives the implicit scope for the interactive caller in
// ctx. Automation callers have no resolved tenant and must opt in to Bypass
// explicitly; for them, and for requests with no identity at all, this
// returns shared.ErrInvalidCredentials.
func ScopeFromContext(ctx context.Context) (Scope, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return Scope{}, shared.ErrInvalidCredentials
	}
	tid, ok := id.Tenant()
	if !ok {
		return Scope{}, shared.ErrInvalidCredentials
	}
	return Implicit(tid), nil
}

// TenantID returns the tenant the scope is bound to.
func (s Scope) TenantID() uuid.UUID {
	return s.tenantID
}

// IsBypass reports whether the scope was built from a payload tenant id.
func (s Scope) IsBypass() bool {
	return s.bypass
}

// Condition renders the tenant filter predicate for a registered scoped kind,
// using argPos as the placeholder ordinal. Every read query against a scoped
// kind must include it; the restriction is applied here, centrally, not per
// call site.
func (s Scope) Condition(argPos int) (string, any) {
	return fmt.Sprintf("tenant_id = $%d", argPos), s.tenantID
}

// StampTenant returns the tenant id to persist for a new row. A zero value is
// stamped with the scope's tenant at the moment of persistence; a caller-set
// non-zero value is honored unchanged. Updates never pass through here: a
// tenant id, once set on a row, is never overwritten.
func (s Scope) StampTenant(current uuid.UUID) uuid.UUID {
	if current != uuid.Nil {
		return current
	}
	return s.tenantID
}

// CheckRow compares a fetched row's stored tenant id against the scope's
// tenant. A mismatch yields shared.ErrNotFound so the outcome is
// indistinguishable from a row that does not exist; the stored tenant id is
// never surfaced to the caller.
func (s Scope) CheckRow(rowTenantID uuid.UUID) error {
	if rowTenantID != s.tenantID {
		return shared.ErrNotFound
	}
	return nil
}
