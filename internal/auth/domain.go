// Package auth implements interactive login and the bearer-token middleware
// that derives the caller's tenant from verified session claims.
package auth

import (
	"time"

	"github.com/google/uuid"
)

// Role names assignable to back-office users.
const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleSupport    = "support"
	RoleNOC        = "noc"
	RoleTechnician = "technician"
)

// AllRoles lists every assignable role.
var AllRoles = []string{RoleAdmin, RoleManager, RoleSupport, RoleNOC, RoleTechnician}

// ValidRole reports whether role is one of the assignable role names.
func ValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User represents a back-office user account. Accounts belong to exactly one
// tenant; the same email may exist under different tenants.
type User struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Email        string
	DisplayName  string
	PasswordHash string
	Roles        []string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
