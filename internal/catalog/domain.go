// Package catalog manages the tenant-scoped catalog of products and services
// that customer events reference.
package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Item is a catalog entry. The tenant id is set once at creation and never
// reassigned.
type Item struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	Category  *string
	IsActive  bool
	CreatedAt time.Time
}

// ListFilter narrows List queries. The tenant restriction itself comes from
// the scope, not from the filter.
type ListFilter struct {
	Category *string
	Active   *bool
}
