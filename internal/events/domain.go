// Package events records the customer events (support resolutions,
// deliveries, installations) that trigger survey sessions.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event statuses.
const (
	StatusCreated    = "created"
	StatusSurveySent = "survey_sent"
	StatusCompleted  = "completed"
	StatusArchived   = "archived"
)

// Event is a customer event a survey may follow up on. Tenant-scoped.
type Event struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	EventType    string
	CustomerID   uuid.UUID
	ContactPhone string
	ProductID    *uuid.UUID
	ServiceID    *uuid.UUID
	Status       string
	Metadata     json.RawMessage
	OccurredAt   time.Time
	CreatedAt    time.Time
}

// ListFilter narrows List queries.
type ListFilter struct {
	Status    string
	EventType string
	ProductID *uuid.UUID
	ServiceID *uuid.UUID
}

// validStatus reports whether s is a known event status.
func validStatus(s string) bool {
	switch s {
	case StatusCreated, StatusSurveySent, StatusCompleted, StatusArchived:
		return true
	}
	return false
}
