// Package surveys manages survey templates, delivery sessions, responses and
// computed outcomes. Interactive callers reach it through the tenant-scoped
// API; the workflow engine reaches it through /internal operations that carry
// explicit tenant identifiers instead of a session.
package surveys

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Template publish statuses on the messaging platform.
const (
	FlowStatusDraft     = "DRAFT"
	FlowStatusPublished = "PUBLISHED"
	FlowStatusError     = "ERROR"
)

// Session statuses.
const (
	SessionPending    = "pending"
	SessionSent       = "sent"
	SessionInProgress = "in_progress"
	SessionCompleted  = "completed"
	SessionExpired    = "expired"
	SessionFailed     = "failed"
)

// Outcome confirmation statuses.
const (
	ConfirmationConfirmed    = "confirmed"
	ConfirmationNotConfirmed = "not_confirmed"
	ConfirmationPartial      = "partial"
)

// Template is a survey definition for one event type and language.
// Tenant-scoped; at most one active template per event type and language.
type Template struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	Name             string
	EventType        string
	Language         string
	Version          int
	SchemaJSON       json.RawMessage
	CreatedBy        string
	IsActive         bool
	Channel          string
	FlowID           *string
	FlowStatus       *string
	PublishedAt      *time.Time
	ValidationErrors json.RawMessage
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Session tracks one survey delivery to one recipient. Tenant-scoped.
type Session struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	EventID           uuid.UUID
	TemplateID        uuid.UUID
	RecipientPhone    string
	Channel           string
	Status            string
	SentAt            *time.Time
	CompletedAt       *time.Time
	LastInteractionAt *time.Time
	ReminderCount     int
	CreatedAt         time.Time
}

// Response is one answer within a session, at most one per question.
// Tenant-scoped.
type Response struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	SessionID  uuid.UUID
	QuestionID string
	AnswerJSON json.RawMessage
	CreatedAt  time.Time
}

// Outcome is the computed result of a completed session, keyed by session id.
// Tenant-scoped.
type Outcome struct {
	SessionID          uuid.UUID
	TenantID           uuid.UUID
	ConfirmationStatus string
	SatisfactionScore  *float64
	Sentiment          *string
	ComputedAt         time.Time
}

// TemplateFilter narrows ListTemplates queries.
type TemplateFilter struct {
	EventType string
	Language  string
}
