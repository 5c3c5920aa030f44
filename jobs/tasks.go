package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSurveyReminder is the task type for nudging stale survey sessions.
	TaskSurveyReminder = "survey:reminder"
)

// SurveyReminderPayload identifies the session to nudge. The tenant id rides
// along because the worker has no session context to resolve one from.
type SurveyReminderPayload struct {
	SessionID string `json:"sessionId"`
	TenantID  string `json:"tenantId"`
}

// NewSurveyReminderTask constructs an Asynq task.
func NewSurveyReminderTask(payload SurveyReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSurveyReminder, data), nil
}

// SessionReminder bumps the reminder counter for a still-open session.
// Implemented by the surveys service.
type SessionReminder interface {
	RemindSession(ctx context.Context, tenantID, sessionID uuid.UUID) error
}

// NewSurveyReminderHandler builds the handler for TaskSurveyReminder tasks.
func NewSurveyReminderHandler(reminder SessionReminder, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SurveyReminderPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		sessionID, err := uuid.Parse(payload.SessionID)
		if err != nil {
			return asynq.SkipRetry
		}
		tenantID, err := uuid.Parse(payload.TenantID)
		if err != nil {
			return asynq.SkipRetry
		}
		if err := reminder.RemindSession(ctx, tenantID, sessionID); err != nil {
			logger.Warn("survey reminder failed",
				slog.String("session_id", payload.SessionID),
				slog.Any("error", err))
			return err
		}
		return nil
	}
}
