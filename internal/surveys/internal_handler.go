package surveys

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pulsecheck-io/pulsecheck/internal/platform/httpx"
	"github.com/pulsecheck-io/pulsecheck/internal/shared"
)

// InternalHandler serves the automation surface. Every route here is mounted
// behind the signature verifier; the caller is the workflow engine, not a
// browser, and the tenant travels in the payload rather than a session.
type InternalHandler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewInternalHandler constructs an InternalHandler instance.
func NewInternalHandler(logger *slog.Logger, service *Service) *InternalHandler {
	return &InternalHandler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers the automation routes.
func (h *InternalHandler) MountRoutes(r chi.Router) {
	r.Post("/surveys/generated", h.handleGenerated)
	r.Post("/surveys/answer", h.handleAnswer)
	r.Post("/surveys/complete", h.handleComplete)
	r.Get("/sessions/active", h.handleActiveSession)
	r.Get("/sessions/{id}", h.handleSessionDetail)
	r.Get("/sessions/{id}/responses", h.handleSessionResponses)
}

type generatedRequest struct {
	TenantID   string          `json:"tenantId" validate:"required,uuid"`
	EventID    string          `json:"eventId" validate:"required,uuid"`
	Language   string          `json:"language"`
	CreatedBy  string          `json:"createdBy"`
	SchemaJSON json.RawMessage `json:"schemaJson" validate:"required"`
}

func (h *InternalHandler) handleGenerated(w http.ResponseWriter, r *http.Request) {
	var req generatedRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	tenantID, _ := uuid.Parse(req.TenantID)
	eventID, _ := uuid.Parse(req.EventID)
	result, err := h.service.Generated(r.Context(), GenerateRequest{
		TenantID:   tenantID,
		EventID:    eventID,
		Language:   req.Language,
		CreatedBy:  req.CreatedBy,
		SchemaJSON: req.SchemaJSON,
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "event not found")
			return
		}
		h.logger.Error("record generated survey", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{
		"templateId": result.TemplateID.String(),
		"sessionId":  result.SessionID.String(),
	})
}

type answerRequest struct {
	TenantID   string          `json:"tenantId" validate:"required,uuid"`
	SessionID  string          `json:"sessionId" validate:"required,uuid"`
	QuestionID string          `json:"questionId" validate:"required"`
	AnswerJSON json.RawMessage `json:"answerJson" validate:"required"`
	AnsweredAt *time.Time      `json:"answeredAt"`
}

func (h *InternalHandler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	tenantID, _ := uuid.Parse(req.TenantID)
	sessionID, _ := uuid.Parse(req.SessionID)
	err := h.service.Answer(r.Context(), AnswerRequest{
		TenantID:   tenantID,
		SessionID:  sessionID,
		QuestionID: req.QuestionID,
		AnswerJSON: req.AnswerJSON,
		AnsweredAt: req.AnsweredAt,
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "session not found")
			return
		}
		h.logger.Error("record survey answer", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

type completeRequest struct {
	TenantID  string `json:"tenantId" validate:"required,uuid"`
	SessionID string `json:"sessionId" validate:"required,uuid"`
}

func (h *InternalHandler) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	tenantID, _ := uuid.Parse(req.TenantID)
	sessionID, _ := uuid.Parse(req.SessionID)
	result, err := h.service.Complete(r.Context(), tenantID, sessionID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "session not found")
			return
		}
		h.logger.Error("complete survey session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"confirmationStatus": result.Confirmation,
		"satisfactionScore":  result.Rating,
	})
}

type sessionResponse struct {
	ID                string  `json:"id"`
	TenantID          string  `json:"tenantId"`
	EventID           string  `json:"eventId"`
	TemplateID        string  `json:"templateId"`
	RecipientPhone    string  `json:"recipientPhone"`
	Channel           string  `json:"channel"`
	Status            string  `json:"status"`
	SentAt            *string `json:"sentAt"`
	CompletedAt       *string `json:"completedAt"`
	LastInteractionAt *string `json:"lastInteractionAt"`
	ReminderCount     int     `json:"reminderCount"`
	CreatedAt         string  `json:"createdAt"`
}

func toSessionResponse(s Session) sessionResponse {
	fmtTime := func(t *time.Time) *string {
		if t == nil {
			return nil
		}
		v := t.Format(time.RFC3339)
		return &v
	}
	return sessionResponse{
		ID:                s.ID.String(),
		TenantID:          s.TenantID.String(),
		EventID:           s.EventID.String(),
		TemplateID:        s.TemplateID.String(),
		RecipientPhone:    s.RecipientPhone,
		Channel:           s.Channel,
		Status:            s.Status,
		SentAt:            fmtTime(s.SentAt),
		CompletedAt:       fmtTime(s.CompletedAt),
		LastInteractionAt: fmtTime(s.LastInteractionAt),
		ReminderCount:     s.ReminderCount,
		CreatedAt:         s.CreatedAt.Format(time.RFC3339),
	}
}

// handleActiveSession looks a session up by recipient phone only. The
// response carries the tenant id so the automation can echo it on later
// calls.
func (h *InternalHandler) handleActiveSession(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "phone is required")
		return
	}
	session, err := h.service.ActiveSession(r.Context(), phone)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "no active session")
			return
		}
		h.logger.Error("find active session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *InternalHandler) handleSessionDetail(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	session, err := h.service.SessionDetail(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "session not found")
			return
		}
		h.logger.Error("get session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *InternalHandler) handleSessionResponses(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	responses, err := h.service.SessionResponses(r.Context(), id)
	if err != nil {
		h.logger.Error("list session responses", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	type responseEntry struct {
		QuestionID string          `json:"questionId"`
		AnswerJSON json.RawMessage `json:"answerJson"`
		CreatedAt  string          `json:"createdAt"`
	}
	out := make([]responseEntry, 0, len(responses))
	for _, resp := range responses {
		out = append(out, responseEntry{
			QuestionID: resp.QuestionID,
			AnswerJSON: resp.AnswerJSON,
			CreatedAt:  resp.CreatedAt.Format(time.RFC3339),
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}
