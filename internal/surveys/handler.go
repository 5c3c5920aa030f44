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
	"github.com/pulsecheck-io/pulsecheck/internal/tenancy"
)

// Handler wires the dashboard-facing survey template endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers the template routes. Callers mount this behind the
// session middleware; every request here has a resolved tenant.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Patch("/{id}", h.handleUpdate)
	r.Post("/{id}/publish", h.handlePublish)
}

type createTemplateRequest struct {
	Name       string          `json:"name" validate:"required"`
	EventType  string          `json:"eventType" validate:"required"`
	Language   string          `json:"language"`
	SchemaJSON json.RawMessage `json:"schemaJson" validate:"required"`
	IsActive   *bool           `json:"isActive"`
}

type updateTemplateRequest struct {
	Name       *string         `json:"name"`
	SchemaJSON json.RawMessage `json:"schemaJson"`
	IsActive   *bool           `json:"isActive"`
}

type templateResponse struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	EventType        string          `json:"eventType"`
	Language         string          `json:"language"`
	Version          int             `json:"version"`
	SchemaJSON       json.RawMessage `json:"schemaJson"`
	CreatedBy        string          `json:"createdBy"`
	IsActive         bool            `json:"isActive"`
	Channel          string          `json:"channel"`
	FlowID           *string         `json:"flowId"`
	FlowStatus       *string         `json:"flowStatus"`
	PublishedAt      *string         `json:"publishedAt"`
	ValidationErrors json.RawMessage `json:"validationErrors,omitempty"`
	CreatedAt        string          `json:"createdAt"`
}

func toTemplateResponse(t Template) templateResponse {
	resp := templateResponse{
		ID:               t.ID.String(),
		Name:             t.Name,
		EventType:        t.EventType,
		Language:         t.Language,
		Version:          t.Version,
		SchemaJSON:       t.SchemaJSON,
		CreatedBy:        t.CreatedBy,
		IsActive:         t.IsActive,
		Channel:          t.Channel,
		FlowID:           t.FlowID,
		FlowStatus:       t.FlowStatus,
		ValidationErrors: t.ValidationErrors,
		CreatedAt:        t.CreatedAt.Format(time.RFC3339),
	}
	if t.PublishedAt != nil {
		published := t.PublishedAt.Format(time.RFC3339)
		resp.PublishedAt = &published
	}
	return resp
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	scope, err := tenancy.ScopeFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req createTemplateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	template, err := h.service.CreateTemplate(r.Context(), scope, actorFrom(r), Template{
		Name:       req.Name,
		EventType:  req.EventType,
		Language:   req.Language,
		SchemaJSON: req.SchemaJSON,
		IsActive:   active,
	})
	if err != nil {
		h.logger.Error("create survey template", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTemplateResponse(template))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	scope, err := tenancy.ScopeFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	filter := TemplateFilter{
		EventType: r.URL.Query().Get("eventType"),
		Language:  r.URL.Query().Get("language"),
	}
	templates, err := h.service.ListTemplates(r.Context(), scope, filter)
	if err != nil {
		h.logger.Error("list survey templates", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]templateResponse, 0, len(templates))
	for _, t := range templates {
		out = append(out, toTemplateResponse(t))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	scope, err := tenancy.ScopeFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	template, err := h.service.GetTemplate(r.Context(), scope, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "survey template not found")
			return
		}
		h.logger.Error("get survey template", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTemplateResponse(template))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	scope, err := tenancy.ScopeFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req updateTemplateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	template, err := h.service.UpdateTemplate(r.Context(), scope, actorFrom(r), id, TemplatePatch{
		Name:       req.Name,
		SchemaJSON: req.SchemaJSON,
		IsActive:   req.IsActive,
	})
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "survey template not found")
		case errors.Is(err, ErrTemplatePublished):
			httpx.Problem(w, http.StatusConflict, "Conflict", "published templates are immutable")
		default:
			h.logger.Error("update survey template", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, toTemplateResponse(template))
}

func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	scope, err := tenancy.ScopeFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	result, err := h.service.PublishTemplate(r.Context(), scope, actorFrom(r), id)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "survey template not found")
		case errors.Is(err, ErrAlreadyPublished):
			httpx.Problem(w, http.StatusConflict, "Conflict", "template already published")
		default:
			h.logger.Error("publish survey template", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"flowId":      result.FlowID,
		"publishedAt": result.PublishedAt.Format(time.RFC3339),
	})
}

// MountSessionRoutes registers the read-only session browse endpoints, kept
// separate from the template routes so the router can mount them without the
// manager role requirement.
func (h *Handler) MountSessionRoutes(r chi.Router) {
	r.Get("/{id}", h.handleSessionOverview)
}

type sessionOverviewResponse struct {
	ID                string                  `json:"id"`
	EventID           string                  `json:"eventId"`
	TemplateID        string                  `json:"templateId"`
	RecipientPhone    string                  `json:"recipientPhone"`
	Channel           string                  `json:"channel"`
	Status            string                  `json:"status"`
	SentAt            *string                 `json:"sentAt,omitempty"`
	CompletedAt       *string                 `json:"completedAt,omitempty"`
	LastInteractionAt *string                 `json:"lastInteractionAt,omitempty"`
	ReminderCount     int                     `json:"reminderCount"`
	CreatedAt         string                  `json:"createdAt"`
	Responses         []sessionAnswerResponse `json:"responses"`
	Outcome           *sessionOutcomeResponse `json:"outcome,omitempty"`
}

type sessionAnswerResponse struct {
	QuestionID string          `json:"questionId"`
	AnswerJSON json.RawMessage `json:"answerJson"`
	CreatedAt  string          `json:"createdAt"`
}

type sessionOutcomeResponse struct {
	ConfirmationStatus string   `json:"confirmationStatus"`
	SatisfactionScore  *float64 `json:"satisfactionScore,omitempty"`
	Sentiment          *string  `json:"sentiment,omitempty"`
	ComputedAt         string   `json:"computedAt"`
}

func (h *Handler) handleSessionOverview(w http.ResponseWriter, r *http.Request) {
	scope, err := tenancy.ScopeFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	ov, err := h.service.Overview(r.Context(), scope, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "survey session not found")
			return
		}
		h.logger.Error("session overview", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSessionOverviewResponse(ov))
}

func toSessionOverviewResponse(ov SessionOverview) sessionOverviewResponse {
	out := sessionOverviewResponse{
		ID:                ov.Session.ID.String(),
		EventID:           ov.Session.EventID.String(),
		TemplateID:        ov.Session.TemplateID.String(),
		RecipientPhone:    ov.Session.RecipientPhone,
		Channel:           ov.Session.Channel,
		Status:            ov.Session.Status,
		SentAt:            formatTimePtr(ov.Session.SentAt),
		CompletedAt:       formatTimePtr(ov.Session.CompletedAt),
		LastInteractionAt: formatTimePtr(ov.Session.LastInteractionAt),
		ReminderCount:     ov.Session.ReminderCount,
		CreatedAt:         ov.Session.CreatedAt.Format(time.RFC3339),
		Responses:         make([]sessionAnswerResponse, 0, len(ov.Responses)),
	}
	for _, resp := range ov.Responses {
		out.Responses = append(out.Responses, sessionAnswerResponse{
			QuestionID: resp.QuestionID,
			AnswerJSON: resp.AnswerJSON,
			CreatedAt:  resp.CreatedAt.Format(time.RFC3339),
		})
	}
	if ov.Outcome != nil {
		out.Outcome = &sessionOutcomeResponse{
			ConfirmationStatus: ov.Outcome.ConfirmationStatus,
			SatisfactionScore:  ov.Outcome.SatisfactionScore,
			Sentiment:          ov.Outcome.Sentiment,
			ComputedAt:         ov.Outcome.ComputedAt.Format(time.RFC3339),
		}
	}
	return out
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(time.RFC3339)
	return &v
}

func actorFrom(r *http.Request) string {
	if claims := shared.ClaimsFromContext(r.Context()); claims != nil {
		return claims.Subject
	}
	return ""
}
