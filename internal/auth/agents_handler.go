package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pulsecheck-io/pulsecheck/internal/platform/httpx"
	"github.com/pulsecheck-io/pulsecheck/internal/shared"
	"github.com/pulsecheck-io/pulsecheck/internal/tenancy"
)

// AgentsHandler wires HTTP endpoints for agent account management.
type AgentsHandler struct {
	logger   *slog.Logger
	service  *AgentsService
	validate *validator.Validate
}

// NewAgentsHandler constructs an AgentsHandler instance.
func NewAgentsHandler(logger *slog.Logger, service *AgentsService) *AgentsHandler {
	return &AgentsHandler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers agent routes. Callers mount this behind the session
// middleware with the admin role required.
func (h *AgentsHandler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Patch("/{id}", h.handleUpdate)
	r.Delete("/{id}", h.handleDeactivate)
}

type createAgentRequest struct {
	Email       string   `json:"email" validate:"required,email"`
	DisplayName string   `json:"displayName" validate:"required"`
	Password    string   `json:"password" validate:"required,min=8"`
	Roles       []string `json:"roles" validate:"required,min=1"`
}

type updateAgentRequest struct {
	DisplayName *string   `json:"displayName"`
	Roles       *[]string `json:"roles"`
	IsActive    *bool     `json:"isActive"`
}

type agentResponse struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName"`
	Roles       []string `json:"roles"`
	IsActive    bool     `json:"isActive"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
}

func toAgentResponse(u User) agentResponse {
	return agentResponse{
		ID:          u.ID.String(),
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Roles:       u.Roles,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:   u.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (h *AgentsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	scope, err := tenancy.ScopeFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req createAgentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	agent, err := h.service.CreateAgent(r.Context(), scope, actorFrom(r), NewAgent{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
		Roles:       req.Roles,
	})
	if err != nil {
		h.respondAgentError(w, "create agent", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAgentResponse(agent))
}

func (h *AgentsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	scope, err := tenancy.ScopeFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	agents, err := h.service.ListAgents(r.Context(), scope, AgentFilter{
		Search: r.URL.Query().Get("search"),
	})
	if err != nil {
		h.logger.Error("list agents", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]agentResponse, 0, len(agents))
	for _, a := range agents {
		out = append(out, toAgentResponse(a))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *AgentsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
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
	agent, err := h.service.GetAgent(r.Context(), scope, id)
	if err != nil {
		h.respondAgentError(w, "get agent", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAgentResponse(agent))
}

func (h *AgentsHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
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
	var req updateAgentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	existing, err := h.service.GetAgent(r.Context(), scope, id)
	if err != nil {
		h.respondAgentError(w, "get agent", err)
		return
	}
	if req.DisplayName != nil {
		existing.DisplayName = *req.DisplayName
	}
	if req.Roles != nil {
		existing.Roles = *req.Roles
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}
	updated, err := h.service.UpdateAgent(r.Context(), scope, actorFrom(r), existing)
	if err != nil {
		h.respondAgentError(w, "update agent", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAgentResponse(updated))
}

func (h *AgentsHandler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
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
	if err := h.service.DeactivateAgent(r.Context(), scope, actorFrom(r), id); err != nil {
		h.respondAgentError(w, "deactivate agent", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AgentsHandler) respondAgentError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalidRole):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrEmailTaken):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "agent not found")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func actorFrom(r *http.Request) string {
	if claims := shared.ClaimsFromContext(r.Context()); claims != nil {
		return claims.Subject
	}
	return ""
}
