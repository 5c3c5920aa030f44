package catalog

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

// Handler wires HTTP endpoints for catalog items.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers catalog routes. Callers mount this behind the
// session middleware; every request here has a resolved tenant.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Patch("/{id}", h.handleUpdate)
}

type createItemRequest struct {
	Name     string  `json:"name" validate:"required"`
	Category *string `json:"category"`
	IsActive *bool   `json:"isActive"`
}

type updateItemRequest struct {
	Name     *string `json:"name"`
	Category *string `json:"category"`
	IsActive *bool   `json:"isActive"`
}

type itemResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Category  *string `json:"category"`
	IsActive  bool    `json:"isActive"`
	CreatedAt string  `json:"createdAt"`
}

func toResponse(it Item) itemResponse {
	return itemResponse{
		ID:        it.ID.String(),
		Name:      it.Name,
		Category:  it.Category,
		IsActive:  it.IsActive,
		CreatedAt: it.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	scope, err := tenancy.ScopeFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req createItemRequest
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
	item, err := h.service.Create(r.Context(), scope, actorFrom(r), Item{
		Name:     req.Name,
		Category: req.Category,
		IsActive: active,
	})
	if err != nil {
		h.logger.Error("create catalog item", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(item))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	scope, err := tenancy.ScopeFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var filter ListFilter
	if category := r.URL.Query().Get("category"); category != "" {
		filter.Category = &category
	}
	switch r.URL.Query().Get("active") {
	case "true":
		active := true
		filter.Active = &active
	case "false":
		active := false
		filter.Active = &active
	}
	items, err := h.service.List(r.Context(), scope, filter)
	if err != nil {
		h.logger.Error("list catalog items", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]itemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toResponse(it))
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
	item, err := h.service.Get(r.Context(), scope, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "catalog item not found")
			return
		}
		h.logger.Error("get catalog item", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(item))
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
	var req updateItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	existing, err := h.service.Get(r.Context(), scope, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "catalog item not found")
			return
		}
		h.logger.Error("get catalog item", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if req.Name != nil {
		existing.Name = *req.Name
	}
	if req.Category != nil {
		existing.Category = req.Category
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}
	updated, err := h.service.Update(r.Context(), scope, actorFrom(r), existing)
	if err != nil {
		h.logger.Error("update catalog item", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(updated))
}

func actorFrom(r *http.Request) string {
	if claims := shared.ClaimsFromContext(r.Context()); claims != nil {
		return claims.Subject
	}
	return ""
}
