package events

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

// Handler wires HTTP endpoints for customer events.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers event routes behind the session middleware.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Patch("/{id}", h.handleUpdate)
}

type createEventRequest struct {
	EventType    string          `json:"eventType" validate:"required"`
	CustomerID   uuid.UUID       `json:"customerId" validate:"required"`
	ContactPhone string          `json:"contactPhone" validate:"required"`
	ProductID    *uuid.UUID      `json:"productId"`
	ServiceID    *uuid.UUID      `json:"serviceId"`
	Metadata     json.RawMessage `json:"metadata"`
	OccurredAt   time.Time       `json:"occurredAt" validate:"required"`
}

type updateEventRequest struct {
	Status   string          `json:"status"`
	Metadata json.RawMessage `json:"metadata"`
}

type eventResponse struct {
	ID           string          `json:"id"`
	EventType    string          `json:"eventType"`
	CustomerID   string          `json:"customerId"`
	ContactPhone string          `json:"contactPhone"`
	ProductID    *uuid.UUID      `json:"productId"`
	ServiceID    *uuid.UUID      `json:"serviceId"`
	Status       string          `json:"status"`
	Metadata     json.RawMessage `json:"metadata"`
	OccurredAt   time.Time       `json:"occurredAt"`
	CreatedAt    time.Time       `json:"createdAt"`
}

func toResponse(ev Event) eventResponse {
	return eventResponse{
		ID:           ev.ID.String(),
		EventType:    ev.EventType,
		CustomerID:   ev.CustomerID.String(),
		ContactPhone: ev.ContactPhone,
		ProductID:    ev.ProductID,
		ServiceID:    ev.ServiceID,
		Status:       ev.Status,
		Metadata:     ev.Metadata,
		OccurredAt:   ev.OccurredAt,
		CreatedAt:    ev.CreatedAt,
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	scope, err := tenancy.ScopeFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req createEventRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	ev, err := h.service.Create(r.Context(), scope, actorFrom(r), Event{
		EventType:    req.EventType,
		CustomerID:   req.CustomerID,
		ContactPhone: req.ContactPhone,
		ProductID:    req.ProductID,
		ServiceID:    req.ServiceID,
		Metadata:     req.Metadata,
		OccurredAt:   req.OccurredAt,
	})
	if err != nil {
		if errors.Is(err, ErrProductXorService) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("create event", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(ev))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	scope, err := tenancy.ScopeFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	filter := ListFilter{
		Status:    r.URL.Query().Get("status"),
		EventType: r.URL.Query().Get("eventType"),
	}
	if raw := r.URL.Query().Get("productId"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			filter.ProductID = &id
		}
	}
	if raw := r.URL.Query().Get("serviceId"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			filter.ServiceID = &id
		}
	}
	list, err := h.service.List(r.Context(), scope, filter)
	if err != nil {
		h.logger.Error("list events", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]eventResponse, 0, len(list))
	for _, ev := range list {
		out = append(out, toResponse(ev))
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
	ev, err := h.service.Get(r.Context(), scope, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "event not found")
			return
		}
		h.logger.Error("get event", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(ev))
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
	var req updateEventRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	ev, err := h.service.UpdateStatus(r.Context(), scope, actorFrom(r), id, req.Status, req.Metadata)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "event not found")
		case errors.Is(err, ErrUnknownStatus):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		default:
			h.logger.Error("update event", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(ev))
}

func actorFrom(r *http.Request) string {
	if claims := shared.ClaimsFromContext(r.Context()); claims != nil {
		return claims.Subject
	}
	return ""
}
