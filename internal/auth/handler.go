package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pulsecheck-io/pulsecheck/internal/platform/httpx"
	"github.com/pulsecheck-io/pulsecheck/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	sessions *shared.SessionManager
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		sessions: sessions,
		validate: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router. Login is public;
// me and logout require a session and are mounted behind mw.RequireSession.
func (h *Handler) MountRoutes(r chi.Router, mw Middleware) {
	r.Post("/login", h.handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireSession)
		r.Get("/me", h.handleMe)
		r.Post("/logout", h.handleLogout)
	})
}

type loginRequest struct {
	Tenant   string `json:"tenant" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresIn   int       `json:"expiresIn"`
	User        loginUser `json:"user"`
}

type loginUser struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Email       string   `json:"email"`
	TenantID    string   `json:"tenantId"`
	Roles       []string `json:"roles"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Tenant, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
			return
		}
		h.logger.Error("authenticate", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	token, err := h.sessions.Issue(r.Context(), h.service.ClaimsFor(user))
	if err != nil {
		h.logger.Error("issue session", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	httpx.JSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		ExpiresIn:   int(h.sessions.TTL().Seconds()),
		User: loginUser{
			ID:          user.ID.String(),
			DisplayName: user.DisplayName,
			Email:       user.Email,
			TenantID:    user.TenantID.String(),
			Roles:       user.Roles,
		},
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := shared.ClaimsFromContext(r.Context())
	if claims == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"userId":      claims.Subject,
		"tenantId":    claims.TenantID.String(),
		"displayName": claims.DisplayName,
		"roles":       claims.Roles,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		if err := h.sessions.Revoke(r.Context(), token); err != nil {
			h.logger.Warn("revoke session", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}
