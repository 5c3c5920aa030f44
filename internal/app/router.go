package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pulsecheck-io/pulsecheck/internal/auth"
	"github.com/pulsecheck-io/pulsecheck/internal/catalog"
	"github.com/pulsecheck-io/pulsecheck/internal/events"
	"github.com/pulsecheck-io/pulsecheck/internal/observability"
	"github.com/pulsecheck-io/pulsecheck/internal/signature"
	"github.com/pulsecheck-io/pulsecheck/internal/surveys"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	AuthMiddleware  auth.Middleware
	AuthHandler     *auth.Handler
	AgentsHandler   *auth.AgentsHandler
	CatalogHandler  *catalog.Handler
	EventsHandler   *events.Handler
	SurveysHandler  *surveys.Handler
	InternalHandler *surveys.InternalHandler
	Verifier        *signature.Verifier
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with PulseCheck defaults. The /api tree
// serves the authenticated dashboard; the /internal tree serves signed
// automation traffic and performs its own verification even though the
// gateway already verified once.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			params.AuthHandler.MountRoutes(r, params.AuthMiddleware)
		})
		r.Group(func(r chi.Router) {
			r.Use(params.AuthMiddleware.RequireSession)
			r.Route("/agents", func(r chi.Router) {
				r.Use(params.AuthMiddleware.RequireAnyRole(auth.RoleAdmin))
				params.AgentsHandler.MountRoutes(r)
			})
			r.Route("/catalog-items", params.CatalogHandler.MountRoutes)
			r.Route("/events", params.EventsHandler.MountRoutes)
			r.Route("/survey-templates", func(r chi.Router) {
				r.Use(params.AuthMiddleware.RequireAnyRole(auth.RoleAdmin, auth.RoleManager))
				params.SurveysHandler.MountRoutes(r)
			})
			r.Route("/survey-sessions", params.SurveysHandler.MountSessionRoutes)
		})
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(params.Verifier.Middleware)
		params.InternalHandler.MountRoutes(r)
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
