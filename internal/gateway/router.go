package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/pulsecheck-io/pulsecheck/internal/observability"
	"github.com/pulsecheck-io/pulsecheck/internal/platform/httpx"
	"github.com/pulsecheck-io/pulsecheck/internal/signature"
)

// RouterParams groups dependencies for building the gateway router.
type RouterParams struct {
	Logger    *slog.Logger
	Config    *Config
	Forwarder *Forwarder
	Flows     *FlowClient
	Webhooks  *WebhookRelay
	Verifier  *signature.Verifier
	Metrics   *observability.Metrics
}

// NewRouter constructs the gateway's chi.Router. Signed automation traffic
// enters under /integrations/internal; the flow-builder endpoints under
// /integrations/whatsapp are called by the core service over the private
// network and carry no signature.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(params.Config.RequestTimeout))
	r.Use(httprate.Limit(300, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
	if params.Metrics != nil {
		r.Use(params.Metrics.Middleware)
	}
	r.Use(middleware.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/integrations/internal", func(r chi.Router) {
		r.Use(params.Verifier.Middleware)

		// Static segments win over the {key} wildcard, so the session
		// pass-throughs and the keyed routes coexist.
		r.Get("/sessions/{id}", func(w http.ResponseWriter, req *http.Request) {
			params.Forwarder.Forward(req.Context(), w, req, "/internal/sessions/"+chi.URLParam(req, "id"))
		})
		r.Get("/sessions/{id}/responses", func(w http.ResponseWriter, req *http.Request) {
			params.Forwarder.Forward(req.Context(), w, req, "/internal/sessions/"+chi.URLParam(req, "id")+"/responses")
		})

		r.Post("/{key}", func(w http.ResponseWriter, req *http.Request) {
			path, err := ResolvePost(chi.URLParam(req, "key"))
			if err != nil {
				httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown route key")
				return
			}
			params.Forwarder.Forward(req.Context(), w, req, path)
		})
		r.Get("/{key}", func(w http.ResponseWriter, req *http.Request) {
			path, err := ResolveGet(chi.URLParam(req, "key"))
			if err != nil {
				httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown route key")
				return
			}
			params.Forwarder.Forward(req.Context(), w, req, path)
		})
	})

	if params.Flows != nil {
		r.Route("/integrations/whatsapp/flows", func(r chi.Router) {
			r.Post("/create", handleFlowCreate(params))
			r.Post("/{flowId}/assets", handleFlowAssets(params))
			r.Post("/{flowId}/publish", handleFlowPublish(params))
		})
	}

	if params.Webhooks != nil {
		r.Route("/webhooks/whatsapp", func(r chi.Router) {
			r.Get("/", handleWebhookVerify(params))
			r.Post("/", handleWebhookInbound(params))
		})
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}

func handleFlowCreate(params RouterParams) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name       string   `json:"name"`
			Categories []string `json:"categories"`
		}
		if err := httpx.DecodeJSON(r, &req); err != nil || req.Name == "" {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "name is required")
			return
		}
		flowID, err := params.Flows.CreateFlow(r.Context(), req.Name, req.Categories)
		if err != nil {
			params.Logger.Error("create flow", slog.Any("error", err))
			httpx.Problem(w, http.StatusBadGateway, "Bad Gateway", "flow creation failed")
			return
		}
		httpx.JSON(w, http.StatusCreated, map[string]string{"flowId": flowID})
	}
}

func handleFlowAssets(params RouterParams) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flowID := chi.URLParam(r, "flowId")
		var req struct {
			Filename string          `json:"filename"`
			Content  json.RawMessage `json:"content"`
		}
		if err := httpx.DecodeJSON(r, &req); err != nil || len(req.Content) == 0 {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "content is required")
			return
		}
		validationErrors, ok, err := params.Flows.UploadFlowJSON(r.Context(), flowID, req.Content)
		if err != nil {
			params.Logger.Error("upload flow json", slog.Any("error", err))
			httpx.Problem(w, http.StatusBadGateway, "Bad Gateway", "flow upload failed")
			return
		}
		if !ok {
			httpx.JSON(w, http.StatusUnprocessableEntity, map[string]any{
				"validationErrors": validationErrors,
			})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "uploaded"})
	}
}

func handleFlowPublish(params RouterParams) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flowID := chi.URLParam(r, "flowId")
		if err := params.Flows.PublishFlow(r.Context(), flowID); err != nil {
			params.Logger.Error("publish flow", slog.Any("error", err))
			httpx.Problem(w, http.StatusBadGateway, "Bad Gateway", "flow publish failed")
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "published"})
	}
}
