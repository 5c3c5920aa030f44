package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pulsecheck-io/pulsecheck/internal/platform/httpx"
)

// WebhookRelay hands inbound messaging-platform webhooks off to the workflow
// engine. The platform expects a 200 within a few seconds, so the relay runs
// after the response is written and failures are only logged.
type WebhookRelay struct {
	verifyToken string
	webhookURL  string
	client      *http.Client
	logger      *slog.Logger
}

// NewWebhookRelay constructs a WebhookRelay from gateway configuration.
func NewWebhookRelay(cfg *Config, logger *slog.Logger) *WebhookRelay {
	return &WebhookRelay{
		verifyToken: cfg.WhatsAppVerifyToken,
		webhookURL:  cfg.WorkflowWebhookURL,
		client:      &http.Client{Timeout: cfg.WebhookRelayTimeout},
		logger:      logger,
	}
}

// Configured reports whether a workflow webhook URL has been set.
func (w *WebhookRelay) Configured() bool {
	return w.webhookURL != ""
}

// VerifyChallenge checks the platform's subscription handshake and returns
// the challenge to echo back, or false when the token does not match.
func (w *WebhookRelay) VerifyChallenge(mode, token, challenge string) (string, bool) {
	if mode == "subscribe" && w.verifyToken != "" && token == w.verifyToken {
		return challenge, true
	}
	return "", false
}

// Relay posts the raw webhook payload to the workflow engine.
func (w *WebhookRelay) Relay(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("relay webhook: workflow engine returned %d", resp.StatusCode)
	}
	return nil
}

func handleWebhookVerify(params RouterParams) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		challenge, ok := params.Webhooks.VerifyChallenge(q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"))
		if !ok {
			params.Logger.Warn("webhook verification rejected", slog.String("mode", q.Get("hub.mode")))
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "verification token mismatch")
			return
		}
		params.Logger.Info("webhook verified")
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge))
	}
}

func handleWebhookInbound(params RouterParams) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !params.Webhooks.Configured() {
			params.Logger.Error("workflow webhook url not configured")
			httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "workflow webhook url not configured")
			return
		}
		payload, err := io.ReadAll(r.Body)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unreadable body")
			return
		}

		// Ack first; the platform retries aggressively on slow responses.
		w.WriteHeader(http.StatusOK)

		relayCtx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 30*time.Second)
		go func() {
			defer cancel()
			if err := params.Webhooks.Relay(relayCtx, payload); err != nil {
				params.Logger.Error("relay inbound webhook", slog.Any("error", err))
			}
		}()
	}
}
