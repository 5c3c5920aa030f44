package gateway_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsecheck-io/pulsecheck/internal/gateway"
	"github.com/pulsecheck-io/pulsecheck/internal/signature"
	_ "github.com/pulsecheck-io/pulsecheck/testing"
)

func newWebhookGateway(t *testing.T, workflowURL string) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &gateway.Config{
		RequestTimeout:      5 * time.Second,
		WhatsAppVerifyToken: "verify-me",
		WorkflowWebhookURL:  workflowURL,
		WebhookRelayTimeout: 2 * time.Second,
	}
	return gateway.NewRouter(gateway.RouterParams{
		Logger:    logger,
		Config:    cfg,
		Forwarder: gateway.NewForwarder("http://127.0.0.1:0", time.Second, logger),
		Webhooks:  gateway.NewWebhookRelay(cfg, logger),
		Verifier:  signature.NewVerifier(testSecret, logger),
	})
}

func TestWebhookVerificationEchoesChallenge(t *testing.T) {
	router := newWebhookGateway(t, "")

	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "12345", res.Body.String())
}

func TestWebhookVerificationRejectsBadToken(t *testing.T) {
	router := newWebhookGateway(t, "")

	for _, target := range []string{
		"/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345",
		"/webhooks/whatsapp?hub.mode=unsubscribe&hub.verify_token=verify-me&hub.challenge=12345",
	} {
		res := httptest.NewRecorder()
		router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusForbidden, res.Code)
	}
}

func TestWebhookInboundRelaysRawPayload(t *testing.T) {
	type relayed struct {
		body        string
		contentType string
	}
	got := make(chan relayed, 1)
	workflow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- relayed{body: string(body), contentType: r.Header.Get("Content-Type")}
	}))
	t.Cleanup(workflow.Close)

	router := newWebhookGateway(t, workflow.URL)
	payload := `{"entry":[{"changes":[{"value":{"messages":[{"from":"15550100001"}]}}]}]}`
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(payload)))

	// The platform gets its 200 regardless of how the relay fares.
	assert.Equal(t, http.StatusOK, res.Code)

	select {
	case r := <-got:
		assert.Equal(t, payload, r.body)
		assert.Equal(t, "application/json", r.contentType)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "workflow engine never received the payload")
	}
}

func TestWebhookInboundWithoutWorkflowURL(t *testing.T) {
	router := newWebhookGateway(t, "")

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusInternalServerError, res.Code)
}
