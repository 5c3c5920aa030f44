package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pulsecheck-io/pulsecheck/internal/signature"
)

// Route keys accepted at the public ingress. The maps are static on purpose:
// the workflow engine can only ever reach the endpoints listed here, and an
// unknown key fails before any downstream connection is opened.
var postRoutes = map[string]string{
	"surveys-generated": "/internal/surveys/generated",
	"surveys-answer":    "/internal/surveys/answer",
	"surveys-complete":  "/internal/surveys/complete",
}

var getRoutes = map[string]string{
	"sessions-active": "/internal/sessions/active",
}

// ErrUnknownRoute reports a key missing from the static route tables.
var ErrUnknownRoute = errors.New("gateway: unknown route key")

// Forwarder relays verified automation requests to the core service. The
// original signature headers travel with the request so the core can run its
// own verification; the forwarder never re-signs.
type Forwarder struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewForwarder constructs a Forwarder for the core service base URL.
func NewForwarder(baseURL string, timeout time.Duration, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// ResolvePost returns the downstream path for a POST route key.
func ResolvePost(key string) (string, error) {
	path, ok := postRoutes[key]
	if !ok {
		return "", ErrUnknownRoute
	}
	return path, nil
}

// ResolveGet returns the downstream path for a GET route key.
func ResolveGet(key string) (string, error) {
	path, ok := getRoutes[key]
	if !ok {
		return "", ErrUnknownRoute
	}
	return path, nil
}

// Forward re-issues the inbound request against the core service: same
// method, same raw body, both signature headers copied verbatim, and the
// query string preserved. The downstream response is relayed as received.
func (f *Forwarder) Forward(ctx context.Context, w http.ResponseWriter, r *http.Request, path string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "unreadable request body", http.StatusBadRequest)
		return
	}

	target := f.baseURL + path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, bytes.NewReader(body))
	if err != nil {
		f.logger.Error("build downstream request", slog.Any("error", err))
		http.Error(w, "gateway error", http.StatusInternalServerError)
		return
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	req.Header.Set(signature.TimestampHeader, r.Header.Get(signature.TimestampHeader))
	req.Header.Set(signature.SignatureHeader, r.Header.Get(signature.SignatureHeader))

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("core service unreachable",
			slog.String("path", path),
			slog.Any("error", err))
		http.Error(w, "upstream failure", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		f.logger.Warn("relay downstream response", slog.Any("error", err))
	}
}
