package signature

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/pulsecheck-io/pulsecheck/internal/platform/httpx"
)

// Verifier gates a trust boundary for automation traffic. The same verifier
// runs at the gateway's public ingress and at the core service's /internal
// mount; the second hop never trusts the first hop's accept and re-verifies
// independently.
type Verifier struct {
	secret   string
	logger   *slog.Logger
	now      func() time.Time
	onReject func(reason string)
}

// NewVerifier constructs a Verifier for the given shared secret.
func NewVerifier(secret string, logger *slog.Logger) *Verifier {
	return &Verifier{secret: secret, logger: logger, now: time.Now}
}

// WithClock overrides the verifier's clock. Tests only.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// WithRejectHook registers a callback invoked with each rejection reason,
// typically a metrics counter.
func (v *Verifier) WithRejectHook(fn func(reason string)) *Verifier {
	v.onReject = fn
	return v
}

// Middleware enforces the signature protocol: both headers present, integer
// timestamp within the skew window, and a matching digest over the raw body.
// The body is buffered and restored so downstream handlers decode the exact
// bytes that were verified.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v.secret == "" {
			// Operational misconfiguration, not a caller error. Never
			// silently accept traffic without a configured secret.
			if v.logger != nil {
				v.logger.Error("signature secret not configured")
			}
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "signing secret not configured")
			return
		}

		ts := r.Header.Get(TimestampHeader)
		sig := r.Header.Get(SignatureHeader)
		if ts == "" || sig == "" {
			v.reject(w, r, "missing signature headers")
			return
		}

		tsNum, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			v.reject(w, r, "invalid timestamp")
			return
		}

		now := v.now().Unix()
		if absInt64(now-tsNum) > MaxSkewSeconds {
			v.reject(w, r, "timestamp out of range")
			return
		}

		body, err := captureBody(r)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unreadable request body")
			return
		}

		if !Verify(v.secret, Canonical(ts, body), sig) {
			v.reject(w, r, "bad signature")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (v *Verifier) reject(w http.ResponseWriter, r *http.Request, reason string) {
	if v.onReject != nil {
		v.onReject(reason)
	}
	if v.logger != nil {
		v.logger.Warn("signature verification failed",
			slog.String("path", r.URL.Path),
			slog.String("reason", reason))
	}
	// The reason string stays generic; the expected digest is never echoed.
	httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", reason)
}

// captureBody buffers the request body and restores it for downstream
// consumers, so verification and business parsing observe identical bytes.
func captureBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

func absInt64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
