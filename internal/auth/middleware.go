package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/pulsecheck-io/pulsecheck/internal/platform/httpx"
	"github.com/pulsecheck-io/pulsecheck/internal/shared"
	"github.com/pulsecheck-io/pulsecheck/internal/tenancy"
)

// Middleware wires bearer-token authentication for interactive routes.
type Middleware struct {
	Sessions *shared.SessionManager
	Logger   *slog.Logger
}

// RequireSession resolves the Authorization bearer token into session claims
// and installs the caller identity into the request context. A missing or
// zero tenant claim is a caller error, never a silent "no tenant" fallback.
func (m Middleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
			return
		}
		claims, err := m.Sessions.Load(r.Context(), token)
		if err != nil {
			if m.Logger != nil && !errors.Is(err, shared.ErrSessionExpired) {
				m.Logger.Error("load session claims", slog.Any("error", err))
			}
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired token")
			return
		}
		if claims.TenantID == uuid.Nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing tenant claim")
			return
		}

		ctx := shared.ContextWithClaims(r.Context(), claims)
		ctx = tenancy.ContextWithIdentity(ctx, tenancy.UserIdentity(claims.TenantID, claims.Subject, claims.Roles))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAnyRole ensures the caller's claim set contains at least one of the
// given roles. Mount after RequireSession.
func (m Middleware) RequireAnyRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(roles) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			claims := shared.ClaimsFromContext(r.Context())
			if claims == nil {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
				return
			}
			for _, role := range roles {
				if claims.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
