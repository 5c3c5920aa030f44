package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pulsecheck-io/pulsecheck/internal/auth"
	"github.com/pulsecheck-io/pulsecheck/internal/shared"
	"github.com/pulsecheck-io/pulsecheck/internal/tenancy"
	_ "github.com/pulsecheck-io/pulsecheck/testing"
)

type stubTenantRepo struct {
	tenant *tenancy.Tenant
}

func (s *stubTenantRepo) Create(ctx context.Context, t tenancy.Tenant) (tenancy.Tenant, error) {
	return t, nil
}

func (s *stubTenantRepo) GetBySlug(ctx context.Context, slug string) (tenancy.Tenant, error) {
	if s.tenant == nil || s.tenant.Slug != slug {
		return tenancy.Tenant{}, shared.ErrNotFound
	}
	return *s.tenant, nil
}

func (s *stubTenantRepo) GetByID(ctx context.Context, id uuid.UUID) (tenancy.Tenant, error) {
	if s.tenant == nil || s.tenant.ID != id {
		return tenancy.Tenant{}, shared.ErrNotFound
	}
	return *s.tenant, nil
}

type stubUserRepo struct {
	user *auth.User
}

func (s *stubUserRepo) FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*auth.User, error) {
	if s.user == nil || s.user.TenantID != tenantID || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func newRouter(t *testing.T, tenant *tenancy.Tenant, user *auth.User) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(redisClient, "test-secret", time.Hour)

	service := auth.NewService(&stubUserRepo{user: user}, &stubTenantRepo{tenant: tenant})
	handler := auth.NewHandler(nil, service, sessions)
	mw := auth.Middleware{Sessions: sessions}

	r := chi.NewRouter()
	r.Route("/api/auth", func(r chi.Router) {
		handler.MountRoutes(r, mw)
	})
	return r
}

func fixtures(t *testing.T) (*tenancy.Tenant, *auth.User) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	tenant := &tenancy.Tenant{ID: uuid.New(), Name: "Acme Fiber", Slug: "acme"}
	user := &auth.User{
		ID:           uuid.New(),
		TenantID:     tenant.ID,
		Email:        "admin@acme.test",
		DisplayName:  "Acme Admin",
		PasswordHash: string(hash),
		Roles:        []string{auth.RoleAdmin},
		IsActive:     true,
	}
	return tenant, user
}

func login(t *testing.T, router http.Handler, payload string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestLoginSuccess(t *testing.T) {
	tenant, user := fixtures(t)
	router := newRouter(t, tenant, user)

	res := login(t, router, `{"tenant":"acme","email":"admin@acme.test","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, res.Code)

	var out struct {
		AccessToken string `json:"accessToken"`
		ExpiresIn   int    `json:"expiresIn"`
		User        struct {
			TenantID string   `json:"tenantId"`
			Roles    []string `json:"roles"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	assert.NotEmpty(t, out.AccessToken)
	assert.Equal(t, 3600, out.ExpiresIn)
	assert.Equal(t, tenant.ID.String(), out.User.TenantID)
	assert.Equal(t, []string{auth.RoleAdmin}, out.User.Roles)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	tenant, user := fixtures(t)
	router := newRouter(t, tenant, user)

	cases := map[string]string{
		"wrong tenant":   `{"tenant":"nope","email":"admin@acme.test","password":"correct-horse"}`,
		"wrong email":    `{"tenant":"acme","email":"nobody@acme.test","password":"correct-horse"}`,
		"wrong password": `{"tenant":"acme","email":"admin@acme.test","password":"wrong-horse-xx"}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			res := login(t, router, payload)
			assert.Equal(t, http.StatusUnauthorized, res.Code)
			assert.Contains(t, res.Body.String(), "invalid credentials")
		})
	}
}

func TestLoginInactiveUser(t *testing.T) {
	tenant, user := fixtures(t)
	user.IsActive = false
	router := newRouter(t, tenant, user)

	res := login(t, router, `{"tenant":"acme","email":"admin@acme.test","password":"correct-horse"}`)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginValidation(t *testing.T) {
	tenant, user := fixtures(t)
	router := newRouter(t, tenant, user)

	res := login(t, router, `{"tenant":"acme","email":"not-an-email","password":"short"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestMeAndLogout(t *testing.T) {
	tenant, user := fixtures(t)
	router := newRouter(t, tenant, user)

	res := login(t, router, `{"tenant":"acme","email":"admin@acme.test","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, res.Code)
	var out struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))

	me := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	me.Header.Set("Authorization", "Bearer "+out.AccessToken)
	meRes := httptest.NewRecorder()
	router.ServeHTTP(meRes, me)
	require.Equal(t, http.StatusOK, meRes.Code)
	assert.Contains(t, meRes.Body.String(), tenant.ID.String())

	logout := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	logout.Header.Set("Authorization", "Bearer "+out.AccessToken)
	logoutRes := httptest.NewRecorder()
	router.ServeHTTP(logoutRes, logout)
	require.Equal(t, http.StatusOK, logoutRes.Code)

	// The revoked token no longer resolves.
	again := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	again.Header.Set("Authorization", "Bearer "+out.AccessToken)
	againRes := httptest.NewRecorder()
	router.ServeHTTP(againRes, again)
	assert.Equal(t, http.StatusUnauthorized, againRes.Code)
}

func TestMeWithoutToken(t *testing.T) {
	tenant, user := fixtures(t)
	router := newRouter(t, tenant, user)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}
