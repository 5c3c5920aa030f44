package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsecheck-io/pulsecheck/internal/shared"
	"github.com/pulsecheck-io/pulsecheck/internal/tenancy"
	_ "github.com/pulsecheck-io/pulsecheck/testing"
)

type mockItemRepo struct {
	items map[uuid.UUID]Item
}

func newMockItemRepo() *mockItemRepo {
	return &mockItemRepo{items: make(map[uuid.UUID]Item)}
}

func (m *mockItemRepo) Create(ctx context.Context, scope tenancy.Scope, item Item) (Item, error) {
	item.ID = uuid.New()
	item.TenantID = scope.StampTenant(item.TenantID)
	item.CreatedAt = time.Now().UTC()
	m.items[item.ID] = item
	return item, nil
}

func (m *mockItemRepo) List(ctx context.Context, scope tenancy.Scope, filter ListFilter) ([]Item, error) {
	out := make([]Item, 0)
	for _, it := range m.items {
		if it.TenantID != scope.TenantID() {
			continue
		}
		if filter.Category != nil && (it.Category == nil || *it.Category != *filter.Category) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (m *mockItemRepo) Get(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (Item, error) {
	it, ok := m.items[id]
	if !ok {
		return Item{}, shared.ErrNotFound
	}
	if err := scope.CheckRow(it.TenantID); err != nil {
		return Item{}, err
	}
	return it, nil
}

func (m *mockItemRepo) Update(ctx context.Context, scope tenancy.Scope, item Item) error {
	existing, ok := m.items[item.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if err := scope.CheckRow(existing.TenantID); err != nil {
		return err
	}
	item.TenantID = existing.TenantID
	m.items[item.ID] = item
	return nil
}

var _ Repository = (*mockItemRepo)(nil)

func newTestRouter(repo Repository, tenantID uuid.UUID) http.Handler {
	handler := NewHandler(nil, NewService(repo, nil, nil))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := tenancy.ContextWithIdentity(req.Context(), tenancy.UserIdentity(tenantID, "u1", []string{"admin"}))
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/api/catalog-items", handler.MountRoutes)
	return r
}

func TestHandlerCreateStampsTenant(t *testing.T) {
	tenantID := uuid.New()
	repo := newMockItemRepo()
	router := newTestRouter(repo, tenantID)

	req := httptest.NewRequest(http.MethodPost, "/api/catalog-items/", strings.NewReader(`{"name":"Fiber 300 Installation","category":"installation"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusCreated, res.Code)
	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))

	stored := repo.items[uuid.MustParse(out.ID)]
	assert.Equal(t, tenantID, stored.TenantID)
}

func TestHandlerListIsTenantScoped(t *testing.T) {
	tenantID := uuid.New()
	repo := newMockItemRepo()

	_, err := repo.Create(context.Background(), tenancy.Implicit(tenantID), Item{Name: "mine", IsActive: true})
	require.NoError(t, err)
	_, err = repo.Create(context.Background(), tenancy.Implicit(uuid.New()), Item{Name: "theirs", IsActive: true})
	require.NoError(t, err)

	router := newTestRouter(repo, tenantID)
	req := httptest.NewRequest(http.MethodGet, "/api/catalog-items/", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	var out []map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "mine", out[0]["name"])
}

func TestHandlerGetOtherTenantIsNotFound(t *testing.T) {
	repo := newMockItemRepo()
	other, err := repo.Create(context.Background(), tenancy.Implicit(uuid.New()), Item{Name: "theirs"})
	require.NoError(t, err)

	router := newTestRouter(repo, uuid.New())
	req := httptest.NewRequest(http.MethodGet, "/api/catalog-items/"+other.ID.String(), nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestHandlerRequiresIdentity(t *testing.T) {
	handler := NewHandler(nil, NewService(newMockItemRepo(), nil, nil))
	r := chi.NewRouter()
	r.Route("/api/catalog-items", handler.MountRoutes)

	req := httptest.NewRequest(http.MethodGet, "/api/catalog-items/", nil)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, req)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestHandlerValidation(t *testing.T) {
	router := newTestRouter(newMockItemRepo(), uuid.New())

	req := httptest.NewRequest(http.MethodPost, "/api/catalog-items/", strings.NewReader(`{"category":"installation"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusBadRequest, res.Code)
}
