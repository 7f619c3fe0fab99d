package routes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mercadito-pesca/mercadito-backend/internal/checkout"
	"github.com/mercadito-pesca/mercadito-backend/internal/orders"
	"github.com/mercadito-pesca/mercadito-backend/internal/products"
	pkgAuth "github.com/mercadito-pesca/mercadito-backend/pkg/auth"
	"github.com/mercadito-pesca/mercadito-backend/pkg/config"
	"github.com/mercadito-pesca/mercadito-backend/pkg/enums"
	"github.com/mercadito-pesca/mercadito-backend/pkg/logger"
	"github.com/mercadito-pesca/mercadito-backend/pkg/pagination"
	pkgredis "github.com/mercadito-pesca/mercadito-backend/pkg/redis"
	"github.com/mercadito-pesca/mercadito-backend/pkg/types"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type memoryResponseStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryResponseStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", pkgredis.Nil
}

func (m *memoryResponseStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryResponseStore) IdempotencyKey(scope, id string) string {
	return "test:idempotency:" + scope + ":" + id
}

type stubProducts struct {
	lists int
}

func (s *stubProducts) List(ctx context.Context, filter products.ListFilter, params pagination.Params) (types.Page[products.ProductDTO], error) {
	s.lists++
	return types.Page[products.ProductDTO]{Items: []products.ProductDTO{}}, nil
}

func (s *stubProducts) Get(ctx context.Context, actor *types.Actor, id uuid.UUID) (*products.ProductDTO, error) {
	return &products.ProductDTO{ID: id}, nil
}

func (s *stubProducts) Create(ctx context.Context, actor types.Actor, input products.CreateInput) (*products.ProductDTO, error) {
	return &products.ProductDTO{ID: uuid.New()}, nil
}

func (s *stubProducts) Update(ctx context.Context, actor types.Actor, id uuid.UUID, input products.UpdateInput) (*products.ProductDTO, error) {
	return &products.ProductDTO{ID: id}, nil
}

type stubCheckout struct {
	mu    sync.Mutex
	calls int
}

func (s *stubCheckout) Checkout(ctx context.Context, userID uuid.UUID, input checkout.Input) (*checkout.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return &checkout.Result{Order: orders.OrderDTO{ID: uuid.New(), UserID: userID}}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", CORSOrigins: []string{"https://mercadito.test"}},
		JWT: config.JWTConfig{Secret: "router-test-secret", Issuer: "mercadito", ExpirationMinutes: 5},
	}
}

func bearer(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: uuid.New(), Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func newTestRouter(svc Services) (http.Handler, *config.Config) {
	cfg := testConfig()
	infra := Infra{
		Postgres:    stubPinger{},
		Redis:       stubPinger{},
		Idempotency: &memoryResponseStore{data: map[string]string{}},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
	}
	return NewRouter(cfg, logger.Nop(), infra, svc), cfg
}

func TestHealthAndMetrics(t *testing.T) {
	router, _ := newTestRouter(Services{})

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestPublicCatalogIsAnonymous(t *testing.T) {
	productsSvc := &stubProducts{}
	router, _ := newTestRouter(Services{Products: productsSvc})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if productsSvc.lists != 1 {
		t.Fatalf("expected product list call")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token: expected 401 got %d", resp.Code)
	}
}

func TestPrivateRoutesRequireToken(t *testing.T) {
	router, _ := newTestRouter(Services{})
	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/cart"},
		{http.MethodPost, "/api/v1/checkout"},
		{http.MethodGet, "/api/v1/orders"},
		{http.MethodPost, "/api/v1/quotes"},
		{http.MethodGet, "/api/v1/me"},
		{http.MethodPost, "/api/v1/chat/messages"},
		{http.MethodGet, "/api/v1/admin/reports/catalog"},
	}
	for _, tc := range cases {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(tc.method, tc.path, nil))
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401 got %d", tc.method, tc.path, resp.Code)
		}
	}
}

func TestAdminRoutesRequireStaff(t *testing.T) {
	router, cfg := newTestRouter(Services{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/reports/catalog", nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.RoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}

	// Staff passes the guard and reaches the unwired service.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/reports/catalog", nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.RoleStaff))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 from missing service got %d", resp.Code)
	}
}

func TestCheckoutRequiresIdempotencyKeyAndReplays(t *testing.T) {
	checkoutSvc := &stubCheckout{}
	router, cfg := newTestRouter(Services{Checkout: checkoutSvc})
	auth := bearer(t, cfg, enums.RoleCustomer)
	body := `{"shipping_address":"Av. Costanera 100"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req.Header.Set("Authorization", auth)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("missing key: expected 400 got %d", resp.Code)
	}

	var first string
	for i := 0; i < 2; i++ {
		req = httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
		req.Header.Set("Authorization", auth)
		req.Header.Set("Idempotency-Key", "checkout-1")
		resp = httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusCreated {
			t.Fatalf("attempt %d: expected 201 got %d", i, resp.Code)
		}
		if i == 0 {
			first = resp.Body.String()
			continue
		}
		if resp.Header().Get("Idempotent-Replayed") != "true" {
			t.Fatalf("second attempt should be replayed")
		}
		if resp.Body.String() != first {
			t.Fatalf("replayed body differs")
		}
	}
	if checkoutSvc.calls != 1 {
		t.Fatalf("expected one checkout, got %d", checkoutSvc.calls)
	}
}

func TestCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(Services{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/checkout", nil)
	req.Header.Set("Origin", "https://mercadito.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Idempotency-Key")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "https://mercadito.test" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}
