package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"jewelry-catalog/internal/config"
	"jewelry-catalog/internal/database"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{Port: "0", Env: "test", AllowedOrigins: []string{"http://localhost:5173"}},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			Path:   filepath.Join(t.TempDir(), "catalog.db"),
		},
		Catalog:   config.CatalogConfig{MaxImages: 5, MaxImageBytes: 10 << 20},
		RateLimit: config.RateLimitConfig{Requests: 2, Window: time.Minute},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	db, err := database.Open(cfg.Database, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if err := db.Initialize(context.Background()); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	srv := NewServer(cfg, zap.NewNop(), db)
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func serve(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, req)
	return w
}

func TestHealthReportsSchemaVersion(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	w := serve(srv, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var health map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("failed to decode health: %v", err)
	}
	if health["status"] != "up" || health["schema_version"] != "2" {
		t.Errorf("unexpected health: %v", health)
	}
}

func TestMetricsExposeCatalogSeries(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	png := base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	body := `{"product_number":"12345","category":"bangles","price":"49.99","images":["data:image/png;base64,` + png + `"]}`
	if w := serve(srv, http.MethodPost, "/api/admin/products", body); w.Code != http.StatusCreated {
		t.Fatalf("create failed: %d %s", w.Code, w.Body.String())
	}
	serve(srv, http.MethodGet, "/api/categories/bangles/products", "")

	w := serve(srv, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	out := w.Body.String()
	for _, want := range []string{
		`catalog_products_created_total 1`,
		`catalog_http_requests_total{method="GET",route="/api/categories/{category}/products",status="200"} 1`,
		`catalog_store_operations_total{operation="create_product",result="ok"} 1`,
		`go_sql_open_connections`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestAdminRoutesAreRateLimited(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, serve(srv, http.MethodGet, "/api/admin/products/new", "").Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("expected two admitted requests then 429, got %v", codes)
	}

	if w := serve(srv, http.MethodGet, "/api/categories", ""); w.Code != http.StatusOK {
		t.Errorf("storefront routes are not limited, got %d", w.Code)
	}
}

func TestRedisBackedRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis = config.RedisConfig{Enabled: true, Host: mr.Host(), Port: mr.Port()}
	srv := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		serve(srv, http.MethodGet, "/api/admin/products/new", "")
	}
	if w := serve(srv, http.MethodGet, "/api/admin/products/new", ""); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 from the shared limiter, got %d", w.Code)
	}
	if len(mr.Keys()) == 0 {
		t.Error("expected the limiter to keep its counters in redis")
	}
}

func TestAdminSecretProtectsForm(t *testing.T) {
	cfg := testConfig(t)
	cfg.Admin.JWTSecret = "server-secret"
	srv := newTestServer(t, cfg)

	if w := serve(srv, http.MethodPost, "/api/admin/products", `{}`); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}
