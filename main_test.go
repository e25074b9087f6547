package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rrealai/invoice/config"
	"github.com/rrealai/invoice/pkg/metrics"
	"github.com/rrealai/invoice/service"
)

type nopProcessor struct{}

func (nopProcessor) Process(context.Context, service.ProcessInput) (*service.ProcessResult, error) {
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Port: 3001, Environment: config.EnvProduction, MaxUploadBytes: 10 << 20},
		RateLimit: config.RateLimitConfig{Requests: 2, Window: time.Minute},
	}
}

func TestSetupRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := setupRouter(testConfig(), nopProcessor{}, metrics.New())

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{"health", http.MethodGet, "/health", http.StatusOK},
		{"locations", http.MethodGet, "/api/locations", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK},
		{"wrong method", http.MethodGet, "/api/process-invoice", http.StatusMethodNotAllowed},
		{"preflight", http.MethodOptions, "/api/process-invoice", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if w.Header().Get("X-Request-ID") == "" {
				t.Error("Expected X-Request-ID header")
			}
		})
	}
}

func TestSetupRouterRateLimitsAPI(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := setupRouter(testConfig(), nopProcessor{}, metrics.New())

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/locations", nil)
		req.RemoteAddr = "10.1.1.1:5000"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		last = w.Code
		if strings.HasPrefix(req.URL.Path, "/api") && w.Header().Get("Cache-Control") == "" {
			t.Error("Expected no-cache header on API routes")
		}
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("Expected third request to be limited, got %d", last)
	}

	// health is outside the limited group
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.1.1.1:5000"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected health to stay available, got %d", w.Code)
	}
}

func TestLoadConfigFallsBackToEnv(t *testing.T) {
	t.Setenv("CLICKUP_LIST_ID", "list-env")
	t.Setenv("PORT", "")
	t.Setenv("APP_ENV", "")

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Expected env fallback, got %v", err)
	}
	if cfg.ClickUp.ListID != "list-env" {
		t.Errorf("Expected list id from env, got %q", cfg.ClickUp.ListID)
	}
}
