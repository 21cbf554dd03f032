package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rmia46/roam-mc-server-manager/internal/config"
	"github.com/rmia46/roam-mc-server-manager/internal/server"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestOriginAllowed(t *testing.T) {
	allowed := []string{"tauri://localhost", "http://localhost:5173"}

	if !OriginAllowed("tauri://localhost", allowed) {
		t.Fatalf("expected origin to be allowed")
	}
	if !OriginAllowed("HTTP://LOCALHOST:5173", allowed) {
		t.Fatalf("expected origin match to ignore case")
	}
	if !OriginAllowed("", allowed) {
		t.Fatalf("expected empty origin to be allowed")
	}
	if OriginAllowed("https://evil.example", allowed) {
		t.Fatalf("expected unknown origin to be rejected")
	}
	if !OriginAllowed("https://anything.local", []string{" * "}) {
		t.Fatalf("expected wildcard allowlist to permit origin")
	}
}

func TestContainsWildcard(t *testing.T) {
	if !containsWildcard([]string{"tauri://localhost", "*"}) {
		t.Fatalf("expected wildcard to be detected")
	}
	if containsWildcard([]string{"https://example.com"}) {
		t.Fatalf("did not expect wildcard to be detected")
	}
}

func TestClientLimitersRefill(t *testing.T) {
	limiters := newClientLimiters(2)
	now := time.Now()
	limiters.now = func() time.Time { return now }
	key := "127.0.0.1"

	if !limiters.allow(key) {
		t.Fatalf("expected first request to be allowed")
	}
	if !limiters.allow(key) {
		t.Fatalf("expected second request to be allowed")
	}
	if limiters.allow(key) {
		t.Fatalf("expected third request to be rate limited")
	}
	if !limiters.allow("10.0.0.2") {
		t.Fatalf("expected other clients to have their own bucket")
	}

	now = now.Add(30 * time.Second)
	if !limiters.allow(key) {
		t.Fatalf("expected one token after half a minute")
	}
	if limiters.allow(key) {
		t.Fatalf("expected bucket to be empty again")
	}
}

func TestClientLimitersForgetIdleClients(t *testing.T) {
	limiters := newClientLimiters(10)
	now := time.Now()
	limiters.now = func() time.Time { return now }

	limiters.allow("10.0.0.1")
	now = now.Add(2 * idleClientTTL)
	limiters.allow("10.0.0.2")

	if _, ok := limiters.clients["10.0.0.1"]; ok {
		t.Fatalf("expected idle client to be dropped")
	}
	if len(limiters.clients) != 1 {
		t.Fatalf("expected one tracked client, got %d", len(limiters.clients))
	}
}

func TestRateLimitSkipsHealth(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(true, 1))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/v1/server/stats", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("health request %d: expected 200, got %d", i, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/server/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected first api request to pass, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/server/stats", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("expected Retry-After 60, got %q", got)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(false, 1))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	router := gin.New()
	router.Use(CORS(config.CORSConfig{
		AllowedOrigins: []string{"tauri://localhost"},
		AllowedMethods: []string{"GET", "POST"},
	}))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "tauri://localhost")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "tauri://localhost" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST" {
		t.Fatalf("unexpected allow-methods %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("expected credentials for an explicit origin, got %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unknown origin, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow-origin, got %q", got)
	}
}

func TestCORSWildcardOmitsCredentials(t *testing.T) {
	router := gin.New()
	router.Use(CORS(config.CORSConfig{AllowedOrigins: []string{"*"}}))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://any.example")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://any.example" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Fatalf("expected no credentials with a wildcard, got %q", got)
	}
}

func TestRequestLoggerRecordsErrorKind(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	router := gin.New()
	router.Use(requestLogger(func() *slog.Logger { return logger }))
	router.POST("/api/v1/server/start", func(c *gin.Context) {
		_ = c.Error(&server.ProcessAlreadyRunningError{PID: 42})
		c.JSON(http.StatusConflict, gin.H{"error": "already running"})
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/server/start?force=1", nil))

	var record map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if record["level"] != "WARN" {
		t.Fatalf("expected WARN for a 409, got %v", record["level"])
	}
	if record["error_kind"] != "conflict" {
		t.Fatalf("expected conflict kind, got %v", record["error_kind"])
	}
	if record["query"] != "force=1" {
		t.Fatalf("expected query to be logged, got %v", record["query"])
	}
}

func TestRequestLoggerSkipsHealthChecks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	router := gin.New()
	router.Use(requestLogger(func() *slog.Logger { return logger }))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if buf.Len() != 0 {
		t.Fatalf("expected health check not to be logged, got %q", buf.String())
	}
}

func TestRecoveryReturns500(t *testing.T) {
	router := gin.New()
	router.Use(Recovery())
	router.GET("/boom", func(c *gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
