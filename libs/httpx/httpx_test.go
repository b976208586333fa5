package httpx

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestWithRequestIDPropagatesIncomingID(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/doctors", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if seen != "req-123" || rw.Header().Get(RequestIDHeader) != "req-123" {
		t.Fatalf("expected req-123 to propagate, got ctx=%q header=%q", seen, rw.Header().Get(RequestIDHeader))
	}

	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/api/v1/doctors", nil))
	if rw.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected a generated request id")
	}
}

func TestRateLimiterBucketsByToken(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	h := rl.Middleware()(okHandler())

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.Header.Set("token", "alice")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, first)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}

	again := httptest.NewRequest(http.MethodGet, "/", nil)
	again.Header.Set("token", "alice")
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, again)
	if rw.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rw.Code)
	}

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.Header.Set("token", "bob")
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, other)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected a separate bucket for bob, got %d", rw.Code)
	}
}

func TestRateLimiterWindowResets(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.allow("k") {
		t.Fatal("first call should pass")
	}
	if rl.allow("k") {
		t.Fatal("second call in window should be limited")
	}
	now = now.Add(2 * time.Minute)
	if !rl.allow("k") {
		t.Fatal("call after window should pass")
	}
}

func TestWithCORSPreflight(t *testing.T) {
	h := WithCORS(CORSPolicy{
		AllowedOrigins: []string{"http://localhost:5173"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"token", "Content-Type"},
		MaxAge:         10 * time.Minute,
	})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/profile", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rw.Code)
	}
	if rw.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("unexpected allow origin %q", rw.Header().Get("Access-Control-Allow-Origin"))
	}
	if rw.Header().Get("Access-Control-Max-Age") != "600" {
		t.Fatalf("unexpected max age %q", rw.Header().Get("Access-Control-Max-Age"))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.test")
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("foreign origin must not be allowed")
	}
}

func TestAccessLogAndMetricsUseRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "portal")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/doctors/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := Chain(mux, WithAccessLog(logger), metrics.Middleware())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/doctors/doc-9", nil)
	req.Header.Set("token", "secret-token")
	h.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	if !strings.Contains(line, `"route":"GET /api/v1/doctors/{id}"`) || !strings.Contains(line, `"status":404`) {
		t.Fatalf("unexpected access log: %s", line)
	}
	if strings.Contains(line, "secret-token") {
		t.Fatal("token must not be logged")
	}
	got := testutil.ToFloat64(metrics.requests.WithLabelValues(http.MethodGet, "GET /api/v1/doctors/{id}", "404"))
	if got != 1 {
		t.Fatalf("expected one counted request, got %v", got)
	}
}

func TestWithRecover(t *testing.T) {
	h := WithRecover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	if rw.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rw.Code)
	}
}
