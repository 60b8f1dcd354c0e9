package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func serveLimited(h echo.HandlerFunc, method, ip string) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(method, "/api/v1/rooms/1/items/a/start", nil)
	req.RemoteAddr = ip + ":5000"
	rec := httptest.NewRecorder()
	return rec, h(e.NewContext(req, rec))
}

func TestRateLimit_WithinBurst(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	for i := 0; i < 5; i++ {
		rec, err := serveLimited(h, http.MethodPost, "10.0.0.1")
		if err != nil {
			t.Fatalf("request %d: unexpected error %v", i+1, err)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit 10, got %q", i+1, rec.Header().Get("X-RateLimit-Limit"))
		}
	}
}

func TestRateLimit_ExceedsBurst(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	for i := 0; i < 2; i++ {
		if _, err := serveLimited(h, http.MethodPost, "10.0.0.2"); err != nil {
			t.Fatalf("request %d: unexpected error %v", i+1, err)
		}
	}
	rec, err := serveLimited(h, http.MethodPost, "10.0.0.2")
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	// Other clients have their own budget.
	if _, err := serveLimited(h, http.MethodPost, "10.0.0.3"); err != nil {
		t.Errorf("other client: unexpected error %v", err)
	}
}

func TestRateLimit_ReadsNotLimited(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	for i := 0; i < 10; i++ {
		if _, err := serveLimited(h, http.MethodGet, "10.0.0.4"); err != nil {
			t.Fatalf("GET %d: unexpected error %v", i+1, err)
		}
	}
}

func TestLimiterStore_EvictsIdleClients(t *testing.T) {
	s := newLimiterStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, IdleTTL: time.Minute})
	start := time.Now()
	s.get("a", start)
	s.get("b", start.Add(90*time.Second))
	s.get("b", start.Add(3*time.Minute))

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients["a"]; ok {
		t.Error("expected idle client a to be evicted")
	}
	if _, ok := s.clients["b"]; !ok {
		t.Error("expected active client b to remain")
	}
}
