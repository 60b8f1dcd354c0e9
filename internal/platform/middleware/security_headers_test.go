package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func serveHeaders(t *testing.T, terminalID string) http.Header {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/rooms", nil), rec)
	if err := SecurityHeaders(terminalID)(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return rec.Header()
}

func TestSecurityHeaders(t *testing.T) {
	h := serveHeaders(t, "desk-1")
	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
		HeaderTerminal:           "desk-1",
	}
	for k, v := range want {
		if got := h.Get(k); got != v {
			t.Errorf("%s: expected %q, got %q", k, v, got)
		}
	}
}

func TestSecurityHeaders_NoTerminal(t *testing.T) {
	if got := serveHeaders(t, "").Get(HeaderTerminal); got != "" {
		t.Errorf("expected no terminal header, got %q", got)
	}
}
