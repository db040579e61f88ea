package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func serve(t *testing.T, e *echo.Echo, h echo.HandlerFunc, ip string, user string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ip + ":1234"
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if user != "" {
		c.Set("user_id", user)
	}
	return rec, h(c)
}

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	e := echo.New()
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})
	h := rl.Middleware()(okHandler)

	for i := 0; i < 5; i++ {
		rec, err := serve(t, e, h, "10.0.0.1", "")
		if err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit '10', got %q", i+1, got)
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	e := echo.New()
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})
	h := rl.Middleware()(okHandler)

	for i := 0; i < 2; i++ {
		if _, err := serve(t, e, h, "10.0.0.1", ""); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
	}

	rec, err := serve(t, e, h, "10.0.0.1", "")
	if err == nil {
		t.Fatal("expected error for rate-limited request")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", httpErr.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("expected X-RateLimit-Remaining 0, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimit_SeparateClients(t *testing.T) {
	e := echo.New()
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})
	h := rl.Middleware()(okHandler)

	if _, err := serve(t, e, h, "10.0.0.1", ""); err != nil {
		t.Fatalf("first client: %v", err)
	}
	if _, err := serve(t, e, h, "10.0.0.2", ""); err != nil {
		t.Fatalf("second client should have its own bucket: %v", err)
	}
	if _, err := serve(t, e, h, "10.0.0.1", "staff-1"); err != nil {
		t.Fatalf("authenticated caller should be keyed by user: %v", err)
	}
	if _, err := serve(t, e, h, "10.0.0.1", ""); err == nil {
		t.Fatal("expected the exhausted ip bucket to reject")
	}
}

func TestRateLimiter_SweepDropsIdleClients(t *testing.T) {
	now := time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, IdleTTL: time.Minute})
	rl.now = func() time.Time { return now }

	rl.get("a")
	rl.get("b")
	now = now.Add(30 * time.Second)
	rl.get("b")
	now = now.Add(45 * time.Second)

	if removed := rl.Sweep(); removed != 1 {
		t.Fatalf("expected 1 idle limiter removed, got %d", removed)
	}
	if _, ok := rl.clients["b"]; !ok {
		t.Error("expected recently seen client to be kept")
	}
}
