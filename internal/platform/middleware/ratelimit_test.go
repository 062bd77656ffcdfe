package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5}

	e := echo.New()
	handler := RateLimit(cfg)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		if err := handler(c); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit '10', got %q", i+1, got)
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2}

	e := echo.New()
	handler := RateLimit(cfg)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for i := 0; i < 2; i++ {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		if err := handler(c); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	err := handler(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestRateLimit_SeparateClients(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}

	e := echo.New()
	handler := RateLimit(cfg)(func(c echo.Context) error { return nil })

	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		if err := handler(e.NewContext(req, httptest.NewRecorder())); err != nil {
			t.Errorf("client %s: unexpected error %v", ip, err)
		}
	}
}

func TestTokenBucket_Refills(t *testing.T) {
	b := newTokenBucket(2, 1)
	now := time.Now()
	if ok, _ := b.take(now); !ok {
		t.Fatal("expected first token")
	}
	if ok, retry := b.take(now); ok || retry < 1 {
		t.Fatalf("expected empty bucket, got ok=%v retry=%d", ok, retry)
	}
	if ok, _ := b.take(now.Add(time.Second)); !ok {
		t.Error("expected bucket to refill after a second")
	}
}

func TestBucketStore_EvictsRefilledBuckets(t *testing.T) {
	start := time.Now()
	t0 := start.Add(time.Second)
	s := &bucketStore{
		buckets:   make(map[string]*tokenBucket),
		cfg:       RateLimitConfig{RequestsPerSecond: 0.01, BurstSize: 2},
		lastSweep: start,
	}
	s.get("idle", t0).take(t0)
	busy := s.get("busy", t0)
	busy.take(t0)
	busy.take(t0)

	// Within the sweep interval nothing is dropped.
	s.get("other", t0.Add(30*time.Second))
	if len(s.buckets) != 3 {
		t.Fatalf("expected 3 buckets before sweep, got %d", len(s.buckets))
	}

	// idle regains its token after 100s; busy needs 200s.
	s.get("other", t0.Add(150*time.Second))
	if _, ok := s.buckets["idle"]; ok {
		t.Error("refilled bucket should be evicted")
	}
	if s.buckets["busy"] != busy {
		t.Error("draining bucket must be kept")
	}
}
