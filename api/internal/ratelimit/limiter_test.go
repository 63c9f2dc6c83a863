package ratelimit

import (
	"context"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"paperai/api/internal/config"
)

// TestBuildLimiterDisabledReturnsNoop ensures disabled mode returns a no-op limiter.
func TestBuildLimiterDisabledReturnsNoop(t *testing.T) {
	for _, mode := range []string{"", "disabled", " Disabled "} {
		l, err := BuildLimiter(config.RateLimit{Mode: mode})
		if err != nil {
			t.Fatalf("build limiter %q: %v", mode, err)
		}
		if l != NoopLimiter {
			t.Fatalf("expected noop limiter for %q", mode)
		}
	}
}

// TestBuildLimiterMemory ensures memory mode returns a per-key limiter.
func TestBuildLimiterMemory(t *testing.T) {
	l, err := BuildLimiter(config.RateLimit{Mode: "memory", RPS: 1, Burst: 2})
	if err != nil {
		t.Fatalf("build limiter: %v", err)
	}
	if _, ok := l.(*MemoryLimiter); !ok {
		t.Fatalf("expected memory limiter, got %T", l)
	}
}

// TestBuildLimiterRejectsBadConfig covers unsupported modes and missing settings.
func TestBuildLimiterRejectsBadConfig(t *testing.T) {
	bad := []config.RateLimit{
		{Mode: "cloudflare"},
		{Mode: "memory", RPS: 0, Burst: 1},
		{Mode: "redis", Limit: 5, Window: time.Minute},
		{Mode: "redis", RedisAddr: "localhost:6379", Limit: 0, Window: time.Minute},
	}
	for _, cfg := range bad {
		if _, err := BuildLimiter(cfg); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}

func TestClientKey(t *testing.T) {
	r := httptest.NewRequest("POST", "/v1/generate-paper", nil)
	if got := ClientKey(r, "CF-Connecting-IP"); got != AnonymousKey {
		t.Fatalf("missing header should map to %q, got %q", AnonymousKey, got)
	}
	r.Header.Set("CF-Connecting-IP", " 203.0.113.7 ")
	if got := ClientKey(r, "CF-Connecting-IP"); got != "203.0.113.7" {
		t.Fatalf("unexpected key %q", got)
	}
	r.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")
	if got := ClientKey(r, "X-Forwarded-For"); got != "198.51.100.1" {
		t.Fatalf("unexpected forwarded key %q", got)
	}
	if got := ClientKey(r, ""); got != AnonymousKey {
		t.Fatalf("empty header name should map to anonymous, got %q", got)
	}
}

func TestMemoryLimiterPerKeyBurst(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := NewMemoryLimiter(1, 2)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, _ := m.Admit(ctx, "a")
		if !d.Allowed {
			t.Fatalf("request %d within burst was denied", i)
		}
	}
	d, _ := m.Admit(ctx, "a")
	if d.Allowed {
		t.Fatalf("third request should be denied")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Second {
		t.Fatalf("unexpected retry after %v", d.RetryAfter)
	}

	if d, _ := m.Admit(ctx, "b"); !d.Allowed {
		t.Fatalf("other keys have their own bucket")
	}

	now = now.Add(time.Second)
	if d, _ := m.Admit(ctx, "a"); !d.Allowed {
		t.Fatalf("token should refill after a second")
	}
}

func TestMemoryLimiterSweep(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := NewMemoryLimiter(1, 1)
	m.now = func() time.Time { return now }
	_, _ = m.Admit(context.Background(), "old")
	now = now.Add(time.Hour)
	_, _ = m.Admit(context.Background(), "fresh")

	if n := m.Sweep(10 * time.Minute); n != 1 {
		t.Fatalf("expected one bucket swept, got %d", n)
	}
	if _, ok := m.buckets["fresh"]; !ok {
		t.Fatalf("fresh bucket should survive")
	}
}

// TestRedisLimiterFixedWindow runs against a real redis when REDIS_ADDR is set.
func TestRedisLimiterFixedWindow(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	ctx := context.Background()
	l := NewRedisLimiter(rdb, 2, time.Minute)
	key := "test-" + uuid.NewString()

	for i := 0; i < 2; i++ {
		d, err := l.Admit(ctx, key)
		if err != nil {
			t.Fatalf("admit: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	d, err := l.Admit(ctx, key)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if d.Allowed || d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
		t.Fatalf("expected denial with retry-after, got %+v", d)
	}
}

func TestRedisLimiterSurfacesConnectionErrors(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()
	if _, err := NewRedisLimiter(rdb, 1, time.Minute).Admit(context.Background(), "k"); err == nil {
		t.Fatalf("expected connection error")
	}
}
