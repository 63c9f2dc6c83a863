// Package ratelimit decides whether a client key may start a generation.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"paperai/api/internal/config"
)

// AnonymousKey is shared by every caller without a derivable origin.
const AnonymousKey = "anonymous"

type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter is the admission capability the gateway is built with.
type Limiter interface {
	Admit(ctx context.Context, key string) (Decision, error)
}

// NoopLimiter admits everything.
var NoopLimiter Limiter = noopLimiter{}

type noopLimiter struct{}

func (noopLimiter) Admit(context.Context, string) (Decision, error) {
	return Decision{Allowed: true}, nil
}

// BuildLimiter constructs a limiter based on configuration.
func BuildLimiter(cfg config.RateLimit) (Limiter, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	switch mode {
	case "", "disabled":
		return NoopLimiter, nil
	case "memory":
		if cfg.RPS <= 0 || cfg.Burst < 1 {
			return nil, fmt.Errorf("memory rate limiter needs rps > 0 and burst >= 1")
		}
		return NewMemoryLimiter(cfg.RPS, cfg.Burst), nil
	case "redis":
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, fmt.Errorf("rate limiter redis_addr is required for redis mode")
		}
		if cfg.Limit < 1 || cfg.Window <= 0 {
			return nil, fmt.Errorf("redis rate limiter needs limit >= 1 and window > 0")
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return NewRedisLimiter(rdb, cfg.Limit, cfg.Window), nil
	default:
		return nil, fmt.Errorf("unsupported rate limiter mode %q", cfg.Mode)
	}
}

// ClientKey derives the limiter key from the configured origin header.
func ClientKey(r *http.Request, header string) string {
	if header == "" {
		return AnonymousKey
	}
	v := strings.TrimSpace(r.Header.Get(header))
	// X-Forwarded-For style lists: first hop is the client
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	if v == "" {
		return AnonymousKey
	}
	return v
}
