package auth

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"

	"accountd/internal/httpapi"
	"accountd/internal/i18n"
)

// LimitPolicy is one fixed-window budget. Each sensitive route carries its
// own policy and key namespace, so exhausting the register budget says
// nothing about the login budget.
type LimitPolicy struct {
	Name   string
	Max    int
	Window time.Duration
}

// RateLimiter counts hits per (policy, client key) in Redis. The counter
// key expires with the window, so a fresh window starts from zero without
// any sweeper.
type RateLimiter struct {
	rdb *redis.Client
}

func NewRateLimiter(rdb *redis.Client) *RateLimiter {
	return &RateLimiter{rdb: rdb}
}

// Allow records one hit and reports whether it fits the budget. When the
// budget is exhausted it also returns how long until the window resets.
func (l *RateLimiter) Allow(ctx context.Context, policy LimitPolicy, key string) (bool, time.Duration, error) {
	counterKey := "rl:" + policy.Name + ":" + key

	count, err := l.rdb.Incr(ctx, counterKey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("increment rate limit counter: %w", err)
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, counterKey, policy.Window).Err(); err != nil {
			return false, 0, fmt.Errorf("set rate limit window: %w", err)
		}
	}

	if count <= int64(policy.Max) {
		return true, 0, nil
	}

	retryAfter, err := l.rdb.PTTL(ctx, counterKey).Result()
	if err != nil || retryAfter <= 0 {
		retryAfter = policy.Window
	}
	if retryAfter < time.Second {
		retryAfter = time.Second
	}

	return false, retryAfter, nil
}

// Middleware guards one route with the given policy, keyed by client IP.
// A denied request gets 429 with a Retry-After hint; a limiter backend
// failure is a system error, never silently waved through.
func (l *RateLimiter) Middleware(policy LimitPolicy, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang := i18n.Resolve(r)

		allowed, retryAfter, err := l.Allow(r.Context(), policy, ClientIP(r))
		if err != nil {
			sentry.CaptureException(err)
			httpapi.Fail(w, lang, http.StatusInternalServerError, "INTERNAL_ERROR")
			return
		}
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			httpapi.Fail(w, lang, ErrRateLimited.Status, ErrRateLimited.Name)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP prefers the first X-Forwarded-For hop, matching what the
// fronting proxy reports in production.
func ClientIP(r *http.Request) string {
	xForwardedFor := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xForwardedFor != "" {
		parts := strings.Split(xForwardedFor, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}

	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}

	return "unknown"
}
