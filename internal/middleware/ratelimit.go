package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/misbot/backend/internal/apperr"
)

// Limiter counts hits on key inside a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, retryAfter time.Duration, err error)
}

// RedisLimiter is a fixed-window counter: INCR, and EXPIRE on the first hit.
type RedisLimiter struct {
	client *redis.Client
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	key = "ratelimit:" + key
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, window).Err(); err != nil {
			return false, 0, fmt.Errorf("rate limit expire: %w", err)
		}
	}
	if count <= int64(limit) {
		return true, 0, nil
	}
	ttl, err := l.client.PTTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		// A key stuck without TTL would block forever.
		_ = l.client.Expire(ctx, key, window).Err()
		ttl = window
	}
	return false, ttl, nil
}

// Rule is one named limit.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

var (
	GlobalRule = Rule{Name: "global", Limit: 100, Window: 15 * time.Minute}
	TapRule    = Rule{Name: "tap", Limit: 60, Window: time.Minute}
)

// RateLimit rejects a client with 429 once it exceeds rule. A nil limiter
// disables the check. Limiter errors let the request through.
func RateLimit(l Limiter, rule Rule, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rule.Name + ":" + ClientKey(r)
			allowed, retryAfter, err := l.Allow(r.Context(), key, rule.Limit, rule.Window)
			if err != nil {
				logger.Warn("rate limiter unavailable", "rule", rule.Name, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
			if !allowed {
				secs := int((retryAfter + time.Second - 1) / time.Second)
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeError(w, apperr.New(apperr.CodeRateLimited, "too many requests, please slow down"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientKey identifies the caller: the account once authenticated, the
// remote IP before that.
func ClientKey(r *http.Request) string {
	if id, ok := IdentityFromCtx(r.Context()); ok {
		return "acct:" + strconv.FormatInt(id.AccountID, 10)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
