package security

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/hook"
	"github.com/redis/go-redis/v9"
)

const rateLimitWindow = time.Minute

type RateLimiter struct {
	redis     *redis.Client
	perMinute int64
}

func NewRateLimiter(redisClient *redis.Client, perMinute int) *RateLimiter {
	return &RateLimiter{redis: redisClient, perMinute: int64(perMinute)}
}

// Allow counts one request for key in the current one-minute window and
// reports whether it is still under the limit.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	count, err := r.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("incrementing %s: %w", redisKey, err)
	}
	if count == 1 {
		if err := r.redis.Expire(ctx, redisKey, rateLimitWindow).Err(); err != nil {
			return false, fmt.Errorf("setting expiry on %s: %w", redisKey, err)
		}
	}
	return count <= r.perMinute, nil
}

// Middleware limits money-moving endpoints per user, falling back to the
// client IP, and rejects obvious bots. Redis failures let the request
// through.
func (r *RateLimiter) Middleware() *hook.Handler[*core.RequestEvent] {
	return &hook.Handler[*core.RequestEvent]{
		Id: "ticketMarketRateLimit",
		Func: func(e *core.RequestEvent) error {
			if isSuspiciousUserAgent(e.Request.UserAgent()) {
				return apis.NewForbiddenError("Access denied", nil)
			}

			var key string
			if e.Auth != nil {
				key = "user:" + e.Auth.Id
			} else {
				key = "ip:" + e.RealIP()
			}

			allowed, err := r.Allow(e.Request.Context(), key)
			if err != nil {
				slog.Error("rate limiter unavailable", "key", key, "error", err)
				return e.Next()
			}
			if !allowed {
				return apis.NewApiError(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", nil)
			}

			return e.Next()
		},
	}
}

func isSuspiciousUserAgent(ua string) bool {
	ua = strings.ToLower(ua)
	for _, pattern := range []string{"bot", "crawler", "spider", "scraper"} {
		if strings.Contains(ua, pattern) {
			return true
		}
	}
	return false
}
