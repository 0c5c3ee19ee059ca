package middleware

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"casedocs/internal/ratelimit"
)

// Limiter is satisfied by *ratelimit.FixedWindowLimiter.
type Limiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Decision, error)
}

// RateLimit applies l per client IP. Limiter errors fail closed.
func RateLimit(l Limiter, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, err := l.Allow(c.UserContext(), c.IP())
		if err != nil {
			log.WarnContext(c.UserContext(), "rate_limit_unavailable",
				slog.String("ip", c.IP()),
				slog.String("error", err.Error()),
			)
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			retry := int(time.Until(d.ResetAt).Seconds()) + 1
			if retry < 1 {
				retry = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retry))
			return fiber.NewError(fiber.StatusTooManyRequests, "too many requests")
		}
		return c.Next()
	}
}
