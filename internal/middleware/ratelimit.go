package middleware

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/fitgrid/gym-session-engine/internal/config"
)

// RateLimit returns a fixed-window rate limiter backed by Redis.  Each
// client key (see clientKey) gets cfg.Limit requests per cfg.Window on
// the wrapped route; exceeding the limit yields 429 Too Many Requests.
// The limiter degrades open: when rdb is nil or Redis is unreachable the
// request is allowed through.
func RateLimit(rdb *redis.Client, cfg config.RateLimitConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Enabled || rdb == nil {
				return next(c)
			}
			key := fmt.Sprintf("%s:%s:%s", cfg.Prefix, c.Path(), clientKey(c))
			ctx := c.Request().Context()

			n, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				return next(c)
			}
			if n == 1 {
				// First hit in this window starts the clock.
				rdb.Expire(ctx, key, cfg.Window)
			}
			if n > int64(cfg.Limit) {
				return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "rate limit exceeded"})
			}
			return next(c)
		}
	}
}
