package ratelimit

import (
	"strconv"

	"github.com/labstack/echo/v4"

	rl "httperrors/modules/ratelimit"
)

// Echo wraps limiter as an echo middleware. Denials and failures are
// returned as *httperr.HTTPError so echo's HTTPErrorHandler serializes them.
func Echo(limiter rl.RateLimiter, opts ...Option) echo.MiddlewareFunc {
	m := newMiddleware(limiter, opts)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d, err := m.check(c.Request())
			if err != nil {
				return err
			}

			h := c.Response().Header()
			writeRateLimitHeaders(h, d)

			if !d.Allowed {
				h.Set(HeaderRetryAfter, strconv.FormatInt(d.RetryAfterSeconds(), 10))
				return DeniedError(d)
			}
			return next(c)
		}
	}
}
