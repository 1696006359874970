package api

import (
	"sync/atomic"
	"time"

	"Screener/internal/service/ratelimit"
	xhttp "Screener/pkg/http"

	"github.com/labstack/echo/v4"
)

const (
	pruneEvery = 1024
	pruneIdle  = 30 * time.Minute
)

// RateLimit rejects clients that exhausted their token bucket with 429.
// A nil limiter lets every request through.
func RateLimit(l *ratelimit.Limiter) echo.MiddlewareFunc {
	var seen atomic.Uint64
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if l == nil {
				return next(c)
			}
			if seen.Add(1)%pruneEvery == 0 {
				l.Prune(pruneIdle)
			}
			if !l.Allow(c.RealIP()) {
				return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many requests"))
			}
			return next(c)
		}
	}
}
