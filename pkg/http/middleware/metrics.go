package middleware

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	applogger "Screener/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type httpCollectors struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
}

var (
	collectorsOnce sync.Once
	collectors     *httpCollectors
)

func httpMetrics() *httpCollectors {
	collectorsOnce.Do(func() {
		collectors = &httpCollectors{
			requests: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "screener_http_requests_total",
				Help: "HTTP requests by route template and status",
			}, []string{"route", "method", "status"}),
			// sync requests run inline and can take minutes
			duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "screener_http_request_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 30, 120, 600},
			}, []string{"route", "method", "class"}),
			inFlight: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "screener_http_in_flight_requests",
				Help: "Requests currently being served",
			}, []string{"route"}),
		}
	})
	return collectors
}

// SkipPrefixes returns a skipper for paths that should not be measured,
// such as the scrape endpoint itself or long-lived WebSocket upgrades.
func SkipPrefixes(prefixes ...string) func(echo.Context) bool {
	return func(c echo.Context) bool {
		p := c.Request().URL.Path
		for _, pre := range prefixes {
			if strings.HasPrefix(p, pre) {
				return true
			}
		}
		return false
	}
}

// Metrics records per-route request metrics. The route label is Echo's path
// template so label cardinality stays bounded. Requests slower than
// slowThreshold are logged at warn level, 5xx at error level.
func Metrics(l *applogger.Logger, slowThreshold time.Duration, skip func(echo.Context) bool) echo.MiddlewareFunc {
	m := httpMetrics()
	if l == nil {
		l = applogger.Nop()
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skip != nil && skip(c) {
				return next(c)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method

			m.inFlight.WithLabelValues(route).Inc()
			start := time.Now()
			err := next(c)
			took := time.Since(start)
			m.inFlight.WithLabelValues(route).Dec()

			code := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				code = he.Code
			}
			m.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
			m.duration.WithLabelValues(route, method, strconv.Itoa(code/100)+"xx").Observe(took.Seconds())

			fields := []applogger.Field{
				applogger.String("route", route),
				applogger.String("method", method),
				applogger.Int("status", code),
				applogger.Duration("duration_ms", took),
			}
			switch {
			case code >= 500:
				l.Error("http request failed", fields...)
			case slowThreshold > 0 && took >= slowThreshold:
				l.Warn("http request slow", fields...)
			}
			return err
		}
	}
}
