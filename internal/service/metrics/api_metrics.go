package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	SourceLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "screener",
			Subsystem: "source",
			Name:      "latency_seconds",
			Help:      "Latency of upstream source calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	SourceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "screener",
			Subsystem: "source",
			Name:      "errors_total",
			Help:      "Errors by upstream source",
		},
		[]string{"source"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(SourceLatency, SourceErrors)
	})
}

// Observe records one upstream call started at start.
func Observe(source string, start time.Time, err error) {
	SourceLatency.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		SourceErrors.WithLabelValues(source).Inc()
	}
}
