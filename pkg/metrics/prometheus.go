package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetches     *prometheus.CounterVec
	flushes     *prometheus.CounterVec
	flushRows   *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	lastPrice   *prometheus.GaugeVec
	latency     *prometheus.HistogramVec
}

// New creates a recorder registered on reg, or on the default registry when reg is nil.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		fetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_fetches_total",
				Help: "Metric source lookups by universe and outcome",
			},
			[]string{"universe", "result"},
		),
		flushes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_flushes_total",
				Help: "Merge-and-write flushes by table and outcome",
			},
			[]string{"table", "result"},
		),
		flushRows: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_flushed_records_total",
				Help: "Records handed to merge-and-write",
			},
			[]string{"table"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "screener_last_price",
				Help: "Last fetched price for a ticker",
			},
			[]string{"ticker"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "screener_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 900},
			},
			[]string{"operation"},
		),
	}
}

// RecordFetch records one metric source lookup.
func (r *Recorder) RecordFetch(universe string, ok bool) {
	r.fetches.WithLabelValues(universe, result(ok)).Inc()
}

// RecordFlush records one merge-and-write of size records.
func (r *Recorder) RecordFlush(table string, size int, err error) {
	r.flushes.WithLabelValues(table, result(err == nil)).Inc()
	r.flushRows.WithLabelValues(table).Add(float64(size))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a ticker.
func (r *Recorder) RecordLastPrice(key string, price float64) {
	r.lastPrice.WithLabelValues(key).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// Nop discards every observation.
type Nop struct{}

func (Nop) RecordFetch(string, bool)        {}
func (Nop) RecordFlush(string, int, error)  {}
func (Nop) RecordError(string)              {}
func (Nop) RecordLastPrice(string, float64) {}
func (Nop) RecordLatency(string, float64)   {}
