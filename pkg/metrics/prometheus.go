package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	runsTotal   *prometheus.CounterVec
	runPoints   *prometheus.HistogramVec
	daysTotal   *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	rollsTotal  *prometheus.CounterVec
	pointsSent  *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New registers the collectors on reg; nil means the default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optroll_series_runs_total",
				Help: "Completed ATM series runs",
			},
			[]string{"underlying", "result"},
		),
		runPoints: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "optroll_series_points",
				Help:    "Points per ATM series run",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"underlying"},
		),
		daysTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optroll_series_days_total",
				Help: "Series days by outcome",
			},
			[]string{"underlying", "outcome"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optroll_errors_total",
				Help: "Errors by kind",
			},
			[]string{"kind"},
		),
		rollsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optroll_expiry_rolls_total",
				Help: "Expiry rolls performed",
			},
			[]string{"underlying"},
		),
		pointsSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optroll_points_sent_total",
				Help: "Series points delivered to a backend",
			},
			[]string{"backend", "underlying"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "optroll_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordRun counts a finished run; result is "ok" or "partial".
func (r *Recorder) RecordRun(underlying string, points, errors int) {
	result := "ok"
	if errors > 0 {
		result = "partial"
	}
	r.runsTotal.WithLabelValues(underlying, result).Inc()
	r.runPoints.WithLabelValues(underlying).Observe(float64(points))
}

func (r *Recorder) RecordDay(underlying, outcome string) {
	r.daysTotal.WithLabelValues(underlying, outcome).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordRoll(underlying string) {
	r.rollsTotal.WithLabelValues(underlying).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordPointsSent(backend, underlying string, n int) {
	r.pointsSent.WithLabelValues(backend, underlying).Add(float64(n))
}
