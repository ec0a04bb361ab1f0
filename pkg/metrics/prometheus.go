package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	ticksStored   *prometheus.CounterVec
	fetchErrors   *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	publishes     *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	liveConns     prometheus.Gauge
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		ticksStored: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matchpulse_ticks_stored_total",
				Help: "Total number of ticks persisted per category",
			},
			[]string{"category"},
		),
		fetchErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matchpulse_fetch_errors_total",
				Help: "Total number of upstream fetch failures per category",
			},
			[]string{"category"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matchpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		publishes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matchpulse_publishes_total",
				Help: "Total notifications published per channel",
			},
			[]string{"channel"},
		),
		cycleDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "matchpulse_cycle_duration_seconds",
				Help:    "Duration of pipeline cycles in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"cycle"},
		),
		liveConns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "matchpulse_live_connections",
				Help: "Currently open websocket connections",
			},
		),
	}
}

// RecordTicksStored records persisted ticks for a category.
func (r *Recorder) RecordTicksStored(category string, n int) {
	r.ticksStored.WithLabelValues(category).Add(float64(n))
}

// RecordFetchError records an upstream fetch failure.
func (r *Recorder) RecordFetchError(category string) {
	r.fetchErrors.WithLabelValues(category).Inc()
}

// RecordCycleDuration records one cycle's wall time.
func (r *Recorder) RecordCycleDuration(cycle string, seconds float64) {
	r.cycleDuration.WithLabelValues(cycle).Observe(seconds)
}

// RecordPublish records a channel publish.
func (r *Recorder) RecordPublish(channel string) {
	r.publishes.WithLabelValues(channel).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// SetLiveConnections records the open connection count.
func (r *Recorder) SetLiveConnections(n int) {
	r.liveConns.Set(float64(n))
}
