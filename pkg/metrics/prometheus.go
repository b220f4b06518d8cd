package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	messagesSent *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	riverLevel   *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		messagesSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "floodcast_messages_sent_total",
				Help: "Total number of messages sent to backend",
			},
			[]string{"backend", "station"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "floodcast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		riverLevel: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "floodcast_river_level_m",
				Help: "Last recorded river level for a station",
			},
			[]string{"station"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "floodcast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordMessageSent records a message sent to a backend.
func (r *Recorder) RecordMessageSent(backend, station string) {
	r.messagesSent.WithLabelValues(backend, station).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordRiverLevel records the last observed river level for a station.
func (r *Recorder) RecordRiverLevel(station string, level float64) {
	r.riverLevel.WithLabelValues(station).Set(level)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
