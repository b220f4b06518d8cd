package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	ForecastLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "floodcast",
			Subsystem: "forecast",
			Name:      "latency_seconds",
			Help:      "Latency of forecast computation stages",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	ForecastErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "floodcast",
			Subsystem: "forecast",
			Name:      "errors_total",
			Help:      "Errors by forecast stage",
		},
		[]string{"stage"},
	)

	ForecastConfidence = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "floodcast",
			Subsystem: "forecast",
			Name:      "confidence",
			Help:      "Confidence of the most recent forecast per station",
		},
		[]string{"station"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(ForecastLatency, ForecastErrors, ForecastConfidence)
	})
}
