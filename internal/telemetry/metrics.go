package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the Prometheus registry exposed by the monitor endpoint while
// an evaluation run is in flight.
type Metrics struct {
	registry *prometheus.Registry

	PredictionCalls   *prometheus.CounterVec
	PredictionSeconds prometheus.Histogram
	RecordsEvaluated  *prometheus.CounterVec
	InFlight          prometheus.Gauge
}

// New creates a registry with all post-market evaluation metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		PredictionCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postmarket_prediction_calls_total",
				Help: "Prediction API calls by outcome",
			},
			[]string{"result"},
		),

		PredictionSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "postmarket_prediction_duration_seconds",
				Help:    "Duration of prediction API calls including retries",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
		),

		RecordsEvaluated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postmarket_records_evaluated_total",
				Help: "Patient records evaluated by axis and status",
			},
			[]string{"axis", "status"},
		),

		InFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "postmarket_records_in_flight",
				Help: "Records currently being evaluated",
			},
		),
	}

	m.registry.MustRegister(
		m.PredictionCalls,
		m.PredictionSeconds,
		m.RecordsEvaluated,
		m.InFlight,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
