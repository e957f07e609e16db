package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	refreshTotal    *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	anomalyCount    prometheus.Gauge
	forecastPrice   *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		refreshTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "petropulse_refresh_total",
				Help: "Refresh attempts by outcome",
			},
			[]string{"outcome"},
		),
		refreshDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "petropulse_refresh_duration_seconds",
				Help:    "Duration of refresh operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "petropulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		anomalyCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "petropulse_anomaly_count",
				Help: "Anomalous records in the latest snapshot",
			},
		),
		forecastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "petropulse_forecast_end_price",
				Help: "Point estimate at the end of the latest forecast horizon",
			},
			[]string{"series"},
		),
	}
}

// RecordRefresh records a refresh attempt and its duration.
func (r *Recorder) RecordRefresh(outcome string, seconds float64) {
	r.refreshTotal.WithLabelValues(outcome).Inc()
	r.refreshDuration.WithLabelValues(outcome).Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordAnomalies records the anomaly count of the latest snapshot.
func (r *Recorder) RecordAnomalies(count int) {
	r.anomalyCount.Set(float64(count))
}

// RecordForecastPrice records the horizon-end point estimate for a series.
func (r *Recorder) RecordForecastPrice(seriesID string, price float64) {
	r.forecastPrice.WithLabelValues(seriesID).Set(price)
}
