// Package metrics exposes Prometheus instrumentation for pipeline runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/RMahshie/sedconv/internal/photometry"
)

var (
	filtersNormalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sedconv_filters_normalized_total",
			Help: "Total number of filter responses normalized",
		},
		[]string{"normalization"},
	)

	filterFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sedconv_filter_failures_total",
			Help: "Total number of filters rejected during normalization",
		},
		[]string{"reason"},
	)

	modelsConvolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sedconv_models_convolved_total",
			Help: "Total number of model SEDs convolved against the filter set",
		},
		[]string{"family"},
	)

	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sedconv_run_duration_seconds",
			Help:    "Pipeline run duration in seconds",
			Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 300, 900, 1800},
		},
		[]string{"status"},
	)

	activeRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sedconv_active_runs",
			Help: "Number of pipeline runs in progress",
		},
	)
)

// RecordFilterNormalized counts a successfully normalized filter
func RecordFilterNormalized(mode string) {
	filtersNormalized.WithLabelValues(mode).Inc()
}

// RecordFilterFailure counts a rejected filter by its error class
func RecordFilterFailure(err error) {
	filterFailures.WithLabelValues(photometry.Reason(err)).Inc()
}

// RecordModelsConvolved counts the models of a convolved family
func RecordModelsConvolved(family string, n int) {
	modelsConvolved.WithLabelValues(family).Add(float64(n))
}

// RunStarted marks a run as active and returns a function that records its
// duration under the final status.
func RunStarted() func(status string) {
	start := time.Now()
	activeRuns.Inc()
	return func(status string) {
		activeRuns.Dec()
		runDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}
}
