/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package migrate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "trackmigrate"

// MetricsCollector holds Prometheus metrics for the migration engine.
// The collector is not registered on construction; call MustRegister.
type MetricsCollector struct {
	AppliedMigrations *prometheus.CounterVec
	FailedBatches     *prometheus.CounterVec
	BatchDuration     *prometheus.HistogramVec
}

// NewMetricsCollector creates a new MetricsCollector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		AppliedMigrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "applied_migrations_total",
				Help:      "Number of migration units applied and recorded.",
			},
			[]string{"track"},
		),
		FailedBatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "failed_batches_total",
				Help:      "Number of batches aborted, by pipeline phase.",
			},
			[]string{"track", "phase"},
		),
		BatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "batch_duration_seconds",
				Help:      "Duration of committed batch executions.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
			},
			[]string{"track"},
		),
	}
}

// MustRegister registers all metrics in the default Prometheus registry and
// panics on error.
func (c *MetricsCollector) MustRegister() {
	prometheus.MustRegister(c.AllMetrics()...)
}

// Unregister removes all metrics from the default Prometheus registry.
func (c *MetricsCollector) Unregister() {
	for _, m := range c.AllMetrics() {
		prometheus.Unregister(m)
	}
}

// AllMetrics returns the list of all collected metrics.
func (c *MetricsCollector) AllMetrics() []prometheus.Collector {
	return []prometheus.Collector{c.AppliedMigrations, c.FailedBatches, c.BatchDuration}
}

func (c *MetricsCollector) observeBatch(track string, applied int, d time.Duration) {
	c.AppliedMigrations.WithLabelValues(track).Add(float64(applied))
	c.BatchDuration.WithLabelValues(track).Observe(d.Seconds())
}

func (c *MetricsCollector) observeFailure(track string, phase Phase) {
	c.FailedBatches.WithLabelValues(track, string(phase)).Inc()
}
