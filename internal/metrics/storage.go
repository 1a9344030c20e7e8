// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Fallback reasons recorded on storage_fallback_served_total.
const (
	ReasonError       = "error"
	ReasonSoftFailure = "soft_failure"
)

// StorageMetrics counts primary store failures and fallback-served calls.
// A nil *StorageMetrics is valid and records nothing.
type StorageMetrics struct {
	primaryFailuresTotal *prometheus.CounterVec
	fallbackServedTotal  *prometheus.CounterVec
	mirrorFailuresTotal  prometheus.Counter
}

// NewStorageMetrics creates and registers the storage collectors.
func NewStorageMetrics(registry prometheus.Registerer) (*StorageMetrics, error) {
	m := &StorageMetrics{
		primaryFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_primary_failures_total",
				Help: "Total number of primary store operations that returned an error",
			},
			[]string{"operation"},
		),
		fallbackServedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_fallback_served_total",
				Help: "Total number of operations answered by the fallback store",
			},
			[]string{"operation", "reason"}, // reason: error, soft_failure
		),
		mirrorFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "storage_mirror_failures_total",
				Help: "Total number of created collections that could not be mirrored into the fallback store",
			},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordPrimaryFailure counts a primary store error for the operation.
func (m *StorageMetrics) RecordPrimaryFailure(operation string) {
	if m == nil {
		return
	}
	m.primaryFailuresTotal.WithLabelValues(operation).Inc()
}

// RecordFallbackServed counts a call answered by the fallback store.
func (m *StorageMetrics) RecordFallbackServed(operation, reason string) {
	if m == nil {
		return
	}
	m.fallbackServedTotal.WithLabelValues(operation, reason).Inc()
}

// RecordMirrorFailure counts a failed create mirror.
func (m *StorageMetrics) RecordMirrorFailure() {
	if m == nil {
		return
	}
	m.mirrorFailuresTotal.Inc()
}

// Describe implements prometheus.Collector.
func (m *StorageMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.primaryFailuresTotal.Describe(ch)
	m.fallbackServedTotal.Describe(ch)
	m.mirrorFailuresTotal.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *StorageMetrics) Collect(ch chan<- prometheus.Metric) {
	m.primaryFailuresTotal.Collect(ch)
	m.fallbackServedTotal.Collect(ch)
	m.mirrorFailuresTotal.Collect(ch)
}
