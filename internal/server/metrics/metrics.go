// Package metrics defines the Prometheus collectors of the catalog.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// registerOnce ensures Register() is idempotent.
var registerOnce sync.Once

// Storage adapter metrics.
var (
	StorageOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objcatalog_storage_operations_total",
			Help: "Object store calls by operation and status",
		},
		[]string{"operation", "status"},
	)

	StorageOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "objcatalog_storage_operation_duration_seconds",
			Help:    "Object store call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	PartialUploadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "objcatalog_partial_uploads_total",
			Help: "Uploads whose content was stored but tagging failed",
		},
	)
)

// Reconciliation metrics.
var (
	MetadataJoinsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objcatalog_metadata_joins_total",
			Help: "Version metadata joins changed by reconciliation",
		},
		[]string{"change"},
	)

	MetadataPrunedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "objcatalog_metadata_pruned_total",
			Help: "Orphaned metadata rows deleted",
		},
	)
)

// Identity metrics.
var (
	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "objcatalog_logins_total",
			Help: "Logins by outcome (created, updated, unchanged)",
		},
		[]string{"outcome"},
	)
)

// Health metrics.
var (
	ComponentUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "objcatalog_component_up",
			Help: "1 when the last probe of a dependency succeeded",
		},
		[]string{"component"},
	)
)

// Register registers all collectors with the default registry. It is safe to
// call multiple times; subsequent calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			StorageOperationsTotal,
			StorageOperationDuration,
			PartialUploadsTotal,
			MetadataJoinsTotal,
			MetadataPrunedTotal,
			LoginsTotal,
			ComponentUp,
		)
	})
}

// ObserveStorage records one object store call started at start.
func ObserveStorage(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	StorageOperationsTotal.WithLabelValues(op, status).Inc()
	StorageOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
