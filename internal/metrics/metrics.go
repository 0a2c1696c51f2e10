// Package metrics provides Prometheus metrics for revstore.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/revstore/internal/resource"
)

// Metrics holds the revstore collectors.
//
// A nil *Metrics is valid and records nothing, so components can take one
// unconditionally.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	PropagationsTotal *prometheus.CounterVec
	SearchFallbacks   *prometheus.CounterVec
	BlobsOffloaded    prometheus.Counter
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which tests use to avoid the global registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{}

	m.OperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revstore_operations_total",
			Help: "Total number of resource manager operations",
		},
		[]string{"model", "operation", "status"},
	)

	m.OperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "revstore_operation_duration_seconds",
			Help:    "Duration of resource manager operations in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"model", "operation"},
	)

	m.PropagationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revstore_delete_propagations_total",
			Help: "Dependents touched by delete propagation, by action",
		},
		[]string{"model", "action"},
	)

	m.SearchFallbacks = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revstore_search_fallbacks_total",
			Help: "Searches evaluated in process because the backend could not translate them",
		},
		[]string{"model"},
	)

	m.BlobsOffloaded = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "revstore_blobs_offloaded_total",
			Help: "Binary values moved to blob storage on write",
		},
	)

	return m
}

// Status returns the status label for an operation result: "ok", the
// resource error code, or "error" for infrastructure failures.
func Status(err error) string {
	if err == nil {
		return "ok"
	}
	var re *resource.Error
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return "error"
}

// RecordOperation records one manager operation.
func (m *Metrics) RecordOperation(model, operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(model, operation, Status(err)).Inc()
	m.OperationDuration.WithLabelValues(model, operation).Observe(duration.Seconds())
}

// RecordPropagation records the outcome of one propagation step.
func (m *Metrics) RecordPropagation(model string, cascaded, nulled, failed int) {
	if m == nil {
		return
	}
	m.PropagationsTotal.WithLabelValues(model, "cascade").Add(float64(cascaded))
	m.PropagationsTotal.WithLabelValues(model, "set_null").Add(float64(nulled))
	m.PropagationsTotal.WithLabelValues(model, "failed").Add(float64(failed))
}

// RecordSearchFallback records a search the backend evaluated in process.
func (m *Metrics) RecordSearchFallback(model string) {
	if m == nil {
		return
	}
	m.SearchFallbacks.WithLabelValues(model).Inc()
}

// RecordBlobs records offloaded binary values.
func (m *Metrics) RecordBlobs(n int) {
	if m == nil || n == 0 {
		return
	}
	m.BlobsOffloaded.Add(float64(n))
}
