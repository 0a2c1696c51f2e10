package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/revstore/internal/resource"
)

func TestRecordOperation(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordOperation("Zone", "create", nil, time.Millisecond)
	m.RecordOperation("Zone", "create", nil, time.Millisecond)
	m.RecordOperation("Zone", "update", resource.Conflict("Zone", "z1", "lost"), time.Millisecond)
	m.RecordOperation("Zone", "update", errors.New("disk"), time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("Zone", "create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("Zone", "update", "CONFLICT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("Zone", "update", "error")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.OperationDuration))
}

func TestRecordPropagationAndFallbacks(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordPropagation("Character", 2, 1, 0)
	m.RecordSearchFallback("Character")
	m.RecordBlobs(3)
	m.RecordBlobs(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PropagationsTotal.WithLabelValues("Character", "cascade")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PropagationsTotal.WithLabelValues("Character", "set_null")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PropagationsTotal.WithLabelValues("Character", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchFallbacks.WithLabelValues("Character")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.BlobsOffloaded))
}

func TestRegistersOnRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.RecordOperation("Zone", "get", nil, 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "revstore_operations_total")
	assert.Contains(t, names, "revstore_operation_duration_seconds")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordOperation("Zone", "get", nil, 0)
		m.RecordPropagation("Zone", 1, 1, 1)
		m.RecordSearchFallback("Zone")
		m.RecordBlobs(1)
	})
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "ok", Status(nil))
	assert.Equal(t, "NOT_FOUND", Status(resource.NotFound("Zone", "z")))
	assert.Equal(t, "error", Status(errors.New("x")))
}
