package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveOperation("create", "ok", 10*time.Millisecond)
	m.ObserveOperation("create", "slot_full", time.Millisecond)
	m.ObserveOperation("create", "ok", time.Millisecond)
	m.RecordConsistencyFault()
	m.ObserveRequest("", "GET", 404, time.Millisecond)
	m.RecordThrottle("POST /bookings/")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("create", "slot_full")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.faults))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("unmatched", "GET", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited.WithLabelValues("POST /bookings/")))

	err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP slotbook_consistency_faults_total Rebooks that left capacity accounting in need of reconciliation.
# TYPE slotbook_consistency_faults_total counter
slotbook_consistency_faults_total 1
`), "slotbook_consistency_faults_total")
	require.NoError(t, err)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOperation("cancel", "ok", time.Second)
		m.RecordConsistencyFault()
		m.ObserveRequest("/health", "GET", 200, time.Second)
		m.RecordThrottle("x")
	})
}
