package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SessionOpened("MappingConformanceRule", true)
	m.SessionOpened("MappingConformanceRule", false)
	m.SessionOpened("MappingConformanceRule", false)
	m.SubmitRejected("DropConformanceRule")
	m.RuleCommitted("DropConformanceRule", false)
	m.StaleDiscarded()
	m.ResolveObserved(time.Now(), nil)
	m.ResolveObserved(time.Now(), errors.New("boom"))
	m.ObserveRequest("GET", "/api/datasets", 200, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsOpened.WithLabelValues("MappingConformanceRule", "edit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsOpened.WithLabelValues("MappingConformanceRule", "add")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubmitsRejected.WithLabelValues("DropConformanceRule")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RulesCommitted.WithLabelValues("DropConformanceRule", "add")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StaleResolutions))
	assert.Equal(t, 2, testutil.CollectAndCount(m.ResolveLatency))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestLatency))
}

func TestActiveEditorsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	n := 3
	m.RegisterActiveEditors(func() int { return n })

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() == "menas_active_editors" {
			found = true
			assert.Equal(t, 3.0, f.GetMetric()[0].GetGauge().GetValue())
		}
	}
	assert.True(t, found)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SessionOpened("x", false)
		m.SubmitRejected("x")
		m.RuleCommitted("x", true)
		m.ResolveObserved(time.Now(), nil)
		m.StaleDiscarded()
		m.ObserveRequest("GET", "/", 200, 0)
		m.RegisterActiveEditors(func() int { return 0 })
	})
}
