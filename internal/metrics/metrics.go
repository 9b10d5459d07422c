package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/JonMunkholm/menas/internal/core"
)

// Metrics provides observability for edit sessions and the console API.
type Metrics struct {
	// Sessions opened by rule type and mode ("add", "edit")
	SessionsOpened *prometheus.CounterVec

	// Submits rejected by validation, by rule type
	SubmitsRejected *prometheus.CounterVec

	// Rules committed by rule type and mode
	RulesCommitted *prometheus.CounterVec

	// Mapping table resolution latency by outcome ("ok", "error")
	ResolveLatency *prometheus.HistogramVec

	// Resolutions dropped because the session moved on
	StaleResolutions prometheus.Counter

	// HTTP requests by method, route pattern and status
	RequestLatency *prometheus.HistogramVec

	reg prometheus.Registerer
}

var _ core.Recorder = (*Metrics)(nil)

// New creates a Metrics instance with all collectors registered on reg.
// A nil reg registers on the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		SessionsOpened: f.NewCounterVec(prometheus.CounterOpts{
			Name: "menas_edit_sessions_opened_total",
			Help: "Total rule edit sessions opened by rule type and mode",
		}, []string{"rule_type", "mode"}),

		SubmitsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "menas_edit_submits_rejected_total",
			Help: "Total submits rejected by validation by rule type",
		}, []string{"rule_type"}),

		RulesCommitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "menas_rules_committed_total",
			Help: "Total conformance rules committed by rule type and mode",
		}, []string{"rule_type", "mode"}),

		ResolveLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "menas_mapping_table_resolve_duration_seconds",
			Help:    "Duration of mapping table schema resolution",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"outcome"}),

		StaleResolutions: f.NewCounter(prometheus.CounterOpts{
			Name: "menas_stale_resolutions_total",
			Help: "Total resolution results discarded after the session moved on",
		}),

		RequestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "menas_http_request_duration_seconds",
			Help:    "Duration of console API requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),

		reg: reg,
	}
}

// RegisterActiveEditors exposes the number of open editors as a gauge.
func (m *Metrics) RegisterActiveEditors(count func() int) {
	if m == nil {
		return
	}
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "menas_active_editors",
		Help: "Number of rule editors currently held by the server",
	}, func() float64 { return float64(count()) }))
}

func mode(isEdit bool) string {
	if isEdit {
		return "edit"
	}
	return "add"
}

func (m *Metrics) SessionOpened(ruleType string, isEdit bool) {
	if m != nil {
		m.SessionsOpened.WithLabelValues(ruleType, mode(isEdit)).Inc()
	}
}

func (m *Metrics) SubmitRejected(ruleType string) {
	if m != nil {
		m.SubmitsRejected.WithLabelValues(ruleType).Inc()
	}
}

func (m *Metrics) RuleCommitted(ruleType string, isEdit bool) {
	if m != nil {
		m.RulesCommitted.WithLabelValues(ruleType, mode(isEdit)).Inc()
	}
}

// ResolveObserved records how long a resolution that began at start took.
func (m *Metrics) ResolveObserved(start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ResolveLatency.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

func (m *Metrics) StaleDiscarded() {
	if m != nil {
		m.StaleResolutions.Inc()
	}
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m != nil {
		m.RequestLatency.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
	}
}
