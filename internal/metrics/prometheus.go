package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Mutation outcomes recorded by ClaimMetrics
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
	OutcomeShared   = "shared"
)

// ClaimMetrics counts claim mutations and polls. A nil *ClaimMetrics is valid
// and records nothing.
type ClaimMetrics struct {
	mutations *prometheus.CounterVec
	polls     prometheus.Counter
	pollers   prometheus.Gauge
}

// NewClaimMetrics registers claim collectors on reg
func NewClaimMetrics(reg prometheus.Registerer) *ClaimMetrics {
	m := &ClaimMetrics{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "akita",
			Subsystem: "claim",
			Name:      "mutations_total",
			Help:      "Claim mutations by kind and outcome.",
		}, []string{"kind", "outcome"}),
		polls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "akita",
			Subsystem: "claim",
			Name:      "polls_total",
			Help:      "Claim re-fetches issued while a claim was waiting.",
		}),
		pollers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "akita",
			Subsystem: "claim",
			Name:      "active_pollers",
			Help:      "Claim pollers currently running.",
		}),
	}
	reg.MustRegister(m.mutations, m.polls, m.pollers)
	return m
}

// Mutation records one mutation
func (m *ClaimMetrics) Mutation(kind, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(kind, outcome).Inc()
}

// Poll records one poll re-fetch
func (m *ClaimMetrics) Poll() {
	if m == nil {
		return
	}
	m.polls.Inc()
}

// PollerStarted records a poller starting
func (m *ClaimMetrics) PollerStarted() {
	if m == nil {
		return
	}
	m.pollers.Inc()
}

// PollerStopped records a poller stopping
func (m *ClaimMetrics) PollerStopped() {
	if m == nil {
		return
	}
	m.pollers.Dec()
}
