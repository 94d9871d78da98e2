// Package metrics exposes Prometheus instrumentation for the ledger and the
// simulated agents.
package metrics

import (
	"github.com/jmerrifield20/moneysim/internal/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the simulation reports.
type Metrics struct {
	ledgerOperations *prometheus.CounterVec
	ledgerAccounts   prometheus.Gauge
	ledgerCash       prometheus.Gauge
	agentCycles      *prometheus.CounterVec
	agentSteps       *prometheus.CounterVec
	agentFailures    *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ledgerOperations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "moneysim_ledger_operations_total",
			Help: "Completed ledger operations by kind.",
		}, []string{"kind"}),

		ledgerAccounts: f.NewGauge(prometheus.GaugeOpts{
			Name: "moneysim_ledger_open_accounts",
			Help: "Number of currently open accounts.",
		}),

		ledgerCash: f.NewGauge(prometheus.GaugeOpts{
			Name: "moneysim_ledger_cash",
			Help: "Money in circulation outside any account.",
		}),

		agentCycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "moneysim_agent_cycles_total",
			Help: "Completed agent cycles by agent.",
		}, []string{"agent"}),

		agentSteps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "moneysim_agent_steps_total",
			Help: "Agent script steps by agent, step and outcome.",
		}, []string{"agent", "step", "outcome"}),

		agentFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "moneysim_agent_failures_total",
			Help: "Agent cycles aborted by an error or panic.",
		}, []string{"agent"}),
	}
}

// Observe implements ledger.Observer.
func (m *Metrics) Observe(e ledger.Event) {
	switch e.Kind {
	case ledger.EventOpen:
		m.ledgerAccounts.Inc()
	case ledger.EventClose:
		m.ledgerAccounts.Dec()
	}
	if e.Kind != ledger.EventOpen {
		m.ledgerOperations.WithLabelValues(string(e.Kind)).Inc()
	}
	m.ledgerCash.Set(float64(e.Cash))
}

// RecordStep records the outcome of a single script step. outcome is one of
// the agent.Outcome* values.
func (m *Metrics) RecordStep(agent, step, outcome string) {
	m.agentSteps.WithLabelValues(agent, step, outcome).Inc()
}

// RecordCycle records a completed agent cycle.
func (m *Metrics) RecordCycle(agent string) {
	m.agentCycles.WithLabelValues(agent).Inc()
}

// RecordFailure records a cycle aborted by an error or panic.
func (m *Metrics) RecordFailure(agent string) {
	m.agentFailures.WithLabelValues(agent).Inc()
}
