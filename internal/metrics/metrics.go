// Package metrics exposes the demo host's liveness gauges and counters
// over Prometheus. Not used by package scp/nomination/ballot/engine
// themselves -- only by cmd/fbanode, wired through its own optional
// Metrics hook, so the protocol core stays free of the dependency.
//
// github.com/prometheus/client_golang is a direct requirement in
// go.mod; there is no direct usage example in the retrieved pack to mirror
// line for line, so the registrations below follow the library's own
// documented promauto convention.
package metrics

import (
	"strconv"

	"github.com/DavidCanHelpMe/stellar-core/scp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the set of instruments a demo host updates as it drives
// one or more engine.Engine slots.
type Metrics struct {
	Phase              *prometheus.GaugeVec
	EnvelopesReceived  *prometheus.CounterVec
	EnvelopesRejected  *prometheus.CounterVec
	EnvelopesEmitted   prometheus.Counter
	Externalized       prometheus.Counter
	BallotCounter      *prometheus.GaugeVec
}

// New registers a fresh Metrics set with reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the
// default global registry across repeated calls.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Phase: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fbascp",
			Name:      "slot_phase",
			Help:      "Current ballot-protocol phase per slot (0=prepare,1=confirm,2=externalize).",
		}, []string{"slot"}),
		EnvelopesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fbascp",
			Name:      "envelopes_received_total",
			Help:      "Envelopes received by statement type.",
		}, []string{"type"}),
		EnvelopesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fbascp",
			Name:      "envelopes_rejected_total",
			Help:      "Envelopes rejected at the signature or monotonicity check.",
		}, []string{"reason"}),
		EnvelopesEmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fbascp",
			Name:      "envelopes_emitted_total",
			Help:      "Envelopes this node has signed and broadcast.",
		}),
		Externalized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fbascp",
			Name:      "slots_externalized_total",
			Help:      "Slots that have reached EXTERNALIZE.",
		}),
		BallotCounter: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fbascp",
			Name:      "ballot_counter",
			Help:      "Current working ballot counter per slot.",
		}, []string{"slot"}),
	}
}

// SlotLabel renders a slot index as the label value the *Vec
// instruments above key on.
func SlotLabel(slot scp.SlotIndex) string {
	return strconv.FormatUint(uint64(slot), 10)
}

// ObservePhase records the current ballot phase for slot (0=prepare,
// 1=confirm, 2=externalize), matching ballot.Phase's own ordering.
func (m *Metrics) ObservePhase(slot scp.SlotIndex, phase int) {
	m.Phase.WithLabelValues(SlotLabel(slot)).Set(float64(phase))
}

// ObserveBallotCounter records the working ballot counter for slot.
func (m *Metrics) ObserveBallotCounter(slot scp.SlotIndex, counter uint32) {
	m.BallotCounter.WithLabelValues(SlotLabel(slot)).Set(float64(counter))
}
