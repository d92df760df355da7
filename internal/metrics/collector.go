package bgpmetrics

import (
	"net/netip"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/trungkstn/bgpfsmd/internal/peer"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "bgpfsmd"
	subsystem = "fsm"
)

// Label names for BGP FSM metrics.
const (
	labelPeerAddr  = "peer_addr"
	labelOrdinal   = "ordinal"
	labelFromState = "from_state"
	labelToState   = "to_state"
	labelKind      = "kind"
)

// -------------------------------------------------------------------------
// Collector — Prometheus BGP FSM Metrics
// -------------------------------------------------------------------------

// Collector holds all BGP peer FSM Prometheus metrics.
//
//   - Sessions tracks currently configured peers.
//   - StateTransitions records every FSM transition for alerting (e.g.
//     any ->Idle transition is a session flap).
//   - Exceptions counts the SessionEvents reported to the Routeing
//     Engine, by kind, surfacing the frequency of NOTIFICATION receipt
//     and hold timer expiry without scraping logs. Collision, Discard
//     and Retry are never reported, so they never appear here.
//   - CurrentState is a gauge per (peer, ordinal, state): 1 for the
//     state each connection currently occupies, 0 for states it has
//     left.
type Collector struct {
	// Sessions tracks the number of currently configured peer sessions.
	Sessions prometheus.Gauge

	// StateTransitions counts FSM state transitions, labeled by peer,
	// connection ordinal, old state, and new state.
	StateTransitions *prometheus.CounterVec

	// Exceptions counts reported SessionEvents, labeled by peer and
	// ExceptionKind.
	Exceptions *prometheus.CounterVec

	// CurrentState is 1 for the (peer, ordinal, state) tuple currently
	// occupied and 0 otherwise; dashboards query it with a max-by-state
	// aggregation.
	CurrentState *prometheus.GaugeVec
}

// NewCollector creates a Collector with all metrics registered against
// reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.Sessions,
		c.StateTransitions,
		c.Exceptions,
		c.CurrentState,
	)

	return c
}

func newMetrics() *Collector {
	transitionLabels := []string{labelPeerAddr, labelOrdinal, labelFromState, labelToState}
	stateLabels := []string{labelPeerAddr, labelOrdinal, labelToState}

	return &Collector{
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions",
			Help:      "Number of currently configured BGP peer sessions.",
		}),

		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "transitions_total",
			Help:      "Total BGP peer FSM state transitions.",
		}, transitionLabels),

		// Exceptions also carries the NOTIFICATION-received count via
		// its "kind" label (ExceptionNOMRecv); there is no separate
		// notifications_total series. Manager.RunDispatch calls
		// peer.MetricsReporter.ExceptionReported only for reported
		// SessionEvents, so collision-resolution outcomes (Collision,
		// Discard) are not counted.
		Exceptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "exceptions_total",
			Help:      "Total SessionEvents reported to the Routeing Engine, by exception kind.",
		}, []string{labelPeerAddr, labelKind}),

		CurrentState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "state",
			Help:      "1 for the (peer, ordinal, state) tuple currently occupied, 0 otherwise.",
		}, stateLabels),
	}
}

// -------------------------------------------------------------------------
// peer.MetricsReporter implementation
// -------------------------------------------------------------------------

// SessionCreated implements peer.MetricsReporter.
func (c *Collector) SessionCreated(netip.Addr) {
	c.Sessions.Inc()
}

// SessionDestroyed implements peer.MetricsReporter.
func (c *Collector) SessionDestroyed(netip.Addr) {
	c.Sessions.Dec()
}

// StateTransition implements peer.MetricsReporter. It records the
// transition counter and flips the CurrentState gauge so only the new
// state reads 1 for this (peer, ordinal).
func (c *Collector) StateTransition(addr netip.Addr, ord peer.Ordinal, from, to peer.State) {
	peerLabel, ordLabel := addr.String(), ord.String()
	c.StateTransitions.WithLabelValues(peerLabel, ordLabel, from.String(), to.String()).Inc()
	c.CurrentState.WithLabelValues(peerLabel, ordLabel, from.String()).Set(0)
	c.CurrentState.WithLabelValues(peerLabel, ordLabel, to.String()).Set(1)
}

// ExceptionReported implements peer.MetricsReporter.
func (c *Collector) ExceptionReported(addr netip.Addr, kind peer.ExceptionKind) {
	c.Exceptions.WithLabelValues(addr.String(), kind.String()).Inc()
}

var _ peer.MetricsReporter = (*Collector)(nil)
