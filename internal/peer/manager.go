package peer

import (
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
)

// notifyChSize is the buffer size for the aggregated SessionEvent channel.
// Sized to absorb a burst of transitions across many peers without
// blocking a Connection's dispatch goroutine.
const notifyChSize = 256

// Manager owns every configured peer's Session, keyed by peer address, and
// fans out their SessionEvents on one channel for the Routeing Engine and
// metrics/admin consumers (core spec §3, "one Session per configured peer
// address"; the fan-out shape follows the teacher's
// Manager.rawNotifyCh/publicNotifyCh split).
type Manager struct {
	mu       sync.RWMutex
	sessions map[netip.Addr]*Session

	dialer Dialer
	codec  Codec

	rawEvents    chan SessionEvent
	publicEvents chan SessionEvent

	metrics MetricsReporter
	logger  *slog.Logger
}

// MetricsReporter is the narrow seam internal/metrics fills; nil-safe via
// noopMetrics so Manager never needs a nil check at call sites.
type MetricsReporter interface {
	SessionCreated(peer netip.Addr)
	SessionDestroyed(peer netip.Addr)
	StateTransition(peer netip.Addr, ordinal Ordinal, from, to State)
	ExceptionReported(peer netip.Addr, kind ExceptionKind)
}

type noopMetrics struct{}

func (noopMetrics) SessionCreated(netip.Addr)                        {}
func (noopMetrics) SessionDestroyed(netip.Addr)                      {}
func (noopMetrics) StateTransition(netip.Addr, Ordinal, State, State) {}
func (noopMetrics) ExceptionReported(netip.Addr, ExceptionKind)       {}

// ManagerOption configures optional Manager parameters.
type ManagerOption func(*Manager)

// WithManagerMetrics sets the MetricsReporter every Session the manager
// creates will report into. A nil mr leaves the no-op reporter in place.
func WithManagerMetrics(mr MetricsReporter) ManagerOption {
	return func(m *Manager) {
		if mr != nil {
			m.metrics = mr
		}
	}
}

// NewManager creates an empty Manager. dialer and codec are shared by every
// Session it creates; callers typically supply internal/bgpio's dialer and
// internal/wire's codec.
func NewManager(dialer Dialer, codec Codec, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		sessions:     make(map[netip.Addr]*Session),
		dialer:       dialer,
		codec:        codec,
		rawEvents:    make(chan SessionEvent, notifyChSize),
		publicEvents: make(chan SessionEvent, notifyChSize),
		metrics:      noopMetrics{},
		logger:       logger.With(slog.String("component", "peer.manager")),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddPeer creates and registers a Session for cfg.PeerAddress in
// AdminDisabled. It does not enable the session; call Enable on the
// returned Session (or EnablePeer) once the caller is ready to start
// dialing/accepting.
func (m *Manager) AddPeer(cfg Config) (*Session, error) {
	if !cfg.PeerAddress.IsValid() {
		return nil, fmt.Errorf("add peer: %w", ErrInvalidPeerAddress)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[cfg.PeerAddress]; exists {
		return nil, fmt.Errorf("add peer %s: %w", cfg.PeerAddress, ErrDuplicatePeer)
	}

	s := NewSession(cfg, m.dialer, m.codec, m.rawEvents, m.logger, WithSessionMetrics(m.metrics))
	m.sessions[cfg.PeerAddress] = s
	m.metrics.SessionCreated(cfg.PeerAddress)
	m.logger.Info("peer added", slog.String("peer", cfg.PeerAddress.String()))
	return s, nil
}

// RemovePeer disables and unregisters the Session for peer. Any in-flight
// NOTIFICATION delivery is allowed to finish on its own timer; this only
// stops new administrative use of the Session.
func (m *Manager) RemovePeer(peer netip.Addr, notification *NotificationPayload) error {
	m.mu.Lock()
	s, ok := m.sessions[peer]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("remove peer %s: %w", peer, ErrUnknownPeer)
	}
	delete(m.sessions, peer)
	m.mu.Unlock()

	s.Disable(notification)
	m.metrics.SessionDestroyed(peer)
	m.logger.Info("peer removed", slog.String("peer", peer.String()))
	return nil
}

// Lookup returns the Session for peer, if any.
func (m *Manager) Lookup(peer netip.Addr) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[peer]
	return s, ok
}

// Peers returns a snapshot of every registered peer address.
func (m *Manager) Peers() []netip.Addr {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]netip.Addr, 0, len(m.sessions))
	for addr := range m.sessions {
		out = append(out, addr)
	}
	return out
}

// EnablePeer enables the named Session, per administrative configuration.
func (m *Manager) EnablePeer(peer netip.Addr) error {
	s, ok := m.Lookup(peer)
	if !ok {
		return fmt.Errorf("enable peer %s: %w", peer, ErrUnknownPeer)
	}
	s.Enable()
	return nil
}

// DisablePeer administratively disables the named Session without removing
// it from the Manager; it may be re-enabled later.
func (m *Manager) DisablePeer(peer netip.Addr, notification *NotificationPayload) error {
	s, ok := m.Lookup(peer)
	if !ok {
		return fmt.Errorf("disable peer %s: %w", peer, ErrUnknownPeer)
	}
	s.Disable(notification)
	return nil
}

// Events returns the channel external consumers (admin API event stream,
// the Routeing Engine bridge) should range over for SessionEvents across
// every registered peer.
func (m *Manager) Events() <-chan SessionEvent {
	return m.publicEvents
}

// RunDispatch forwards raw SessionEvents into the public fan-out channel,
// recording metrics along the way, until stop is closed. It is the
// Manager's only goroutine and must be started once by the caller (e.g.
// cmd/bgpfsmd's errgroup), matching the teacher's Manager.RunDispatch.
func (m *Manager) RunDispatch(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case ev := <-m.rawEvents:
			m.metrics.ExceptionReported(ev.Peer, ev.Kind)
			select {
			case m.publicEvents <- ev:
			default:
				m.logger.Warn("public session event channel full, dropping",
					slog.String("peer", ev.Peer.String()),
					slog.String("kind", ev.Kind.String()))
			}
		}
	}
}

// DisableAll administratively disables every registered Session, for
// graceful shutdown (core spec §4.3 scenario 5, applied fleet-wide).
func (m *Manager) DisableAll(notification *NotificationPayload) {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		s.Disable(notification)
	}
}
