package peer

import (
	"log/slog"
	"net/netip"
	"sync"
	"time"
)

// SessionEvent is the northbound message delivered to the Routeing
// Engine (core spec §6): "session_event(session, kind, notification?,
// err, ordinal, stopped_bool)". The Routeing Engine inbox is an
// MPSC-style queue external to this spec; we model it as a buffered Go
// channel the Manager owns and callers range over, the same decoupled
// shape as the teacher's StateCallback/Manager.StateChanges().
type SessionEvent struct {
	Peer         netip.Addr
	Kind         ExceptionKind
	Notification *NotificationPayload
	Err          error
	Ordinal      Ordinal
	Stopped      bool
}

// SessionUpdate describes an UPDATE payload for the Routeing Engine
// while Established. Nothing in this package constructs or sends one:
// actionReceiveUpdate logs the payload size and drops the payload.
type SessionUpdate struct {
	Peer    netip.Addr
	Payload []byte
}

// Config is the static, administrator-supplied configuration for one
// Session (core spec §3).
type Config struct {
	PeerAddress  netip.Addr
	AllowedModes AllowedModes

	IdleHold     time.Duration
	ConnectRetry time.Duration
	OpenHold     time.Duration

	LocalAS         uint32
	LocalBGPID      uint32
	LocalAddr       netip.Addr
	HoldTime        time.Duration
	JitterEnabled   bool
}

// Dialer initiates the outbound TCP attempt for the primary ordinal and
// arms/disarms inbound acceptance for the secondary. It is the narrow
// southbound contract from the core spec's §6 io_connect_completed
// family; internal/bgpio supplies the concrete implementation.
//
// Dial is asynchronous by contract: it must return immediately (core
// spec §4.2, "initiates a non-blocking connect") and report the outcome
// later via c.DeliverConnectionOpen on success, or
// c.DeliverConnectionOpenFailed/c.DeliverFatalError on failure — the
// soft/hard classification (core spec §6) is the Dialer's job, done
// below the FSM.
type Dialer interface {
	Dial(c *Connection, local, remote netip.Addr)
	SetAcceptEnabled(local, remote netip.Addr, enabled bool)
}

// Session is the logical peering: up to two Connections (primary,
// secondary), the administrative lifecycle, and the mutex serialising
// all FSM work for this peer (core spec §3).
type Session struct {
	mu sync.Mutex

	cfg Config

	adminState    AdminState
	connections   [2]*Connection
	acceptEnabled bool

	openToSend *OpenPayload

	negotiatedHold      time.Duration
	negotiatedKeepalive time.Duration

	// peerAS/peerBGPID are the (AS, BGP identifier) tuple first seen in
	// an OPEN from this peer address, recorded to enforce the core
	// spec's hard requirement that a peer address never present two
	// different tuples across its lifetime (core spec §3).
	havePeerIdentity bool
	peerAS           uint32
	peerBGPID        uint32

	dialer  Dialer
	codec   Codec
	events  chan<- SessionEvent
	metrics MetricsReporter
	logger  *slog.Logger
}

// NewSession constructs a Session in AdminDisabled with no
// Connections. Call Enable to create its Connections and start the
// FSM (core spec §3, "Lifecycle"). codec may be nil, in which case a
// minimal fallback encoding is used (see internal/peer/codec.go) —
// production callers wire internal/wire.Codec. A nil metrics reporter
// is replaced with a no-op implementation.
func NewSession(cfg Config, dialer Dialer, codec Codec, events chan<- SessionEvent, logger *slog.Logger, opts ...SessionOption) *Session {
	s := &Session{
		cfg:     cfg,
		dialer:  dialer,
		codec:   codec,
		events:  events,
		metrics: noopMetrics{},
		logger:  logger.With(slog.String("peer", cfg.PeerAddress.String())),
		openToSend: &OpenPayload{
			Version:       4,
			MyAS:          cfg.LocalAS,
			HoldTime:      cfg.HoldTime,
			BGPIdentifier: cfg.LocalBGPID,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionOption configures optional Session parameters.
type SessionOption func(*Session)

// WithSessionMetrics sets the MetricsReporter a Session's Connections
// report transitions into.
func WithSessionMetrics(mr MetricsReporter) SessionOption {
	return func(s *Session) {
		if mr != nil {
			s.metrics = mr
		}
	}
}

// checkIdentifierTuple enforces the core spec's hard requirement that
// this peer address never present two different (AS, BGP-id) tuples:
// the first OPEN received sets the tuple, every later OPEN must match
// it. Callers must hold s.mu.
func (s *Session) checkIdentifierTuple(open *OpenPayload) bool {
	if !s.havePeerIdentity {
		s.peerAS = open.MyAS
		s.peerBGPID = open.BGPIdentifier
		s.havePeerIdentity = true
		return true
	}
	return s.peerAS == open.MyAS && s.peerBGPID == open.BGPIdentifier
}

// Enable runs enable_session: creates the Connections this Session is
// allowed to run (per AllowedModes) and raises BGP_Start on each.
func (s *Session) Enable() {
	s.mu.Lock()
	if s.adminState == AdminEnabled || s.adminState == AdminEstablished {
		s.mu.Unlock()
		return
	}
	s.adminState = AdminEnabled

	var toStart []*Connection
	if s.cfg.AllowedModes != AllowAcceptOnly {
		c := newConnection(s, Primary, s.logger)
		s.connections[Primary] = c
		toStart = append(toStart, c)
	}
	if s.cfg.AllowedModes != AllowConnectOnly {
		c := newConnection(s, Secondary, s.logger)
		s.connections[Secondary] = c
		toStart = append(toStart, c)
	}
	s.mu.Unlock()

	for _, c := range toStart {
		raiseEvent(c, EventBGPStart)
	}
}

// Disable runs disable_session: throws Disabled at every live
// Connection, which fans out into NOTIFICATION delivery and teardown
// (core spec §4.3, scenario 5). A nil notification sends Cease/
// Administrative-Shutdown.
func (s *Session) Disable(notification *NotificationPayload) {
	if notification == nil {
		notification = adminShutdownNotification()
	}
	s.mu.Lock()
	s.adminState = AdminStopping
	live := make([]*Connection, 0, 2)
	for _, c := range s.connections {
		if c != nil {
			live = append(live, c)
		}
	}
	s.mu.Unlock()

	for _, c := range live {
		throw(c, ExceptionDisabled, ErrDisabled, notification, EventBGPStop)
	}
}

// PeerAddress returns the configured peer identity.
func (s *Session) PeerAddress() netip.Addr { return s.cfg.PeerAddress }

// AdminState returns the current administrative lifecycle state.
func (s *Session) AdminState() AdminState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adminState
}

// ConnectionStates returns a snapshot of each live ordinal's FSM
// state, for status reporting (admin API, metrics).
func (s *Session) ConnectionStates() map[Ordinal]State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Ordinal]State)
	for ord, c := range s.connections {
		if c != nil {
			out[Ordinal(ord)] = c.state
		}
	}
	return out
}

// acceptEnabledInvariant recomputes acceptEnabled from the secondary's
// live state, matching the core spec's invariant "accept_enabled is
// true iff the secondary Connection exists and is in Active or
// OpenSent". Callers must hold s.mu.
func (s *Session) acceptEnabledInvariant() bool {
	sec := s.connections[Secondary]
	return sec != nil && (sec.state == StateActive || sec.state == StateOpenSent)
}

// syncAcceptEnabled recomputes and, on change, propagates
// acceptEnabled to the Dialer. Callers must hold s.mu.
func (s *Session) syncAcceptEnabled() {
	want := s.acceptEnabledInvariant()
	if want == s.acceptEnabled {
		return
	}
	s.acceptEnabled = want
	if s.dialer != nil {
		s.dialer.SetAcceptEnabled(s.cfg.LocalAddr, s.cfg.PeerAddress, want)
	}
}

// emit delivers a SessionEvent to the Routeing Engine inbox. Callers
// must hold s.mu per the core spec's "written under the Session mutex"
// rule (§5); the send itself is non-blocking into a buffered channel
// so a slow Routeing Engine reader never stalls the FSM dispatcher.
func (s *Session) emit(ev SessionEvent) {
	ev.Peer = s.cfg.PeerAddress
	if s.events == nil {
		return
	}
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("routeing engine inbox full, dropping session event",
			slog.String("kind", ev.Kind.String()))
	}
}
