package peer

import (
	"log/slog"
	"net/netip"
	"time"
)

// OpenPayload is the FSM's decoded view of a BGP OPEN message — just
// the fields collision resolution and negotiation need. Encoding and
// parsing the wire form live in internal/wire; the FSM never touches
// raw bytes.
type OpenPayload struct {
	Version      uint8
	MyAS         uint32
	HoldTime     time.Duration
	BGPIdentifier uint32
	// Capabilities holds optional-parameter bytes the FSM doesn't
	// interpret. internal/wire's decoder does not fill it and its
	// EncodeOpen does not write it.
	Capabilities []byte
}

// Conn is the southbound I/O surface a Connection drives. It is the
// "out of scope" TCP socket from the core spec's §1/§6, reached only
// through this narrow interface; internal/bgpio supplies the concrete
// implementation.
type Conn interface {
	// Write sends already-encoded BGP message bytes. A return of
	// (0, true, nil), i.e. pending=true, means the bytes were queued,
	// not yet flushed to the kernel.
	Write(b []byte) (n int, pending bool, err error)
	// StopReading begins the "partial close" of the NOTIFICATION send
	// sub-protocol: discard further inbound data without tearing down
	// the write side.
	StopReading()
	// Close fully tears down the socket.
	Close() error
	LocalAddr() netip.AddrPort
	RemoteAddr() netip.AddrPort
}

// Connection represents one TCP attempt at establishing a peering
// (core spec §3).
type Connection struct {
	session *Session // weak back-reference; nulled on unlink
	ordinal Ordinal

	state State

	localAddr, remoteAddr netip.AddrPort

	openRecv *OpenPayload

	holdInterval      time.Duration
	keepaliveInterval time.Duration

	holdTimer      timerSlot
	keepaliveTimer timerSlot

	// idleHold is this connection's current IdleHoldTimer value,
	// persisted across Idle re-entries so nextIdleHold can double it.
	idleHold time.Duration

	exception Exception

	notificationPending bool
	comatose            bool

	// pendingUpdate holds an UPDATE payload delivered by the I/O layer
	// just before Receive_UPDATE is raised, for actionReceiveUpdate to
	// log and clear.
	pendingUpdate []byte

	fsmActive     int
	deferredEvent *Event

	conn   Conn
	codec  Codec
	logger *slog.Logger
}

func newConnection(s *Session, ordinal Ordinal, logger *slog.Logger) *Connection {
	return &Connection{
		session: s,
		ordinal: ordinal,
		state:   StateInitial,
		codec:   s.codec,
		logger:  logger.With(slog.String("ordinal", ordinal.String())),
	}
}

// sibling returns the other ordinal's Connection, or nil if absent.
// This is always a lookup through the Session's slots, never an owning
// reference (core spec §9).
func (c *Connection) sibling() *Connection {
	if c.session == nil {
		return nil
	}
	return c.session.connections[c.ordinal.Other()]
}

// unlink clears the Session<->Connection relationship on entry to
// Stopping (core spec §3, "Lifecycle").
func (c *Connection) unlink() {
	if c.session == nil {
		return
	}
	if c.session.connections[c.ordinal] == c {
		c.session.connections[c.ordinal] = nil
	}
	c.session = nil
}
