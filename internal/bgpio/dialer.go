package bgpio

import (
	"log/slog"
	"net"
	"net/netip"
	"sync"

	"github.com/trungkstn/bgpfsmd/internal/peer"
)

// Port is the well-known BGP TCP port (RFC 4271 §8, "the BGP version
// number (currently 4), AS number ... TCP port 179").
const Port = 179

// Dialer implements peer.Dialer over real TCP sockets. One Dialer is
// shared by every Session a Manager owns; accept_enabled toggles are
// recorded per peer address and consulted by the Listener's accept loop
// (core spec §3, "accept_enabled flag gating acceptance of inbound TCP").
type Dialer struct {
	minTTL uint8

	mu            sync.Mutex
	acceptEnabled map[netip.Addr]bool

	logger *slog.Logger
}

// NewDialer constructs a Dialer. minTTL enables GTSM (RFC 5082): inbound
// connections with an IP TTL below minTTL are rejected before the FSM
// ever sees them. A minTTL of 0 disables the check (the common case for
// non-directly-connected peers).
func NewDialer(minTTL uint8, logger *slog.Logger) *Dialer {
	return &Dialer{
		minTTL:        minTTL,
		acceptEnabled: make(map[netip.Addr]bool),
		logger:        logger.With(slog.String("component", "bgpio.dialer")),
	}
}

// Dial implements peer.Dialer: it returns immediately and performs the
// actual TCP connect on its own goroutine, reporting the outcome back
// through c's Deliver* methods (core spec §4.2, "initiates a
// non-blocking connect"). A successful connect starts the read loop
// immediately, matching actionSendOpen's expectation that c.conn is
// already readable by the time it fires.
func (d *Dialer) Dial(c *peer.Connection, local, remote netip.Addr) {
	go func() {
		raddr := &net.TCPAddr{IP: remote.AsSlice(), Port: Port}
		var laddr *net.TCPAddr
		if local.IsValid() {
			laddr = &net.TCPAddr{IP: local.AsSlice()}
		}

		conn, err := net.DialTCP("tcp", laddr, raddr)
		if err != nil {
			d.reportDialFailure(c, remote, err)
			return
		}
		if d.minTTL > 0 {
			if err := setOutboundMinTTL(conn, d.minTTL); err != nil {
				_ = conn.Close()
				d.reportDialFailure(c, remote, err)
				return
			}
		}

		wrapped := newTCPConn(conn)
		c.DeliverConnectionOpen(wrapped)
		go ReadLoop(c, wrapped, d.logger)
	}()
}

func (d *Dialer) reportDialFailure(c *peer.Connection, remote netip.Addr, err error) {
	d.logger.Debug("outbound connect failed", slog.String("remote", remote.String()), slog.String("error", err.Error()))
	switch classifyConnectError(err) {
	case classHard:
		c.DeliverFatalError(err)
	default:
		c.DeliverConnectionOpenFailed(err)
	}
}

// SetAcceptEnabled implements peer.Dialer: records whether the Listener
// should accept and deliver a new inbound connection for remote.
func (d *Dialer) SetAcceptEnabled(local, remote netip.Addr, enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if enabled {
		d.acceptEnabled[remote] = true
	} else {
		delete(d.acceptEnabled, remote)
	}
}

func (d *Dialer) isAcceptEnabled(remote netip.Addr) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acceptEnabled[remote]
}

var _ peer.Dialer = (*Dialer)(nil)
