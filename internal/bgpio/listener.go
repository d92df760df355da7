package bgpio

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"

	"github.com/trungkstn/bgpfsmd/internal/peer"
)

// Listener accepts inbound TCP connections on the well-known BGP port and
// hands each one to the matching Session's secondary Connection, provided
// that Session currently has accept_enabled set (core spec §3). It is the
// single shared listening socket every configured peer's secondary
// ordinal demultiplexes through, mirroring the teacher's netio.Listener
// shape (one socket, demux to the owning session) adapted from UDP/BFD
// discriminator demux to TCP/BGP remote-address demux.
type Listener struct {
	ln     *net.TCPListener
	dialer *Dialer
	lookup func(remote netip.Addr) (*peer.Session, bool)
	logger *slog.Logger
}

// NewListener binds the BGP TCP port on addr ("" for all interfaces).
// lookup resolves an inbound connection's remote address to the Session
// configured for it; typically (*peer.Manager).Lookup.
func NewListener(addr string, dialer *Dialer, lookup func(netip.Addr) (*peer.Session, bool), logger *slog.Logger) (*Listener, error) {
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP(addr), Port: Port})
	if err != nil {
		return nil, fmt.Errorf("listen on BGP port: %w", err)
	}
	return &Listener{
		ln:     ln,
		dialer: dialer,
		lookup: lookup,
		logger: logger.With(slog.String("component", "bgpio.listener")),
	}, nil
}

// Serve runs the accept loop until ctx is cancelled or the listener is
// closed. Each accepted connection is matched against a configured,
// accept-enabled peer; anything else is closed immediately without ever
// reaching the FSM.
func (l *Listener) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = l.ln.Close()
	}()

	for {
		conn, err := l.ln.AcceptTCP()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go l.handleAccepted(conn)
	}
}

func (l *Listener) handleAccepted(conn *net.TCPConn) {
	remoteAddr, ok := netip.AddrFromSlice(conn.RemoteAddr().(*net.TCPAddr).IP)
	if !ok {
		_ = conn.Close()
		return
	}
	remoteAddr = remoteAddr.Unmap()

	if err := applyInboundMinTTL(conn, l.dialer.minTTL); err != nil {
		l.logger.Warn("rejecting inbound connection: GTSM check failed",
			slog.String("remote", remoteAddr.String()), slog.String("error", err.Error()))
		_ = conn.Close()
		return
	}

	if !l.dialer.isAcceptEnabled(remoteAddr) {
		l.logger.Debug("rejecting inbound connection: accept not enabled",
			slog.String("remote", remoteAddr.String()))
		_ = conn.Close()
		return
	}

	session, ok := l.lookup(remoteAddr)
	if !ok {
		l.logger.Debug("rejecting inbound connection: unknown peer",
			slog.String("remote", remoteAddr.String()))
		_ = conn.Close()
		return
	}

	secondary := session.ConnectionFor(peer.Secondary)
	if secondary == nil {
		_ = conn.Close()
		return
	}

	wrapped := newTCPConn(conn)
	secondary.DeliverConnectionOpen(wrapped)
	go ReadLoop(secondary, wrapped, l.logger)
}
