package bgpio

import (
	"fmt"
	"net"
	"net/netip"
	"sync"
)

// TCPConn adapts a *net.TCPConn to peer.Conn. The "partial close" the
// NOTIFICATION send sub-protocol needs (core spec §4.5, stop reading
// without tearing down the write side) has no direct net.TCPConn
// equivalent, so StopReading instead sets a flag the read loop checks
// before delivering any further bytes upward — functionally identical
// from the FSM's point of view.
type TCPConn struct {
	conn *net.TCPConn

	mu          sync.Mutex
	stopReading bool
}

func newTCPConn(c *net.TCPConn) *TCPConn {
	return &TCPConn{conn: c}
}

// Write implements peer.Conn. Go's net package blocks the call until
// the kernel send buffer accepts the bytes or an error occurs. An
// EAGAIN/EINTR failure is returned as (0, true, nil), a queued write
// from the FSM's point of view; any other error is returned with
// pending=false.
func (c *TCPConn) Write(b []byte) (n int, pending bool, err error) {
	n, err = c.conn.Write(b)
	if err != nil {
		cls := classifyIOError(err)
		if cls == classRetryBelowFSM {
			// Treat as queued rather than surfacing EAGAIN/EINTR to the
			// FSM, which never sees those (core spec §6).
			return 0, true, nil
		}
		return n, false, fmt.Errorf("write: %w", err)
	}
	return n, false, nil
}

// StopReading begins the partial close: the read loop keeps draining the
// socket (so the peer's own writes don't stall on a full buffer) but
// stops delivering bytes upward.
func (c *TCPConn) StopReading() {
	c.mu.Lock()
	c.stopReading = true
	c.mu.Unlock()
}

func (c *TCPConn) readingStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopReading
}

// Close fully tears down the socket.
func (c *TCPConn) Close() error {
	return c.conn.Close()
}

// LocalAddr returns the local endpoint.
func (c *TCPConn) LocalAddr() netip.AddrPort {
	return addrPortOf(c.conn.LocalAddr())
}

// RemoteAddr returns the remote endpoint.
func (c *TCPConn) RemoteAddr() netip.AddrPort {
	return addrPortOf(c.conn.RemoteAddr())
}

func addrPortOf(a net.Addr) netip.AddrPort {
	tcpAddr, ok := a.(*net.TCPAddr)
	if !ok {
		return netip.AddrPort{}
	}
	addr, ok := netip.AddrFromSlice(tcpAddr.IP)
	if !ok {
		return netip.AddrPort{}
	}
	return netip.AddrPortFrom(addr.Unmap(), uint16(tcpAddr.Port))
}
