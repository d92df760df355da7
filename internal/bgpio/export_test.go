package bgpio

import (
	"net"
	"net/netip"
)

// NewTCPConnForTest exposes the unexported TCPConn constructor to
// external tests (package bgpio_test) that set up real loopback sockets.
func NewTCPConnForTest(c *net.TCPConn) *TCPConn {
	return newTCPConn(c)
}

// IsAcceptEnabledForTest exposes Dialer.isAcceptEnabled for assertions
// in external tests.
func (d *Dialer) IsAcceptEnabledForTest(remote netip.Addr) bool {
	return d.isAcceptEnabled(remote)
}

// ReadingStoppedForTest exposes TCPConn.readingStopped for assertions in
// external tests.
func (c *TCPConn) ReadingStoppedForTest() bool {
	return c.readingStopped()
}

var ClassifyIOErrorForTest = classifyIOError
var ClassifyConnectErrorForTest = classifyConnectError
var SetOutboundMinTTLForTest = setOutboundMinTTL
var ApplyInboundMinTTLForTest = applyInboundMinTTL

type ClassificationForTest = classification

const (
	ClassSoftForTest           = classSoft
	ClassHardForTest           = classHard
	ClassRetryBelowFSMForTest  = classRetryBelowFSM
)
