package bgpio

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

// setOutboundMinTTL sets the outgoing IP TTL to 255, the GTSM sender side
// (RFC 5082 §3): "a GTSM-capable router ... MUST set the TTL of 255 on
// all packets".
func setOutboundMinTTL(conn *net.TCPConn, _ uint8) error {
	if err := ipv4.NewConn(conn).SetTTL(255); err != nil {
		return fmt.Errorf("set outbound TTL: %w", err)
	}
	return nil
}

// applyInboundMinTTL implements the GTSM receiver side (RFC 5082 §3) via
// Linux's IP_MINTTL socket option: the kernel itself drops any inbound
// segment whose TTL falls below minTTL, before userspace ever sees it —
// simpler and more robust than inspecting ancillary TTL data per packet.
// minTTL=0 disables the check.
func applyInboundMinTTL(conn *net.TCPConn, minTTL uint8) error {
	if minTTL == 0 {
		return nil
	}
	raw, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("apply GTSM min-ttl: %w", err)
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_MINTTL, int(minTTL))
	})
	if err != nil {
		return fmt.Errorf("apply GTSM min-ttl: %w", err)
	}
	if sockErr != nil {
		return fmt.Errorf("apply GTSM min-ttl: %w", sockErr)
	}
	return nil
}
