package wire

import (
	"fmt"
	"net"

	"github.com/osrg/gobgp/v3/pkg/packet/bgp"

	"github.com/trungkstn/bgpfsmd/internal/peer"
)

// Codec implements peer.Codec over github.com/osrg/gobgp/v3/pkg/packet/bgp.
// It is stateless and safe for concurrent use across every Session a
// Manager owns.
type Codec struct{}

var _ peer.Codec = Codec{}

// EncodeOpen serializes an OPEN message. AS numbers above 65535 are
// carried via the four-octet AS capability (RFC 6793) with the
// transitional AS_TRANS (23456) in the fixed header field, matching
// gobgp's own construction helper.
func (Codec) EncodeOpen(o *peer.OpenPayload) ([]byte, error) {
	asField := uint16(o.MyAS)
	var caps []bgp.ParameterCapabilityInterface
	if o.MyAS > 65535 {
		asField = bgp.AS_TRANS
		caps = append(caps, bgp.NewCapAs4(o.MyAS))
	}

	id := net.IP{
		byte(o.BGPIdentifier >> 24),
		byte(o.BGPIdentifier >> 16),
		byte(o.BGPIdentifier >> 8),
		byte(o.BGPIdentifier),
	}

	var optParams []bgp.OptionParameterInterface
	if len(caps) > 0 {
		optParams = append(optParams, bgp.NewOptionParameterCapability(caps))
	}

	msg := bgp.NewBGPOpenMessage(asField, uint16(o.HoldTime.Seconds()), id.String(), optParams)
	b, err := msg.Serialize()
	if err != nil {
		return nil, fmt.Errorf("encode OPEN: %w", err)
	}
	return b, nil
}

// EncodeKeepalive serializes a KEEPALIVE (header only, no body).
func (Codec) EncodeKeepalive() []byte {
	msg := bgp.NewBGPKeepAliveMessage()
	b, err := msg.Serialize()
	if err != nil {
		// A KEEPALIVE has no variable-length body; serialization cannot
		// fail in practice. Fall back to the fixed 19-byte header form
		// rather than propagating an error the Codec interface has no
		// room for.
		return fixedKeepaliveBytes()
	}
	return b
}

// EncodeNotification serializes a NOTIFICATION with the given code,
// subcode and optional data (core spec §6's NOTIFICATION payload).
func (Codec) EncodeNotification(n *peer.NotificationPayload) []byte {
	msg := bgp.NewBGPNotificationMessage(n.Code, n.Subcode, n.Data)
	b, err := msg.Serialize()
	if err != nil {
		return []byte{n.Code, n.Subcode}
	}
	return b
}

func fixedKeepaliveBytes() []byte {
	b := make([]byte, 19)
	for i := 0; i < 16; i++ {
		b[i] = 0xff
	}
	b[16], b[17] = 0, 19
	b[18] = bgp.BGP_MSG_KEEPALIVE
	return b
}
