package wire

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"time"

	"github.com/osrg/gobgp/v3/pkg/packet/bgp"

	"github.com/trungkstn/bgpfsmd/internal/peer"
)

// MessageKind discriminates a decoded BGP message for the I/O layer,
// which maps it onto the matching Receive_* event (core spec §6,
// io_read_delivered runs below the FSM).
type MessageKind int

const (
	KindUnknown MessageKind = iota
	KindOpen
	KindUpdate
	KindKeepalive
	KindNotification
)

// DecodedMessage is the I/O layer's view of one inbound BGP message.
type DecodedMessage struct {
	Kind         MessageKind
	Open         *peer.OpenPayload
	UpdateBody   []byte
	Notification *peer.NotificationPayload
}

// HeaderLen is the fixed BGP message header size (RFC 4271 §4.1): 16
// marker octets, a 2-octet length, and a 1-octet type.
const HeaderLen = 19

// MessageLength reads the 2-octet total length field out of a BGP
// message header so the I/O layer's reader knows how many more bytes
// to buffer before calling Decode.
func MessageLength(header [HeaderLen]byte) uint16 {
	return binary.BigEndian.Uint16(header[16:18])
}

// Decode parses one complete BGP message (header included) into a
// DecodedMessage. It never inspects FSM state: collision resolution,
// legality of the message for the current state, and hold-timer
// bookkeeping all happen above this layer once the event is raised.
func Decode(b []byte) (DecodedMessage, error) {
	msg, err := bgp.ParseBGPMessage(b)
	if err != nil {
		return DecodedMessage{}, fmt.Errorf("decode BGP message: %w", err)
	}

	switch body := msg.Body.(type) {
	case *bgp.BGPOpen:
		return DecodedMessage{Kind: KindOpen, Open: decodeOpen(body)}, nil
	case *bgp.BGPUpdate:
		return DecodedMessage{Kind: KindUpdate, UpdateBody: b[HeaderLen:]}, nil
	case *bgp.BGPKeepAlive:
		return DecodedMessage{Kind: KindKeepalive}, nil
	case *bgp.BGPNotification:
		return DecodedMessage{Kind: KindNotification, Notification: &peer.NotificationPayload{
			Code:    body.ErrorCode,
			Subcode: body.ErrorSubcode,
			Data:    body.Data,
		}}, nil
	default:
		return DecodedMessage{}, fmt.Errorf("decode BGP message: unsupported type %T", body)
	}
}

func decodeOpen(o *bgp.BGPOpen) *peer.OpenPayload {
	as := uint32(o.MyAS)
	for _, p := range o.OptParams {
		cap, ok := p.(*bgp.OptionParameterCapability)
		if !ok {
			continue
		}
		for _, c := range cap.Capability {
			if as4, ok := c.(*bgp.CapAs4); ok {
				as = as4.CapValue
			}
		}
	}

	id, ok := netip.AddrFromSlice(o.BGPIdentifier.To4())
	var idNum uint32
	if ok && id.Is4() {
		b := id.As4()
		idNum = binary.BigEndian.Uint32(b[:])
	}

	return &peer.OpenPayload{
		Version:       o.Version,
		MyAS:          as,
		HoldTime:      time.Duration(o.HoldTime) * time.Second,
		BGPIdentifier: idNum,
	}
}
