package wire_test

import (
	"testing"
	"time"

	"github.com/trungkstn/bgpfsmd/internal/peer"
	"github.com/trungkstn/bgpfsmd/internal/wire"
)

func TestEncodeDecodeOpenRoundTrip(t *testing.T) {
	t.Parallel()

	c := wire.Codec{}
	open := &peer.OpenPayload{
		Version:       4,
		MyAS:          65001,
		HoldTime:      90 * time.Second,
		BGPIdentifier: 0x0A000001, // 10.0.0.1
	}

	b, err := c.EncodeOpen(open)
	if err != nil {
		t.Fatalf("EncodeOpen: %v", err)
	}

	msg, err := wire.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Kind != wire.KindOpen {
		t.Fatalf("Kind = %v, want KindOpen", msg.Kind)
	}
	if msg.Open.MyAS != open.MyAS {
		t.Errorf("MyAS = %d, want %d", msg.Open.MyAS, open.MyAS)
	}
	if msg.Open.Version != open.Version {
		t.Errorf("Version = %d, want %d", msg.Open.Version, open.Version)
	}
	if msg.Open.HoldTime != open.HoldTime {
		t.Errorf("HoldTime = %v, want %v", msg.Open.HoldTime, open.HoldTime)
	}
	if msg.Open.BGPIdentifier != open.BGPIdentifier {
		t.Errorf("BGPIdentifier = %#x, want %#x", msg.Open.BGPIdentifier, open.BGPIdentifier)
	}
}

func TestEncodeOpenFourOctetAS(t *testing.T) {
	t.Parallel()

	c := wire.Codec{}
	open := &peer.OpenPayload{
		Version:       4,
		MyAS:          4200000001, // above the two-octet range, needs RFC 6793
		HoldTime:      90 * time.Second,
		BGPIdentifier: 0x0A000002,
	}

	b, err := c.EncodeOpen(open)
	if err != nil {
		t.Fatalf("EncodeOpen: %v", err)
	}

	msg, err := wire.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Open.MyAS != open.MyAS {
		t.Errorf("MyAS = %d, want %d (four-octet capability round trip)", msg.Open.MyAS, open.MyAS)
	}
}

func TestEncodeDecodeKeepaliveRoundTrip(t *testing.T) {
	t.Parallel()

	c := wire.Codec{}
	b := c.EncodeKeepalive()
	if len(b) != wire.HeaderLen {
		t.Fatalf("len(KEEPALIVE) = %d, want %d", len(b), wire.HeaderLen)
	}

	msg, err := wire.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Kind != wire.KindKeepalive {
		t.Errorf("Kind = %v, want KindKeepalive", msg.Kind)
	}
}

func TestEncodeDecodeNotificationRoundTrip(t *testing.T) {
	t.Parallel()

	c := wire.Codec{}
	n := &peer.NotificationPayload{
		Code:    peer.NotifyCodeCeaseAdministrative,
		Subcode: peer.NotifySubcodeAdminShutdown,
	}
	b := c.EncodeNotification(n)

	msg, err := wire.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Kind != wire.KindNotification {
		t.Fatalf("Kind = %v, want KindNotification", msg.Kind)
	}
	if msg.Notification.Code != n.Code || msg.Notification.Subcode != n.Subcode {
		t.Errorf("Notification = %+v, want code=%d subcode=%d", msg.Notification, n.Code, n.Subcode)
	}
}

func TestMessageLength(t *testing.T) {
	t.Parallel()

	c := wire.Codec{}
	b := c.EncodeKeepalive()

	var header [wire.HeaderLen]byte
	copy(header[:], b)

	if got := wire.MessageLength(header); int(got) != len(b) {
		t.Errorf("MessageLength = %d, want %d", got, len(b))
	}
}

func TestDecodeInvalidBytes(t *testing.T) {
	t.Parallel()

	_, err := wire.Decode([]byte{0x00, 0x01, 0x02})
	if err == nil {
		t.Fatal("Decode(garbage) returned nil error")
	}
}
