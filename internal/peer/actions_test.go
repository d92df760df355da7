package peer_test

import (
	"testing"
	"time"

	"github.com/trungkstn/bgpfsmd/internal/peer"
)

func TestNegotiateHold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		local time.Duration
		peer  time.Duration
		want  time.Duration
	}{
		{"local smaller wins", 30 * time.Second, 90 * time.Second, 30 * time.Second},
		{"peer smaller wins", 90 * time.Second, 30 * time.Second, 30 * time.Second},
		{"equal stays equal", 90 * time.Second, 90 * time.Second, 90 * time.Second},
		{"peer offers zero disables keepalive", 90 * time.Second, 0, 0},
		{"local offers zero disables keepalive", 0, 90 * time.Second, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := peer.NegotiateHoldForTest(tt.local, tt.peer); got != tt.want {
				t.Errorf("negotiateHold(%v, %v) = %v, want %v", tt.local, tt.peer, got, tt.want)
			}
		})
	}
}

// TestEstablishedSendsPeriodicKeepalives proves the negotiated interval
// computed in actionRecvOpen actually drives the KeepaliveTimer: with a
// short HoldTime on both sides, Established must re-send KEEPALIVE on
// its own well after the initial OPEN-ack write.
func TestEstablishedSendsPeriodicKeepalives(t *testing.T) {
	t.Parallel()

	cfg := testConfig("192.0.2.10")
	cfg.HoldTime = 90 * time.Millisecond // negotiated keepalive = 30ms

	dialer := &fakeDialer{autoConnect: true}
	events := make(chan peer.SessionEvent, 16)
	s := peer.NewSession(cfg, dialer, nil, events, testLogger())

	s.Enable()
	waitForState(t, s, peer.Primary, peer.StateOpenSent)
	conn := s.ConnectionFor(peer.Primary)

	conn.DeliverOpen(&peer.OpenPayload{Version: 4, MyAS: 65002, BGPIdentifier: 0x0A000002, HoldTime: 90 * time.Millisecond})
	conn.DeliverKeepalive()
	if got := s.ConnectionStates()[peer.Primary]; got != peer.StateEstablished {
		t.Fatalf("state = %v, want Established", got)
	}
	drainEvent(t, events) // Established

	fc := dialer.lastConnForTest()
	before := fc.writeCount()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fc.writeCount() > before {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("no KEEPALIVE re-sent after negotiated interval elapsed (writeCount stuck at %d)", before)
}

// TestRejectsMismatchedIdentifierTuple delivers one OPEN to establish
// this peer address's (AS, BGP identifier) tuple, drops back to Idle
// via a hard I/O error in OpenConfirm, lets the same Connection
// reconnect, and asserts a second OPEN presenting a different tuple is
// rejected rather than silently accepted.
func TestRejectsMismatchedIdentifierTuple(t *testing.T) {
	t.Parallel()

	cfg := testConfig("192.0.2.11")
	dialer := &fakeDialer{autoConnect: true}
	events := make(chan peer.SessionEvent, 16)
	s := peer.NewSession(cfg, dialer, nil, events, testLogger())

	s.Enable()
	waitForState(t, s, peer.Primary, peer.StateOpenSent)
	conn := s.ConnectionFor(peer.Primary)

	conn.DeliverOpen(&peer.OpenPayload{Version: 4, MyAS: 65002, BGPIdentifier: 0x0A000002})
	if got := s.ConnectionStates()[peer.Primary]; got != peer.StateOpenConfirm {
		t.Fatalf("after first OPEN, state = %v, want OpenConfirm", got)
	}

	conn.DeliverFatalError(nil)
	ev := recvEvent(t, events)
	if ev.Kind != peer.ExceptionTCPDropped {
		t.Fatalf("event kind = %v, want ExceptionTCPDropped", ev.Kind)
	}

	waitForStateWithin(t, s, peer.Primary, peer.StateOpenSent, 10*time.Second)
	conn = s.ConnectionFor(peer.Primary)

	conn.DeliverOpen(&peer.OpenPayload{Version: 4, MyAS: 65099, BGPIdentifier: 0x0A0000FF})

	ev = recvEvent(t, events)
	if ev.Kind != peer.ExceptionBadIdentifierTuple {
		t.Fatalf("event kind = %v, want ExceptionBadIdentifierTuple", ev.Kind)
	}
	if got := s.ConnectionStates()[peer.Primary]; got != peer.StateIdle {
		t.Errorf("after mismatched tuple, state = %v, want Idle", got)
	}
}

// TestCollisionDiscardDisablesAccept drives AllowBoth through a
// collision: the secondary sits accepting in Active while the primary
// establishes, and establishment must flip accept_enabled back off via
// the Discard path (core spec's accept_enabled invariant).
func TestCollisionDiscardDisablesAccept(t *testing.T) {
	t.Parallel()

	cfg := testConfig("192.0.2.12")
	cfg.AllowedModes = peer.AllowBoth

	dialer := &fakeDialer{autoConnect: true}
	events := make(chan peer.SessionEvent, 16)
	s := peer.NewSession(cfg, dialer, nil, events, testLogger())

	s.Enable()
	waitForState(t, s, peer.Secondary, peer.StateActive)
	waitForState(t, s, peer.Primary, peer.StateOpenSent)

	if !dialer.lastAcceptCall() {
		t.Fatalf("accept_enabled never turned on for secondary in Active")
	}

	primary := s.ConnectionFor(peer.Primary)
	primary.DeliverOpen(&peer.OpenPayload{Version: 4, MyAS: 65002, BGPIdentifier: 0x0A000002})
	primary.DeliverKeepalive()

	waitForState(t, s, peer.Primary, peer.StateEstablished)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !dialer.lastAcceptCall() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("accept_enabled stayed true after secondary was discarded into Stopping")
}
