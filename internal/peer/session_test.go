package peer_test

import (
	"testing"
	"time"

	"github.com/trungkstn/bgpfsmd/internal/peer"
)

func TestEnableAllowBothCreatesBothOrdinals(t *testing.T) {
	t.Parallel()

	cfg := testConfig("203.0.113.1")
	cfg.AllowedModes = peer.AllowBoth

	dialer := &fakeDialer{}
	s := peer.NewSession(cfg, dialer, nil, nil, testLogger())
	s.Enable()

	// Both ordinals exist in Idle as soon as Enable returns; Connect and
	// Active follow once the IdleHoldTimer fires.
	waitForBothOrdinals(t, s)
	waitForState(t, s, peer.Primary, peer.StateConnect)
	waitForState(t, s, peer.Secondary, peer.StateActive)

	states := s.ConnectionStates()
	if _, ok := states[peer.Primary]; !ok {
		t.Error("primary connection not created under AllowBoth")
	}
	if _, ok := states[peer.Secondary]; !ok {
		t.Error("secondary connection not created under AllowBoth")
	}
	if states[peer.Primary] != peer.StateConnect {
		t.Errorf("primary state = %v, want Connect", states[peer.Primary])
	}
	if states[peer.Secondary] != peer.StateActive {
		t.Errorf("secondary state = %v, want Active", states[peer.Secondary])
	}
}

func TestEnableAcceptOnlyCreatesOnlySecondary(t *testing.T) {
	t.Parallel()

	cfg := testConfig("203.0.113.2")
	cfg.AllowedModes = peer.AllowAcceptOnly

	dialer := &fakeDialer{}
	s := peer.NewSession(cfg, dialer, nil, nil, testLogger())
	s.Enable()

	waitForState(t, s, peer.Secondary, peer.StateActive)

	states := s.ConnectionStates()
	if _, ok := states[peer.Primary]; ok {
		t.Error("primary connection created under AllowAcceptOnly")
	}
	if dialer.dials != 0 {
		t.Errorf("dials = %d, want 0 under AllowAcceptOnly", dialer.dials)
	}
}

func TestEnableConnectOnlyCreatesOnlyPrimary(t *testing.T) {
	t.Parallel()

	cfg := testConfig("203.0.113.3")
	cfg.AllowedModes = peer.AllowConnectOnly

	dialer := &fakeDialer{}
	s := peer.NewSession(cfg, dialer, nil, nil, testLogger())
	s.Enable()

	waitForState(t, s, peer.Primary, peer.StateConnect)

	states := s.ConnectionStates()
	if _, ok := states[peer.Secondary]; ok {
		t.Error("secondary connection created under AllowConnectOnly")
	}
}

func TestPeerAddress(t *testing.T) {
	t.Parallel()

	cfg := testConfig("203.0.113.4")
	s := peer.NewSession(cfg, &fakeDialer{}, nil, nil, testLogger())

	if s.PeerAddress() != cfg.PeerAddress {
		t.Errorf("PeerAddress() = %v, want %v", s.PeerAddress(), cfg.PeerAddress)
	}
}

func waitForBothOrdinals(t *testing.T, s *peer.Session) map[peer.Ordinal]peer.State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		states := s.ConnectionStates()
		if len(states) == 2 {
			return states
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for both ordinals, got %v", states)
		}
		time.Sleep(time.Millisecond)
	}
}
