package adminapi_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/trungkstn/bgpfsmd/internal/adminapi"
	"github.com/trungkstn/bgpfsmd/internal/peer"
)

const testPeerAddr = "192.0.2.1"

// stubDialer implements peer.Dialer without touching real sockets, the
// admin API tests only exercise administrative state, never the FSM's
// I/O path.
type stubDialer struct{}

func (stubDialer) Dial(*peer.Connection, netip.Addr, netip.Addr) {}
func (stubDialer) SetAcceptEnabled(netip.Addr, netip.Addr, bool) {}

// stubCodec implements peer.Codec with trivial encodings.
type stubCodec struct{}

func (stubCodec) EncodeOpen(*peer.OpenPayload) ([]byte, error) { return []byte{1}, nil }
func (stubCodec) EncodeKeepalive() []byte                      { return []byte{} }
func (stubCodec) EncodeNotification(*peer.NotificationPayload) []byte { return []byte{0, 0} }

func setupTestServer(t *testing.T) (*httptest.Server, *peer.Manager) {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	mgr := peer.NewManager(stubDialer{}, stubCodec{}, logger)

	stop := make(chan struct{})
	go mgr.RunDispatch(stop)
	t.Cleanup(func() { close(stop) })

	mux := adminapi.New(mgr, logger)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, mgr
}

func addTestPeer(t *testing.T, mgr *peer.Manager) netip.Addr {
	t.Helper()
	addr := netip.MustParseAddr(testPeerAddr)
	if _, err := mgr.AddPeer(peer.Config{
		PeerAddress:  addr,
		AllowedModes: peer.AllowBoth,
		IdleHold:     time.Second,
		ConnectRetry: time.Second,
		OpenHold:     time.Second,
		LocalAS:      65001,
	}); err != nil {
		t.Fatalf("AddPeer: %v", err)
	}
	return addr
}

func TestListSessionsEmpty(t *testing.T) {
	t.Parallel()
	srv, _ := setupTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/sessions")
	if err != nil {
		t.Fatalf("GET /v1/sessions: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var sessions []adminapi.SessionStatus
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("sessions = %v, want empty", sessions)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	t.Parallel()
	srv, _ := setupTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/sessions/" + testPeerAddr)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetSessionFound(t *testing.T) {
	t.Parallel()
	srv, mgr := setupTestServer(t)
	addTestPeer(t, mgr)

	resp, err := http.Get(srv.URL + "/v1/sessions/" + testPeerAddr)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var status adminapi.SessionStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Peer != testPeerAddr {
		t.Errorf("peer = %q, want %q", status.Peer, testPeerAddr)
	}
	if status.AdminState != peer.AdminDisabled.String() {
		t.Errorf("admin_state = %q, want %q", status.AdminState, peer.AdminDisabled.String())
	}
}

func TestEnableDisableSession(t *testing.T) {
	t.Parallel()
	srv, mgr := setupTestServer(t)
	addTestPeer(t, mgr)

	resp, err := http.Post(srv.URL+"/v1/sessions/"+testPeerAddr+"/enable", "", nil)
	if err != nil {
		t.Fatalf("POST enable: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("enable status = %d, want 204", resp.StatusCode)
	}

	s, ok := mgr.Lookup(netip.MustParseAddr(testPeerAddr))
	if !ok {
		t.Fatal("peer not found after enable")
	}
	if s.AdminState() != peer.AdminEnabled {
		t.Errorf("AdminState = %v, want AdminEnabled", s.AdminState())
	}

	resp, err = http.Post(srv.URL+"/v1/sessions/"+testPeerAddr+"/disable", "", nil)
	if err != nil {
		t.Fatalf("POST disable: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("disable status = %d, want 204", resp.StatusCode)
	}
	if s.AdminState() != peer.AdminStopping {
		t.Errorf("AdminState after disable = %v, want AdminStopping", s.AdminState())
	}
}

func TestEnableUnknownPeer(t *testing.T) {
	t.Parallel()
	srv, _ := setupTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/sessions/"+testPeerAddr+"/enable", "", nil)
	if err != nil {
		t.Fatalf("POST enable: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
