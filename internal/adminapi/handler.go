package adminapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"

	"github.com/trungkstn/bgpfsmd/internal/peer"
)

// Handler serves the admin/status surface described in SPEC_FULL.md
// §3.5, backed by a *peer.Manager. New mounts it on its own
// http.ServeMux; cmd/bgpfsmd serves that mux from an admin http.Server
// that is separate from the metrics server.
type Handler struct {
	mgr    *peer.Manager
	logger *slog.Logger
}

// New constructs a Handler and returns it wired into a fresh
// http.ServeMux ready to pass to an http.Server.
func New(mgr *peer.Manager, logger *slog.Logger) *http.ServeMux {
	h := &Handler{mgr: mgr, logger: logger.With(slog.String("component", "adminapi"))}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/sessions", h.listSessions)
	mux.HandleFunc("GET /v1/sessions/{peer}", h.getSession)
	mux.HandleFunc("POST /v1/sessions/{peer}/enable", h.enableSession)
	mux.HandleFunc("POST /v1/sessions/{peer}/disable", h.disableSession)
	mux.HandleFunc("GET /v1/events", h.streamEvents)
	return mux
}

// -------------------------------------------------------------------------
// Wire types
// -------------------------------------------------------------------------

// ConnectionStatus reports one Connection's observed FSM state.
type ConnectionStatus struct {
	Ordinal string `json:"ordinal"`
	State   string `json:"state"`
}

// SessionStatus is the JSON representation of one peer's Session.
type SessionStatus struct {
	Peer        string             `json:"peer"`
	AdminState  string             `json:"admin_state"`
	Connections []ConnectionStatus `json:"connections"`
}

// SessionEventPayload is one SessionEvent serialized for the /v1/events
// stream.
type SessionEventPayload struct {
	Peer         string `json:"peer"`
	Kind         string `json:"kind"`
	Ordinal      string `json:"ordinal"`
	Stopped      bool   `json:"stopped"`
	Err          string `json:"error,omitempty"`
	NotifyCode   uint8  `json:"notify_code,omitempty"`
	NotifySub    uint8  `json:"notify_subcode,omitempty"`
}

// errorBody is the JSON body returned on non-2xx responses.
type errorBody struct {
	Error string `json:"error"`
}

func sessionToStatus(s *peer.Session) SessionStatus {
	states := s.ConnectionStates()
	conns := make([]ConnectionStatus, 0, len(states))
	for ord, st := range states {
		conns = append(conns, ConnectionStatus{Ordinal: ord.String(), State: st.String()})
	}
	return SessionStatus{
		Peer:        s.PeerAddress().String(),
		AdminState:  s.AdminState().String(),
		Connections: conns,
	}
}

func eventToPayload(ev peer.SessionEvent) SessionEventPayload {
	p := SessionEventPayload{
		Peer:    ev.Peer.String(),
		Kind:    ev.Kind.String(),
		Ordinal: ev.Ordinal.String(),
		Stopped: ev.Stopped,
	}
	if ev.Err != nil {
		p.Err = ev.Err.Error()
	}
	if ev.Notification != nil {
		p.NotifyCode = ev.Notification.Code
		p.NotifySub = ev.Notification.Subcode
	}
	return p
}

// -------------------------------------------------------------------------
// Handlers
// -------------------------------------------------------------------------

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	addrs := h.mgr.Peers()
	out := make([]SessionStatus, 0, len(addrs))
	for _, addr := range addrs {
		if s, ok := h.mgr.Lookup(addr); ok {
			out = append(out, sessionToStatus(s))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	addr, err := parsePeerPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s, ok := h.mgr.Lookup(addr)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("session %s: %w", addr, peer.ErrUnknownPeer))
		return
	}
	writeJSON(w, http.StatusOK, sessionToStatus(s))
}

func (h *Handler) enableSession(w http.ResponseWriter, r *http.Request) {
	addr, err := parsePeerPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.mgr.EnablePeer(addr); err != nil {
		h.writeMappedError(w, "enable session", err)
		return
	}
	h.logger.Info("session enabled via admin API", slog.String("peer", addr.String()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) disableSession(w http.ResponseWriter, r *http.Request) {
	addr, err := parsePeerPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.mgr.DisablePeer(addr, administrativeShutdownNotification()); err != nil {
		h.writeMappedError(w, "disable session", err)
		return
	}
	h.logger.Info("session disabled via admin API", slog.String("peer", addr.String()))
	w.WriteHeader(http.StatusNoContent)
}

// streamEvents streams newline-delimited JSON SessionEvents as they
// occur, for bgpfsmctl's "monitor" command. It blocks until the client
// disconnects or the server shuts the request context down.
func (h *Handler) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-h.mgr.Events():
			if !ok {
				return
			}
			if err := enc.Encode(eventToPayload(ev)); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

func parsePeerPath(r *http.Request) (netip.Addr, error) {
	raw := strings.TrimSpace(r.PathValue("peer"))
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parse peer %q: %w", raw, err)
	}
	return addr, nil
}

// writeMappedError translates peer.Manager sentinel errors into HTTP
// status codes, mirroring the teacher's mapManagerError-to-connect.Error
// pattern but targeting stdlib status codes instead (SPEC_FULL.md §2.2).
func (h *Handler) writeMappedError(w http.ResponseWriter, operation string, err error) {
	switch {
	case errors.Is(err, peer.ErrUnknownPeer):
		writeError(w, http.StatusNotFound, fmt.Errorf("%s: %w", operation, err))
	case errors.Is(err, peer.ErrDuplicatePeer):
		writeError(w, http.StatusConflict, fmt.Errorf("%s: %w", operation, err))
	case errors.Is(err, peer.ErrInvalidPeerAddress):
		writeError(w, http.StatusBadRequest, fmt.Errorf("%s: %w", operation, err))
	default:
		h.logger.Error("admin API internal error", slog.String("operation", operation), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, fmt.Errorf("%s: %w", operation, err))
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// administrativeShutdownNotification is the Cease/AdministrativeShutdown
// NOTIFICATION sent when an operator disables a session via the admin
// API (RFC 4271 §8's Cease code, subcode 2 per RFC 8203).
func administrativeShutdownNotification() *peer.NotificationPayload {
	return &peer.NotificationPayload{
		Code:    peer.NotifyCodeCease,
		Subcode: 2,
	}
}
