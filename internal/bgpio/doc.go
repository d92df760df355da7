// Package bgpio is the southbound TCP transport the FSM drives through
// internal/peer.Conn and internal/peer.Dialer. It owns real sockets, GTSM
// (RFC 5082) minimum-TTL enforcement, errno classification into soft/hard
// I/O errors, and the read loop that turns inbound bytes into FSM events —
// none of which the core FSM (internal/peer) touches directly (core spec
// §1, §6).
package bgpio
