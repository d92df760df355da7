// Package peer implements the per-peer BGP-4 finite state machine
// (RFC 4271 §8): the table-driven dispatcher, the Connection/Session
// data model, collision resolution, the NOTIFICATION send sub-protocol,
// and the exception taxonomy that drives fall-back-to-Idle versus
// session teardown.
//
// Wire encoding/decoding, TCP socket setup, and UPDATE route processing
// are external collaborators reached through narrow interfaces (Conn,
// Dialer, Codec) and the Connection Deliver* methods — see
// internal/wire and internal/bgpio. UPDATE payloads are not passed on
// to any route-processing collaborator.
package peer
