// Package wire encodes and decodes BGP-4 OPEN, UPDATE, KEEPALIVE and
// NOTIFICATION messages on top of github.com/osrg/gobgp/v3's wire types.
// It implements peer.Codec, the single seam the FSM uses to reach actual
// BGP bytes — the FSM itself never touches the wire format (core spec §1,
// §6: BGP message encoding/decoding is an external collaborator).
package wire
