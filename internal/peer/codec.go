package peer

// Codec encodes the FSM's typed payloads to wire bytes. Decoding wire
// bytes into the matching Receive_* event happens below the FSM
// entirely (core spec §6, io_read_delivered) — the FSM only ever
// encodes what it sends. internal/wire supplies the concrete
// implementation over github.com/osrg/gobgp/v3/pkg/packet/bgp.
type Codec interface {
	EncodeOpen(*OpenPayload) ([]byte, error)
	EncodeKeepalive() []byte
	EncodeNotification(*NotificationPayload) []byte
}

// encodeNotification falls back to a minimal self-describing encoding
// when no Codec is configured, so unit tests exercising the FSM in
// isolation don't need a full wire stack.
func encodeNotification(c *Connection, n *NotificationPayload) []byte {
	if c.codec != nil {
		return c.codec.EncodeNotification(n)
	}
	return []byte{n.Code, n.Subcode}
}

func encodeOpen(c *Connection, o *OpenPayload) []byte {
	if c.codec != nil {
		b, err := c.codec.EncodeOpen(o)
		if err == nil {
			return b
		}
	}
	return []byte{o.Version}
}

func encodeKeepalive(c *Connection) []byte {
	if c.codec != nil {
		return c.codec.EncodeKeepalive()
	}
	return []byte{}
}
