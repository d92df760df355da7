package bgpio

import (
	"errors"
	"io"
	"log/slog"

	"github.com/trungkstn/bgpfsmd/internal/peer"
	"github.com/trungkstn/bgpfsmd/internal/wire"
)

// ReadLoop drains conn and delivers each decoded BGP message to c, until
// a connection-ending error occurs or StopReading has been called (the
// NOTIFICATION send sub-protocol's partial close, core spec §4.5) — at
// that point the loop keeps draining bytes (so the peer's own writes
// never stall) but stops decoding and delivering them.
//
// This is io_read_delivered from core spec §6: it runs entirely below
// the FSM, turning bytes into typed Deliver* calls; it never inspects
// FSM state itself.
func ReadLoop(c *peer.Connection, conn *TCPConn, logger *slog.Logger) {
	var header [wire.HeaderLen]byte
	for {
		if _, err := io.ReadFull(conn.conn, header[:]); err != nil {
			deliverReadError(c, err)
			return
		}

		length := wire.MessageLength(header)
		if int(length) < wire.HeaderLen {
			c.DeliverFatalError(errInvalidLength)
			return
		}

		body := make([]byte, int(length)-wire.HeaderLen)
		if len(body) > 0 {
			if _, err := io.ReadFull(conn.conn, body); err != nil {
				deliverReadError(c, err)
				return
			}
		}

		if conn.readingStopped() {
			continue
		}

		msg := append(append([]byte{}, header[:]...), body...)
		decoded, err := wire.Decode(msg)
		if err != nil {
			logger.Warn("discarding malformed BGP message", slog.String("error", err.Error()))
			continue
		}

		switch decoded.Kind {
		case wire.KindOpen:
			c.DeliverOpen(decoded.Open)
		case wire.KindKeepalive:
			c.DeliverKeepalive()
		case wire.KindUpdate:
			c.DeliverUpdate(decoded.UpdateBody)
		case wire.KindNotification:
			c.DeliverNotification(decoded.Notification)
			return // peer is tearing down; nothing more to read
		}
	}
}

var errInvalidLength = errors.New("BGP message length field below header size")

func deliverReadError(c *peer.Connection, err error) {
	if errors.Is(err, io.EOF) {
		c.DeliverConnectionClosed(err)
		return
	}
	switch classifyIOError(err) {
	case classSoft:
		c.DeliverConnectionClosed(err)
	case classRetryBelowFSM:
		// Should not occur on a blocking io.ReadFull; treat defensively
		// as a soft close rather than silently looping forever.
		c.DeliverConnectionClosed(err)
	default:
		c.DeliverFatalError(err)
	}
}
