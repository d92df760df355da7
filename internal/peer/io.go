package peer

// The methods in this file are the public face of io_read_delivered and
// io_connect_completed from core spec §6: the narrow surface internal/bgpio
// uses to push completions into a Connection without reaching into its
// unexported fields. Decoding wire bytes happens in internal/wire, and
// internal/bgpio's ReadLoop picks the matching Deliver* call; nothing
// here interprets BGP wire format.
//
// Each Deliver* method sets whatever payload field the triggered action
// needs and raises the matching event under the Session mutex in one
// locked step — mirroring raiseEvent's own locking exactly rather than
// setting the field beforehand, so a payload write can never race a
// concurrent dispatch on the same Connection.

// ConnectionFor returns the live Connection for ordinal, or nil. The
// returned pointer's Deliver* methods are safe to call from any
// goroutine.
func (s *Session) ConnectionFor(ord Ordinal) *Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections[ord]
}

func (c *Connection) deliverLocked(ev Event, setup func()) {
	s := c.session
	if s == nil {
		setup()
		dispatchLoop(c, ev, nil)
		return
	}
	s.mu.Lock()
	setup()
	dispatchLoop(c, ev, s)
	s.mu.Unlock()
}

// DeliverConnectionOpen reports that the outbound connect (primary) or
// inbound accept (secondary) completed, handing over the live Conn.
func (c *Connection) DeliverConnectionOpen(conn Conn) {
	c.deliverLocked(EventTCPConnectionOpen, func() { c.conn = conn })
}

// DeliverConnectionOpenFailed reports a failed outbound connect attempt
// (Connect/Active only); the caller classifies soft vs. hard beforehand
// and calls DeliverFatalError instead for the hard case.
func (c *Connection) DeliverConnectionOpenFailed(err error) {
	c.deliverLocked(EventTCPConnectionOpenFailed, func() { post(c, ExceptionTCPFailed, err, nil) })
}

// DeliverConnectionClosed reports a soft I/O error or a clean remote
// close on an already-established socket.
func (c *Connection) DeliverConnectionClosed(_ error) {
	c.deliverLocked(EventTCPConnectionClosed, func() {})
}

// DeliverFatalError reports a hard I/O error.
func (c *Connection) DeliverFatalError(_ error) {
	c.deliverLocked(EventTCPFatalError, func() {})
}

// DeliverOpen reports a fully decoded OPEN message.
func (c *Connection) DeliverOpen(o *OpenPayload) {
	c.deliverLocked(EventReceiveOpen, func() { c.openRecv = o })
}

// DeliverKeepalive reports a fully decoded KEEPALIVE message.
func (c *Connection) DeliverKeepalive() {
	c.deliverLocked(EventReceiveKeepalive, func() {})
}

// DeliverUpdate reports a fully decoded UPDATE message body, already
// stripped of its BGP header.
func (c *Connection) DeliverUpdate(body []byte) {
	c.deliverLocked(EventReceiveUpdate, func() { c.pendingUpdate = body })
}

// DeliverNotification reports a fully decoded NOTIFICATION message.
func (c *Connection) DeliverNotification(n *NotificationPayload) {
	c.deliverLocked(EventReceiveNotification, func() { post(c, ExceptionNOMRecv, ErrNotificationRcv, n) })
}
