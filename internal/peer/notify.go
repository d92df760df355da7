package peer

// beginSendNotification runs the NOTIFICATION send sub-protocol (core
// spec §4.5). It returns the next_state the caller should actually
// transition to — overridden back to the current state unless
// intendedNext is already Stopping, since the FSM must not leave the
// current state until the NOTIFICATION process terminates.
func beginSendNotification(c *Connection, intendedNext State, n *NotificationPayload) State {
	nextState := intendedNext
	if nextState != StateStopping {
		nextState = c.state
	}

	// Partial close: stop reading, discard the read buffer.
	if c.conn != nil {
		c.conn.StopReading()
	}

	// Flush pending writes, then write the NOTIFICATION synchronously.
	wire := encodeNotification(c, n)
	if c.conn == nil {
		return nextState
	}

	n0, pending, err := c.conn.Write(wire)
	switch {
	case err != nil:
		// Write failed: an I/O-error event follows; exit will close.
		post(c, ExceptionTCPError, err, nil)
		c.deferEvent(EventTCPFatalError)
	case pending:
		c.notificationPending = true
		d := courtesyHoldTimer
		if nextState == StateStopping {
			d = stoppingHoldTimer
		}
		c.holdTimer.arm(d, func() { raiseEvent(c, EventHoldTimerExpired) })
	case n0 > 0:
		// Flushed through to the kernel immediately: raise
		// Sent_NOTIFICATION via the deferred-event slot.
		c.deferEvent(EventSentNotification)
	}

	return nextState
}

// closeConnection fully tears down the socket without attempting to
// deliver a NOTIFICATION, and disarms both timer slots.
func closeConnection(c *Connection) {
	closeSocketOnly(c)
	c.holdTimer.disarm()
	c.keepaliveTimer.disarm()
}

// closeSocketOnly closes the TCP attempt without touching either timer
// slot. Used by actionFailed, where the ConnectRetryTimer (borrowing
// the hold timer slot while in Connect/Active) must keep ticking
// across repeated soft connect failures (core spec §8 scenario 3:
// "timer unchanged").
func closeSocketOnly(c *Connection) {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}
