package peer

import (
	"log/slog"
	"time"
)

// actionEnter moves the new Connection to Idle; onStateChange (enterIdle)
// then arms the IdleHoldTimer with the configured IdleHold, at least
// 1 s, so the secondary connection is always created before any state
// can advance (core spec §4.2).
func actionEnter(c *Connection, _ Event) State {
	return StateIdle
}

// actionStart runs `start`: primary initiates a non-blocking connect
// and moves to Connect; secondary enables accept and moves to Active
// (core spec §4.2).
func actionStart(c *Connection, _ Event) State {
	if c.session == nil {
		return StateStopping
	}
	s := c.session
	if c.ordinal == Primary {
		if s.dialer != nil {
			s.dialer.Dial(c, s.cfg.LocalAddr, s.cfg.PeerAddress)
		}
		// ConnectRetryTimer borrows the hold timer slot while in
		// Connect/Active; it keeps running regardless of this
		// attempt's outcome (core spec §5, §8 scenario 3).
		c.holdTimer.arm(jitter(s.cfg.ConnectRetry, s.cfg.JitterEnabled),
			func() { raiseEvent(c, EventConnectRetryTimerExpired) })
		return StateConnect
	}
	return StateActive
}

// actionSendOpen is called once TCP is up: it writes the configured
// OPEN and arms the OpenHold timer (core spec §4.2).
func actionSendOpen(c *Connection, _ Event) State {
	s := c.session
	if s == nil || c.conn == nil {
		return StateStopping
	}
	_, _, err := c.conn.Write(encodeOpen(c, s.openToSend))
	if err != nil {
		post(c, ExceptionTCPError, err, nil)
		c.deferEvent(EventTCPFatalError)
		return StateOpenSent
	}
	c.holdTimer.arm(s.cfg.OpenHold, func() { raiseEvent(c, EventHoldTimerExpired) })
	return StateOpenSent
}

// actionFailed handles a soft connect-time failure: close the socket
// and wait for ConnectRetryTimer (core spec §7, "Recoverable at
// connection level").
func actionFailed(c *Connection, _ Event) State {
	closeSocketOnly(c)
	post(c, ExceptionTCPFailed, ErrTCPFailed, nil)
	return c.state
}

// actionFatal handles a hard connect-time error: close and fall to
// Idle via catch.
func actionFatal(c *Connection, _ Event) State {
	closeConnection(c)
	post(c, ExceptionTCPError, ErrTCPError, nil)
	return catchException(c, StateIdle)
}

// actionRetry closes the in-flight attempt and restarts `start` (core
// spec §4.2, §8 "ConnectRetryTimer fires while Connect is still
// attempting").
func actionRetry(c *Connection, _ Event) State {
	closeConnection(c)
	post(c, ExceptionRetry, ErrRetry, nil)
	c.exception = Exception{} // Retry is never reported; clear eagerly.
	return actionStart(c, EventNone)
}

// actionRecvOpen handles Receive_OPEN in OpenSent: resolves collision
// against any sibling, then sends KEEPALIVE and advances to
// OpenConfirm, or — if this connection loses — posts Collision and
// falls to Idle (core spec §4.4).
func actionRecvOpen(c *Connection, _ Event) State {
	if c.session == nil {
		return StateStopping
	}
	open := c.openRecv // set by caller (io layer) before raising the event
	if open == nil {
		post(c, ExceptionFSMError, ErrFSMError, fsmErrorNotification())
		return catchException(c, StateIdle)
	}

	if !c.session.checkIdentifierTuple(open) {
		post(c, ExceptionBadIdentifierTuple, ErrBadIdentifierTuple, connectionRejectedNotification())
		return catchException(c, StateIdle)
	}

	if sib := c.sibling(); sib != nil && sib.state == StateOpenConfirm {
		localID := c.session.cfg.LocalBGPID
		if localID < open.BGPIdentifier {
			// We lose: Collision posted, never reported, fall to Idle.
			post(c, ExceptionCollision, ErrCollision, collisionNotification())
			return catchException(c, StateIdle)
		}
		// We win: nothing is posted against the sibling here. Both
		// legs stay in OpenConfirm, and whichever receives KEEPALIVE
		// first establishes and snuffs the other (actionEstablish).
	}

	c.holdInterval = negotiateHold(c.session.cfg.HoldTime, open.HoldTime)
	c.keepaliveInterval = c.holdInterval / 3

	if c.conn != nil {
		_, _, err := c.conn.Write(encodeKeepalive(c))
		if err != nil {
			post(c, ExceptionTCPError, err, nil)
			c.deferEvent(EventTCPFatalError)
			return StateOpenConfirm
		}
	}
	c.holdTimer.arm(c.holdInterval, func() { raiseEvent(c, EventHoldTimerExpired) })
	return StateOpenConfirm
}

// negotiateHold applies RFC 4271 §4.2's HoldTime negotiation: the
// smaller of the two offered values, or 0 if either side offered 0
// (core spec §3, "filled from OPEN exchange").
func negotiateHold(local, peer time.Duration) time.Duration {
	if local < peer {
		return local
	}
	return peer
}

// actionEstablish handles Receive_KEEPALIVE in OpenConfirm: snuffs any
// sibling, promotes this Connection to primary, transitions the
// Session to Established, and posts Established for reporting (core
// spec §4.4).
func actionEstablish(c *Connection, _ Event) State {
	if sib := c.sibling(); sib != nil {
		throwLocked(sib, ExceptionDiscard, ErrDiscard, collisionNotification(), EventBGPStop)
	}

	s := c.session
	if s != nil {
		s.makePrimary(c)
		s.adminState = AdminEstablished
		s.negotiatedHold = c.holdInterval
		s.negotiatedKeepalive = c.keepaliveInterval
	}

	post(c, ExceptionEstablished, ErrEstablished, nil)

	if c.holdInterval > 0 {
		c.holdTimer.arm(c.holdInterval, func() { raiseEvent(c, EventHoldTimerExpired) })
		c.keepaliveTimer.arm(c.keepaliveInterval, func() { raiseEvent(c, EventKeepaliveTimerExpired) })
	} else {
		c.holdTimer.disarm()
		c.keepaliveTimer.disarm()
	}

	return StateEstablished
}

// actionSendKeepalive handles KeepAlive_timer_expired: sends a
// KEEPALIVE and re-arms the timer. A zero negotiated keepalive (only
// reachable when HoldTime negotiated to 0) means the timer is never
// re-armed (core spec §8, "KEEPALIVE is sent once as OPEN-ack only").
func actionSendKeepalive(c *Connection, _ Event) State {
	if c.conn != nil {
		_, _, _ = c.conn.Write(encodeKeepalive(c))
	}
	if c.keepaliveInterval > 0 {
		c.keepaliveTimer.arm(c.keepaliveInterval, func() { raiseEvent(c, EventKeepaliveTimerExpired) })
	}
	return c.state
}

// actionReceiveUpdate recharges the HoldTimer, logs the size of the
// UPDATE payload and drops it. The payload is not forwarded: no
// SessionUpdate is sent to the Routeing Engine.
func actionReceiveUpdate(c *Connection, _ Event) State {
	rechargeHold(c)
	if c.session != nil && c.pendingUpdate != nil {
		c.session.logger.Debug("forwarding UPDATE", slog.Int("bytes", len(c.pendingUpdate)))
	}
	c.pendingUpdate = nil
	return StateEstablished
}

func actionReceiveKeepalive(c *Connection, _ Event) State {
	rechargeHold(c)
	return StateEstablished
}

func rechargeHold(c *Connection) {
	if c.holdInterval > 0 {
		c.holdTimer.arm(c.holdInterval, func() { raiseEvent(c, EventHoldTimerExpired) })
	}
}

// actionUnexpectedMessage handles a message illegal for the current
// state (KEEPALIVE/UPDATE in OpenSent, OPEN in Established): posts an
// FSM-error NOTIFICATION (core spec §4.1).
func actionUnexpectedMessage(c *Connection, _ Event) State {
	post(c, ExceptionFSMError, ErrFSMError, fsmErrorNotification())
	target := StateIdle
	if c.state == StateEstablished {
		target = StateStopping
	}
	return catchException(c, target)
}

// actionNOMRecv handles Receive_NOTIFICATION: we never reply. OpenSent/
// OpenConfirm fall back to Idle; Established tears the session down
// (core spec §4.6). The received NOTIFICATION's code/subcode, already
// posted by DeliverNotification, is preserved on the exception purely
// for the Routeing Engine report — catchException never sends it back.
func actionNOMRecv(c *Connection, _ Event) State {
	target := StateIdle
	if c.state == StateEstablished {
		target = StateStopping
	}
	if c.exception.Kind != ExceptionNOMRecv {
		post(c, ExceptionNOMRecv, ErrNotificationRcv, nil)
	}
	return catchException(c, target)
}

// actionClosed handles TCP_connection_closed/TCP_fatal_error in
// OpenSent/OpenConfirm: falls back to Idle.
func actionClosed(c *Connection, _ Event) State {
	post(c, ExceptionTCPDropped, ErrTCPDropped, nil)
	return catchException(c, StateIdle)
}

// actionDropped handles TCP drop while Established: terminal, tears
// the session down (core spec §7, §8 scenario 4).
func actionDropped(c *Connection, _ Event) State {
	post(c, ExceptionTCPDropped, ErrTCPDropped, nil)
	return catchException(c, StateStopping)
}

// actionExpire handles Hold_Timer_expired: if a NOTIFICATION is
// already draining, finalize the close and leave the state; otherwise
// post a Hold-Timer-Expired NOTIFICATION (core spec §4.1, §4.5).
func actionExpire(c *Connection, _ Event) State {
	target := StateIdle
	if c.state == StateEstablished {
		target = StateStopping
	}
	if c.notificationPending {
		closeConnection(c)
		c.notificationPending = false
		return target
	}
	post(c, ExceptionExpired, ErrExpired, holdExpiredNotification())
	return catchException(c, target)
}

// actionStop handles BGP_Stop from any state: administrative disable
// drives both connections to Stopping via catch_exception.
func actionStop(c *Connection, _ Event) State {
	if c.exception.Kind == ExceptionNone {
		post(c, ExceptionDisabled, ErrDisabled, adminShutdownNotification())
	}
	return catchException(c, StateStopping)
}

// actionSentNotification arms the courtesy HoldTimer while Stopping
// (core spec §4.5).
func actionSentNotification(c *Connection, _ Event) State {
	c.holdTimer.arm(courtesyHoldTimer, func() { raiseEvent(c, EventHoldTimerExpired) })
	return StateStopping
}

// actionExit terminates the connection for good.
func actionExit(c *Connection, _ Event) State {
	closeConnection(c)
	return StateStopping
}

// actionInvalid handles any (state, event) cell the table does not
// define: logged and forced to Stopping with an FSM-error
// NOTIFICATION (core spec §4.1, §8 "invalid event... results in
// Stopping").
func actionInvalid(c *Connection, ev Event) State {
	c.logger.Error("invalid FSM event for state",
		slog.String("state", c.state.String()),
		slog.String("event", ev.String()))
	post(c, ExceptionInvalid, ErrInvalidEvent, fsmErrorNotification())
	return catchException(c, StateStopping)
}

func fsmErrorNotification() *NotificationPayload {
	return &NotificationPayload{Code: NotifyCodeFSMError, Subcode: NotifySubcodeUnspecific}
}

func holdExpiredNotification() *NotificationPayload {
	return &NotificationPayload{Code: NotifyCodeHoldTimerExpired, Subcode: NotifySubcodeUnspecific}
}

func collisionNotification() *NotificationPayload {
	return &NotificationPayload{Code: NotifyCodeCease, Subcode: NotifySubcodeCollisionResolution}
}

func connectionRejectedNotification() *NotificationPayload {
	return &NotificationPayload{Code: NotifyCodeCease, Subcode: NotifySubcodeConnectionRejected}
}

func adminShutdownNotification() *NotificationPayload {
	return &NotificationPayload{Code: NotifyCodeCeaseAdministrative, Subcode: NotifySubcodeAdminShutdown}
}
