package peer

// post sets the pending-exception tuple on c. If c is not in a state
// where NOTIFICATION traffic is legal (OpenSent/OpenConfirm/
// Established), the notification payload is discarded immediately
// (core spec §4.3).
func post(c *Connection, kind ExceptionKind, err error, notification *NotificationPayload) {
	if !notificationLegal(c.state) {
		notification = nil
	}
	c.exception = Exception{Kind: kind, Err: err, Notification: notification}
}

func notificationLegal(s State) bool {
	switch s {
	case StateOpenSent, StateOpenConfirm, StateEstablished:
		return true
	default:
		return false
	}
}

// throw posts an exception then raises ev against c — the entry point
// used from outside the FSM (administrative disable, called after
// Session.Disable has released the session mutex).
func throw(c *Connection, kind ExceptionKind, err error, notification *NotificationPayload, ev Event) {
	post(c, kind, err, notification)
	raiseEvent(c, ev)
}

// throwLocked is throw's counterpart for sibling interactions reached
// from inside an action (catchException's Discard cascade, collision
// snuffing on establishment), where the calling goroutine already
// holds the session mutex both c and its sibling share.
func throwLocked(c *Connection, kind ExceptionKind, err error, notification *NotificationPayload, ev Event) {
	post(c, kind, err, notification)
	raiseEventLocked(c, ev)
}

// catchException is used from inside actions. It runs the prescribed
// cleanup for a posted exception and returns the adjusted next_state
// (core spec §4.3, catch_exception).
func catchException(c *Connection, nextState State) State {
	exc := c.exception

	if exc.Notification != nil && exc.Kind != ExceptionNOMRecv {
		nextState = beginSendNotification(c, nextState, exc.Notification)
	} else {
		// No NOTIFICATION to send (we do not reply to a received
		// NOTIFICATION, or none was posted): close fully.
		closeConnection(c)
	}

	if nextState == StateStopping && exc.Kind != ExceptionDiscard {
		if sib := c.sibling(); sib != nil {
			var dup *NotificationPayload
			if exc.Notification != nil {
				cp := *exc.Notification
				dup = &cp
			}
			throwLocked(sib, ExceptionDiscard, ErrDiscard, dup, EventBGPStop)
		}
	}

	return nextState
}
