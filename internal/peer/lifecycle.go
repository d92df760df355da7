package peer

// onStateChange runs after every state transition to reconfigure
// cross-cutting bookkeeping the individual actions don't own directly:
// the accept_enabled invariant, comatose pairing on entry to Idle, and
// unlinking on entry to Stopping (core spec §3, §4.1, §5). Callers
// must hold the session mutex (or have none, for an unlinked
// connection already in Stopping).
func onStateChange(c *Connection, from, to State) {
	if c.session != nil {
		c.session.metrics.StateTransition(c.session.cfg.PeerAddress, c.ordinal, from, to)
	}

	if to == StateIdle {
		enterIdle(c, from)
	} else {
		c.comatose = false
	}

	if to == StateStopping {
		closeConnection(c)
		sess := c.session
		c.unlink()
		if sess != nil {
			sess.syncAcceptEnabled()
		}
		return
	}

	if c.session != nil {
		c.session.syncAcceptEnabled()
	}
}

// enterIdle implements the comatose rule from core spec §5: if the
// sibling is still progressing through OpenSent/OpenConfirm, this
// Connection goes comatose (no IdleHoldTimer armed) until the sibling
// itself falls back to Idle and wakes it.
func enterIdle(c *Connection, from State) {
	if sib := c.sibling(); sib != nil && (sib.state == StateOpenSent || sib.state == StateOpenConfirm) {
		c.comatose = true
		c.holdTimer.disarm()
		return
	}

	c.comatose = false
	if from == StateInitial {
		c.idleHold = nextIdleHold(0)
		if c.session != nil && c.session.cfg.IdleHold > c.idleHold {
			c.idleHold = c.session.cfg.IdleHold
		}
	} else {
		c.idleHold = nextIdleHold(c.idleHold)
	}
	d := jitter(c.idleHold, c.session != nil && c.session.cfg.JitterEnabled)
	c.holdTimer.arm(d, func() { raiseEvent(c, EventBGPStart) })

	// Wake a comatose sibling: it never armed its own timer while we
	// were progressing, so we arm it now that we've both returned to
	// Idle together.
	if sib := c.sibling(); sib != nil && sib.comatose {
		sib.comatose = false
		sib.idleHold = nextIdleHold(sib.idleHold)
		sd := jitter(sib.idleHold, c.session != nil && c.session.cfg.JitterEnabled)
		sib.holdTimer.arm(sd, func() { raiseEvent(sib, EventBGPStart) })
	}
}

// makePrimary promotes c to the primary ordinal slot on establishment
// (core spec §4.4). The former primary slot, if any and distinct from
// c, has already been snuffed by actionEstablish before this runs.
func (s *Session) makePrimary(c *Connection) {
	if c.ordinal == Primary {
		return
	}
	s.connections[Primary] = c
	s.connections[Secondary] = nil
	c.ordinal = Primary
}
