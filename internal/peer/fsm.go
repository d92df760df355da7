package peer

import "log/slog"

// action performs the work for one (state, event) cell and returns the
// next state. It may return the cell's default next state unchanged or
// override it — the dispatcher always uses the returned value (core
// spec §4.1, "The dispatcher must use the returned value").
type action func(c *Connection, ev Event) State

type cell struct {
	action  action
	next    State
	defined bool
}

// table is the 8-state x 15-event FSM table (core spec §4.1). Built
// once in init() via the builder helpers below so the pattern stays
// readable cell by cell instead of as one giant literal.
var table [numStates][numEvents]cell

func set(s State, e Event, a action, next State) {
	table[s][e] = cell{action: a, next: next, defined: true}
}

func setAll(states []State, e Event, a action, next State) {
	for _, s := range states {
		set(s, e, a, next)
	}
}

func init() {
	allStates := []State{StateInitial, StateIdle, StateConnect, StateActive, StateOpenSent, StateOpenConfirm, StateEstablished, StateStopping}

	// Default: anything not explicitly set below is handled by
	// actionInvalid (see lookup), so the table only needs to carry
	// real transitions.

	set(StateInitial, EventBGPStart, actionEnter, StateIdle)

	set(StateIdle, EventBGPStart, actionStart, StateConnect) // overridden to Active for secondary

	set(StateConnect, EventTCPConnectionOpen, actionSendOpen, StateOpenSent)
	set(StateActive, EventTCPConnectionOpen, actionSendOpen, StateOpenSent)

	set(StateConnect, EventTCPConnectionOpenFailed, actionFailed, StateConnect)
	set(StateActive, EventTCPConnectionOpenFailed, actionFailed, StateActive)

	set(StateConnect, EventTCPFatalError, actionFatal, StateIdle)
	set(StateActive, EventTCPFatalError, actionFatal, StateIdle)

	set(StateConnect, EventConnectRetryTimerExpired, actionRetry, StateConnect)
	set(StateActive, EventConnectRetryTimerExpired, actionRetry, StateActive)

	set(StateOpenSent, EventReceiveOpen, actionRecvOpen, StateOpenConfirm)
	set(StateOpenSent, EventReceiveKeepalive, actionUnexpectedMessage, StateOpenSent)
	set(StateOpenSent, EventReceiveUpdate, actionUnexpectedMessage, StateOpenSent)
	set(StateOpenSent, EventReceiveNotification, actionNOMRecv, StateIdle)

	set(StateOpenConfirm, EventReceiveKeepalive, actionEstablish, StateEstablished)
	set(StateOpenConfirm, EventKeepaliveTimerExpired, actionSendKeepalive, StateOpenConfirm)
	set(StateOpenConfirm, EventReceiveNotification, actionNOMRecv, StateIdle)

	setAll([]State{StateOpenSent, StateOpenConfirm}, EventTCPConnectionClosed, actionClosed, StateIdle)
	setAll([]State{StateOpenSent, StateOpenConfirm}, EventTCPFatalError, actionClosed, StateIdle)
	setAll([]State{StateOpenSent, StateOpenConfirm}, EventHoldTimerExpired, actionExpire, StateIdle)

	set(StateEstablished, EventKeepaliveTimerExpired, actionSendKeepalive, StateEstablished)
	set(StateEstablished, EventReceiveUpdate, actionReceiveUpdate, StateEstablished)
	set(StateEstablished, EventReceiveKeepalive, actionReceiveKeepalive, StateEstablished)
	set(StateEstablished, EventReceiveOpen, actionUnexpectedMessage, StateEstablished)
	set(StateEstablished, EventReceiveNotification, actionNOMRecv, StateStopping)
	set(StateEstablished, EventTCPConnectionClosed, actionDropped, StateStopping)
	set(StateEstablished, EventTCPFatalError, actionDropped, StateStopping)
	set(StateEstablished, EventHoldTimerExpired, actionExpire, StateStopping)

	setAll(allStates, EventBGPStop, actionStop, StateStopping)

	set(StateStopping, EventSentNotification, actionSentNotification, StateStopping)
	set(StateStopping, EventHoldTimerExpired, actionExit, StateStopping)
	set(StateStopping, EventTCPConnectionClosed, actionExit, StateStopping)
	set(StateStopping, EventTCPConnectionOpenFailed, actionExit, StateStopping)
	set(StateStopping, EventTCPFatalError, actionExit, StateStopping)

	for _, s := range allStates {
		set(s, EventNone, actionNoop, s)
	}
}

// raiseEvent is the external entry point (core spec §4.1). Timer
// callbacks, I/O completions, and administrative commands all call
// this from outside the dispatcher, so it must acquire the session
// mutex before dispatching.
//
// Re-entrancy in this implementation arises only across sibling
// Connections sharing one Session mutex (snuffing a sibling on
// establishment, discarding a sibling on teardown) — each Connection
// has its own independent fsm_active/deferred_event state, so a
// same-goroutine call against the sibling while the mutex is already
// held is safe as long as it does not try to Lock() again. Those call
// sites use raiseEventLocked instead. A single Connection re-triggering
// its own dispatch synchronously (the scenario the core spec's
// fsm_active counter exists for) is instead realised as the dispatch
// loop draining its own deferred_event slot — actions queue a
// follow-up event with deferEvent rather than calling back into
// raiseEvent, since Conn.Write here returns its outcome directly
// rather than invoking a callback inline. Both realisations preserve
// the externally observable invariants: strict per-Connection event
// ordering, at most one deferred event, and fsm_active == 0 once
// raiseEvent returns. See DESIGN.md.
func raiseEvent(c *Connection, ev Event) {
	s := c.session
	if s == nil {
		// Unlinked Stopping connection: runs mutex-free (core spec
		// §4.1 step 3).
		dispatchLoop(c, ev, nil)
		return
	}
	s.mu.Lock()
	dispatchLoop(c, ev, s)
	s.mu.Unlock()
}

// raiseEventLocked dispatches against a Connection whose Session mutex
// the calling goroutine already holds (sibling interactions from
// inside an action). It must never be called from outside the
// dispatcher.
func raiseEventLocked(c *Connection, ev Event) {
	dispatchLoop(c, ev, c.session)
}

func dispatchLoop(c *Connection, ev Event, s *Session) {
	c.fsmActive++
	defer func() { c.fsmActive-- }()

	for {
		cl := lookup(c.state, ev)
		cur := c.state
		next := cl.action(c, ev)
		if next != cur {
			c.state = next
			onStateChange(c, cur, next)
		}
		if c.deferredEvent == nil {
			break
		}
		ev = *c.deferredEvent
		c.deferredEvent = nil
	}

	reportException(c, s)
}

// lookup resolves (state, event), falling back to actionInvalid for
// any cell the table doesn't define.
func lookup(s State, e Event) cell {
	cl := table[s][e]
	if !cl.defined {
		return cell{action: actionInvalid, next: StateStopping}
	}
	return cl
}

// deferEvent queues a single follow-up event to be processed before
// the dispatch loop returns (core spec's one-deep deferred_event
// slot). Only one level of deferral is ever needed per the "at most
// one I/O operation per event" invariant; a second call before the
// first is drained overwrites it, which would indicate a bug in an
// action violating that invariant.
func (c *Connection) deferEvent(e Event) {
	if c.deferredEvent != nil {
		c.logger.Warn("deferred event overwritten, invariant violated",
			slog.String("pending", c.deferredEvent.String()),
			slog.String("new", e.String()))
	}
	ev := e
	c.deferredEvent = &ev
}

// reportException implements step 5 of raise_event: on exit, if a
// session-visible, reportable exception was posted, emit it to the
// Routeing Engine and clear the slot.
func reportException(c *Connection, s *Session) {
	if c.exception.Kind == ExceptionNone {
		return
	}
	kind := c.exception.Kind
	if kind.Reportable() && s != nil {
		s.emit(SessionEvent{
			Kind:         kind,
			Notification: c.exception.Notification,
			Err:          c.exception.Err,
			Ordinal:      c.ordinal,
			Stopped:      c.state == StateStopping,
		})
	}
	c.exception = Exception{}
}

func actionNoop(c *Connection, _ Event) State { return c.state }
