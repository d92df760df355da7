package peer

// State is one of the eight FSM states from RFC 4271 §8.2.1.
type State int

const (
	StateInitial State = iota
	StateIdle
	StateConnect
	StateActive
	StateOpenSent
	StateOpenConfirm
	StateEstablished
	StateStopping

	numStates
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "Initial"
	case StateIdle:
		return "Idle"
	case StateConnect:
		return "Connect"
	case StateActive:
		return "Active"
	case StateOpenSent:
		return "OpenSent"
	case StateOpenConfirm:
		return "OpenConfirm"
	case StateEstablished:
		return "Established"
	case StateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// Event is one of the fifteen FSM events from RFC 4271 §8.1.
type Event int

const (
	EventNone Event = iota
	EventBGPStart
	EventBGPStop
	EventTCPConnectionOpen
	EventTCPConnectionClosed
	EventTCPConnectionOpenFailed
	EventTCPFatalError
	EventConnectRetryTimerExpired
	EventHoldTimerExpired
	EventKeepaliveTimerExpired
	EventReceiveOpen
	EventReceiveKeepalive
	EventReceiveUpdate
	EventReceiveNotification
	EventSentNotification

	numEvents
)

func (e Event) String() string {
	switch e {
	case EventNone:
		return "Null"
	case EventBGPStart:
		return "BGP_Start"
	case EventBGPStop:
		return "BGP_Stop"
	case EventTCPConnectionOpen:
		return "TCP_connection_open"
	case EventTCPConnectionClosed:
		return "TCP_connection_closed"
	case EventTCPConnectionOpenFailed:
		return "TCP_connection_open_failed"
	case EventTCPFatalError:
		return "TCP_fatal_error"
	case EventConnectRetryTimerExpired:
		return "ConnectRetry_timer_expired"
	case EventHoldTimerExpired:
		return "Hold_Timer_expired"
	case EventKeepaliveTimerExpired:
		return "KeepAlive_timer_expired"
	case EventReceiveOpen:
		return "Receive_OPEN"
	case EventReceiveKeepalive:
		return "Receive_KEEPALIVE"
	case EventReceiveUpdate:
		return "Receive_UPDATE"
	case EventReceiveNotification:
		return "Receive_NOTIFICATION"
	case EventSentNotification:
		return "Sent_NOTIFICATION"
	default:
		return "Unknown"
	}
}

// Ordinal distinguishes the two Connection slots a Session owns.
type Ordinal int

const (
	// Primary is the outbound-connect leg. Only the primary may dial.
	Primary Ordinal = iota
	// Secondary is the inbound-accept leg. Only the secondary may be
	// the target of an accept.
	Secondary
)

func (o Ordinal) String() string {
	if o == Primary {
		return "primary"
	}
	return "secondary"
}

// Other returns the sibling ordinal.
func (o Ordinal) Other() Ordinal {
	if o == Primary {
		return Secondary
	}
	return Primary
}

// AdminState is the Session's administrative lifecycle.
type AdminState int

const (
	AdminDisabled AdminState = iota
	AdminEnabled
	AdminEstablished
	AdminStopping
)

func (a AdminState) String() string {
	switch a {
	case AdminDisabled:
		return "Disabled"
	case AdminEnabled:
		return "Enabled"
	case AdminEstablished:
		return "Established"
	case AdminStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// AllowedModes constrains which ordinals a Session may run.
type AllowedModes int

const (
	AllowBoth AllowedModes = iota
	AllowConnectOnly
	AllowAcceptOnly
)
