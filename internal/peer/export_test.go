package peer

import "time"

// Exported aliases for external tests (package peer_test) to reach
// unexported internals without widening the real API surface.

var NextIdleHoldForTest = nextIdleHold

func JitterForTest(d time.Duration, enabled bool) time.Duration {
	return jitter(d, enabled)
}

var NegotiateHoldForTest = negotiateHold
