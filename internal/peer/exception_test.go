package peer_test

import (
	"testing"

	"github.com/trungkstn/bgpfsmd/internal/peer"
)

func TestExceptionKindReportable(t *testing.T) {
	t.Parallel()

	notReportable := map[peer.ExceptionKind]bool{
		peer.ExceptionDiscard:   true,
		peer.ExceptionCollision: true,
		peer.ExceptionRetry:     true,
	}

	all := []peer.ExceptionKind{
		peer.ExceptionNone,
		peer.ExceptionDisabled,
		peer.ExceptionDiscard,
		peer.ExceptionCollision,
		peer.ExceptionNOMRecv,
		peer.ExceptionTCPDropped,
		peer.ExceptionTCPFailed,
		peer.ExceptionTCPError,
		peer.ExceptionFSMError,
		peer.ExceptionExpired,
		peer.ExceptionInvalid,
		peer.ExceptionRetry,
		peer.ExceptionEstablished,
	}

	for _, k := range all {
		want := !notReportable[k]
		if got := k.Reportable(); got != want {
			t.Errorf("%v.Reportable() = %v, want %v", k, got, want)
		}
	}
}

func TestExceptionKindString(t *testing.T) {
	t.Parallel()

	if got := peer.ExceptionKind(99).String(); got != "unknown" {
		t.Errorf("ExceptionKind(99).String() = %q, want %q", got, "unknown")
	}
	if got := peer.ExceptionNOMRecv.String(); got != "notification_received" {
		t.Errorf("ExceptionNOMRecv.String() = %q, want %q", got, "notification_received")
	}
}
