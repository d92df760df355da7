package bgpio_test

import (
	"testing"

	"github.com/trungkstn/bgpfsmd/internal/bgpio"
)

func TestApplyInboundMinTTLZeroDisablesCheck(t *testing.T) {
	t.Parallel()

	client, _ := loopbackPair(t)
	if err := bgpio.ApplyInboundMinTTLForTest(client, 0); err != nil {
		t.Errorf("applyInboundMinTTL(0) = %v, want nil (disabled)", err)
	}
}

func TestApplyInboundMinTTLSetsOption(t *testing.T) {
	t.Parallel()

	client, _ := loopbackPair(t)
	if err := bgpio.ApplyInboundMinTTLForTest(client, 1); err != nil {
		t.Errorf("applyInboundMinTTL(1) on a loopback socket: %v", err)
	}
}

func TestSetOutboundMinTTL(t *testing.T) {
	t.Parallel()

	client, _ := loopbackPair(t)
	if err := bgpio.SetOutboundMinTTLForTest(client, 255); err != nil {
		t.Errorf("setOutboundMinTTL: %v", err)
	}
}
