package peer_test

import (
	"testing"
	"time"

	"github.com/trungkstn/bgpfsmd/internal/peer"
)

func TestNextIdleHold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		prev time.Duration
		want time.Duration
	}{
		{"zero starts at initial", 0, time.Second},
		{"negative starts at initial", -time.Second, time.Second},
		{"doubles below floor clamps to floor", time.Second, 4 * time.Second},
		{"doubles normally", 4 * time.Second, 8 * time.Second},
		{"doubles again", 8 * time.Second, 16 * time.Second},
		{"clamps to ceiling", 100 * time.Second, 120 * time.Second},
		{"already at ceiling stays clamped", 120 * time.Second, 120 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := peer.NextIdleHoldForTest(tt.prev); got != tt.want {
				t.Errorf("nextIdleHold(%v) = %v, want %v", tt.prev, got, tt.want)
			}
		})
	}
}

func TestJitterDisabledPassesThrough(t *testing.T) {
	t.Parallel()

	d := 10 * time.Second
	if got := peer.JitterForTest(d, false); got != d {
		t.Errorf("jitter(%v, false) = %v, want unchanged %v", d, got, d)
	}
}

func TestJitterZeroOrNegativePassesThrough(t *testing.T) {
	t.Parallel()

	if got := peer.JitterForTest(0, true); got != 0 {
		t.Errorf("jitter(0, true) = %v, want 0", got)
	}
	if got := peer.JitterForTest(-time.Second, true); got != -time.Second {
		t.Errorf("jitter(-1s, true) = %v, want -1s", got)
	}
}

func TestJitterEnabledStaysWithinBounds(t *testing.T) {
	t.Parallel()

	d := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		got := peer.JitterForTest(d, true)
		if got > d {
			t.Fatalf("jitter(%v, true) = %v, must not exceed input", d, got)
		}
		if got < d-d/4 {
			t.Fatalf("jitter(%v, true) = %v, must not reduce by more than 1/4", d, got)
		}
	}
}
