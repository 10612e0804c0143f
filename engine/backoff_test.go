package engine

import (
	"testing"
	"time"
)

func TestBackoffGrowsUntilCap(t *testing.T) {
	b := Backoff{Base: 8 * time.Second, Multiplier: 1.5, Cap: 45 * time.Second}

	prev := time.Duration(0)
	capped := false
	for attempt := 1; attempt <= 10; attempt++ {
		d := b.Delay(attempt)
		if d > b.Cap {
			t.Fatalf("Delay(%d) = %v exceeds cap %v", attempt, d, b.Cap)
		}
		if capped && d != b.Cap {
			t.Fatalf("Delay(%d) = %v dropped below cap after capping", attempt, d)
		}
		if !capped {
			if d < prev {
				t.Fatalf("Delay(%d) = %v < previous %v", attempt, d, prev)
			}
			if d == b.Cap {
				capped = true
			}
		}
		prev = d
	}
	if !capped {
		t.Error("delays never reached the cap")
	}
}

func TestBackoffFirstAttempt(t *testing.T) {
	b := Backoff{Base: 8 * time.Second, Multiplier: 1.5, Cap: 45 * time.Second}
	if got := b.Delay(1); got != 8*time.Second {
		t.Errorf("Delay(1) = %v, want 8s", got)
	}
	// Out-of-range attempts clamp rather than panic.
	if got := b.Delay(0); got != 8*time.Second {
		t.Errorf("Delay(0) = %v, want 8s", got)
	}
}

func TestBackoffJitterStaysUnderCap(t *testing.T) {
	b := DefaultBackoff()
	for i := 0; i < 100; i++ {
		if d := b.Delay(20); d > b.Cap {
			t.Fatalf("jittered delay %v exceeds cap %v", d, b.Cap)
		}
	}
}
