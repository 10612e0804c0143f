package engine

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes exponential rate-limit delays with jitter.
type Backoff struct {
	// Base is the first-attempt delay.
	Base time.Duration
	// Multiplier grows the delay per attempt.
	Multiplier float64
	// Cap bounds the delay including jitter.
	Cap time.Duration
	// Jitter is the maximum random addition. Zero means none, which
	// keeps tests deterministic.
	Jitter time.Duration
}

// DefaultBackoff matches the tuning the collection loop ships with:
// 8s base, 1.5 growth, capped at 45s with up to 1s of jitter.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:       8 * time.Second,
		Multiplier: 1.5,
		Cap:        45 * time.Second,
		Jitter:     time.Second,
	}
}

// Delay returns the sleep for the given attempt, starting at 1.
// Delays grow strictly until they hit Cap.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(b.Base) * math.Pow(b.Multiplier, float64(attempt-1)))
	if b.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(b.Jitter)))
	}
	if d > b.Cap {
		d = b.Cap
	}
	return d
}
