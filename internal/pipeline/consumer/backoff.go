package consumer

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes retry delays: exponential growth from Initial by
// Base per attempt, capped at Max, then jittered to between 50% and
// 150% of the capped value.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Base    float64

	// jitter returns a value in [0,1); overridable in tests.
	jitter func() float64
}

func NewBackoff(initial, max time.Duration, base float64) Backoff {
	return Backoff{
		Initial: initial,
		Max:     max,
		Base:    base,
		jitter:  rand.Float64,
	}
}

// Delay returns the wait before retry number attempt, starting at 0.
func (b Backoff) Delay(attempt int) time.Duration {
	d := time.Duration(float64(b.Initial) * math.Pow(b.Base, float64(attempt)))
	if d > b.Max || d < 0 {
		d = b.Max
	}
	jitter := b.jitter
	if jitter == nil {
		jitter = rand.Float64
	}
	return time.Duration(float64(d) * (0.5 + jitter()))
}
