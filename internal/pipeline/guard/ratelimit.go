package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	logx "github.com/bma-social/support-core/pkg/logger"
)

// ErrRateLimited is returned when a token cannot be acquired within the
// configured wait ceiling. Callers treat it as a transient failure.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimiterState is an observable snapshot of the token bucket.
type RateLimiterState struct {
	Tokens     float64 `json:"tokens"`
	Capacity   int     `json:"capacity"`
	RefillRate float64 `json:"refill_rate"`
}

// TokenBucket admits calls to the zone-control service up to a
// continuously refilling budget. One instance is shared process-wide;
// the underlying limiter serializes refill and consumption.
//
// When tokens are short the caller waits for the shortfall, but never
// longer than maxWait: a projected wait beyond the ceiling fails fast
// instead of parking a pipeline indefinitely.
type TokenBucket struct {
	limiter *rate.Limiter
	maxWait time.Duration
}

func NewTokenBucket(capacity int, refillRate float64, maxWait time.Duration) *TokenBucket {
	return &TokenBucket{
		limiter: rate.NewLimiter(rate.Limit(refillRate), capacity),
		maxWait: maxWait,
	}
}

// Acquire takes n tokens, waiting for refill when necessary. It fails
// fast when the wait would exceed the ceiling, and aborts the wait when
// ctx is cancelled.
func (t *TokenBucket) Acquire(ctx context.Context, n int) error {
	r := t.limiter.ReserveN(time.Now(), n)
	if !r.OK() {
		return fmt.Errorf("request of %d tokens exceeds capacity: %w", n, ErrRateLimited)
	}

	delay := r.Delay()
	if delay > t.maxWait {
		r.Cancel()
		logx.Debug().
			Dur("delay", delay).
			Dur("max_wait", t.maxWait).
			Msg("rate limiter failing fast, wait exceeds ceiling")
		return fmt.Errorf("wait of %s exceeds ceiling %s: %w", delay, t.maxWait, ErrRateLimited)
	}
	if delay == 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// State returns a snapshot for health reporting. Token counts are
// advisory; concurrent acquires may move them immediately.
func (t *TokenBucket) State() RateLimiterState {
	return RateLimiterState{
		Tokens:     t.limiter.TokensAt(time.Now()),
		Capacity:   t.limiter.Burst(),
		RefillRate: float64(t.limiter.Limit()),
	}
}
