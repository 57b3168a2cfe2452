package guard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenBucket_AcquireWithinCapacity(t *testing.T) {
	tb := NewTokenBucket(5, 1, time.Second)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, tb.Acquire(ctx, 1))
	}
}

func TestTokenBucket_FailsFastWhenWaitExceedsCeiling(t *testing.T) {
	// Refill is one token per hour, so a drained bucket projects a wait
	// far past the ceiling.
	tb := NewTokenBucket(1, 1.0/3600, 50*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, tb.Acquire(ctx, 1))

	start := time.Now()
	err := tb.Acquire(ctx, 1)
	require.ErrorIs(t, err, ErrRateLimited)
	require.Less(t, time.Since(start), time.Second, "fail fast must not wait out the refill")
}

func TestTokenBucket_RequestLargerThanCapacity(t *testing.T) {
	tb := NewTokenBucket(2, 10, time.Second)
	require.ErrorIs(t, tb.Acquire(context.Background(), 3), ErrRateLimited)
}

func TestTokenBucket_WaitsForRefill(t *testing.T) {
	// 100 tokens/sec makes the shortfall wait ~10ms.
	tb := NewTokenBucket(1, 100, time.Second)
	ctx := context.Background()

	require.NoError(t, tb.Acquire(ctx, 1))
	require.NoError(t, tb.Acquire(ctx, 1))
}

func TestTokenBucket_AcquireHonorsContextCancel(t *testing.T) {
	tb := NewTokenBucket(1, 0.5, time.Minute)
	require.NoError(t, tb.Acquire(context.Background(), 1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tb.Acquire(ctx, 1) }()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Acquire did not return after context cancel")
	}
}

func TestTokenBucket_StateSnapshot(t *testing.T) {
	tb := NewTokenBucket(10, 2, time.Second)
	st := tb.State()

	require.Equal(t, 10, st.Capacity)
	require.Equal(t, 2.0, st.RefillRate)
	require.InDelta(t, 10, st.Tokens, 0.5)
}
