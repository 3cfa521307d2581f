package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUnlimitedNeverBlocks(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(ctx, "https://example.com/page"))
	}
}

func TestBurstThenThrottle(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 10, Burst: 2})
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://example.com/a"))
	require.NoError(t, l.Wait(ctx, "https://example.com/b"))
	require.Less(t, time.Since(start), 50*time.Millisecond)

	// Third token has to wait roughly one refill interval.
	require.NoError(t, l.Wait(ctx, "https://example.com/c"))
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestHostsAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 1, Burst: 1})
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://one.example.com/"))
	require.NoError(t, l.Wait(ctx, "https://two.example.com/"))
	require.NoError(t, l.Wait(ctx, "https://three.example.com/"))
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWaitHonoursContext(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 0.1, Burst: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Wait(ctx, "https://example.com/"))
	err := l.Wait(ctx, "https://example.com/")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
