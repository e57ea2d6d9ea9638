package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitUnlimitedWhenRPSNonPositive(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0})
	start := time.Now()
	for i := 0; i < 50; i++ {
		require.NoError(t, l.Wait(context.Background(), "https://example.com/page"))
	}
	require.Less(t, time.Since(start), time.Second)
}

func TestWaitPacesPerHost(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 20, DefaultBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://example.com/a"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://example.com/b"))
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	// A different host has its own bucket and is not delayed.
	start = time.Now()
	require.NoError(t, l.Wait(ctx, "https://example.org/a"))
	require.Less(t, time.Since(start), 20*time.Millisecond)
}

func TestWaitHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.1, DefaultBurst: 1})
	ctx := context.Background()
	require.NoError(t, l.Wait(ctx, "https://example.com/a"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx, "https://example.com/b")
	require.Error(t, err)
}
