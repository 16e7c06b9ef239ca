package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedAllowsBurstThenRejects(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(3, time.Minute)
	l.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, _, _, err := l.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, ok, "hit %d", i)
	}

	ok, _, retry, err := l.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Greater(t, retry, time.Duration(0))
	assert.LessOrEqual(t, retry, 20*time.Second)

	// other keys have their own bucket
	ok, _, _, err = l.Allow(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, ok)

	clock = clock.Add(20 * time.Second)
	ok, _, _, err = l.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestKeyedDropsIdleBuckets(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(1, time.Minute)
	l.now = func() time.Time { return clock }

	_, _, _, err := l.Allow(context.Background(), "u1")
	require.NoError(t, err)

	clock = clock.Add(2 * idleAfter)
	_, _, _, err = l.Allow(context.Background(), "u2")
	require.NoError(t, err)

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.buckets, "u1")
	assert.Contains(t, l.buckets, "u2")
}

func TestKeyedHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, _, err := New(1, time.Second).Allow(ctx, "u1")
	assert.ErrorIs(t, err, context.Canceled)
}
