package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketBurst(t *testing.T) {
	tb := NewTokenBucket(1, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, tb.Allow(), "action %d", i+1)
	}
	assert.False(t, tb.Allow())

	tb.Reset()
	assert.True(t, tb.Allow())
}

func TestTokenBucketUnlimited(t *testing.T) {
	tb := NewTokenBucket(0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, tb.Allow())
	}
	require.NoError(t, tb.Wait(context.Background()))
}

func TestTokenBucketWaitCancelled(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, tb.Wait(ctx))
}

func TestSlidingWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	sw := NewSlidingWindow(3, time.Second)
	sw.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, sw.Allow(), "request %d", i+1)
	}
	assert.False(t, sw.Allow())

	now = now.Add(time.Second + time.Millisecond)
	assert.True(t, sw.Allow())

	sw.Reset()
	assert.Empty(t, sw.requests)
}

func TestSlidingWindowWait(t *testing.T) {
	sw := NewSlidingWindow(1, 20*time.Millisecond)
	require.NoError(t, sw.Wait(context.Background()))

	start := time.Now()
	require.NoError(t, sw.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sw.Wait(ctx), context.Canceled)
}
