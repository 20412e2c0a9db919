package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJitterLimiter_FirstWaitIsImmediate(t *testing.T) {
	l := NewJitterLimiter(time.Hour, time.Hour)

	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestJitterLimiter_SpacesCalls(t *testing.T) {
	l := NewJitterLimiter(30*time.Millisecond, 40*time.Millisecond)

	require.NoError(t, l.Wait(context.Background()))
	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))

	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestJitterLimiter_ContextCanceled(t *testing.T) {
	l := NewJitterLimiter(time.Hour, time.Hour)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestJitterLimiter_Delays(t *testing.T) {
	l := NewJitterLimiter(time.Millisecond, 3*time.Millisecond)

	minDelay, maxDelay := l.Delays()
	assert.Equal(t, time.Millisecond, minDelay)
	assert.Equal(t, 3*time.Millisecond, maxDelay)
}

func TestAdaptiveLimiter_BacksOffAfterErrors(t *testing.T) {
	a := NewAdaptiveLimiter(2*time.Second, 4*time.Second)

	a.RecordError()
	minDelay, _ := a.Delays()
	assert.Equal(t, 2*time.Second, minDelay)

	a.RecordError()
	minDelay, maxDelay := a.Delays()
	assert.Equal(t, 3*time.Second, minDelay)
	assert.Equal(t, 6*time.Second, maxDelay)
}

func TestAdaptiveLimiter_BackoffIsCapped(t *testing.T) {
	a := NewAdaptiveLimiter(50*time.Second, 100*time.Second)

	for i := 0; i < 10; i++ {
		a.RecordError()
	}

	minDelay, maxDelay := a.Delays()
	assert.Equal(t, maxAdaptiveMin, minDelay)
	assert.Equal(t, maxAdaptiveMax, maxDelay)
}

func TestAdaptiveLimiter_RecoversToFloor(t *testing.T) {
	a := NewAdaptiveLimiter(2*time.Second, 4*time.Second)
	a.RecordError()
	a.RecordError()

	for i := 0; i < 50; i++ {
		a.RecordSuccess()
	}

	minDelay, _ := a.Delays()
	assert.Equal(t, 2*time.Second, minDelay)
}

func TestUnlimited(t *testing.T) {
	var l Limiter = Unlimited{}
	assert.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, l.Wait(ctx))
}
