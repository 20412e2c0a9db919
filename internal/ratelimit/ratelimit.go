package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter paces successive page loads against the same site.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Feedback lets a limiter react to how the site answered.
type Feedback interface {
	RecordSuccess()
	RecordError()
}

// JitterLimiter spaces actions by a random delay in [min, max). The first
// Wait returns immediately.
type JitterLimiter struct {
	mu         sync.Mutex
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
}

func NewJitterLimiter(minDelay, maxDelay time.Duration) *JitterLimiter {
	return &JitterLimiter{minDelay: minDelay, maxDelay: maxDelay}
}

func (r *JitterLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.lastAction.IsZero() {
		if wait := r.delay() - time.Since(r.lastAction); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	r.lastAction = time.Now()
	return nil
}

// Delays reports the current [min, max) window.
func (r *JitterLimiter) Delays() (time.Duration, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.minDelay, r.maxDelay
}

func (r *JitterLimiter) delay() time.Duration {
	if r.maxDelay <= r.minDelay {
		return r.minDelay
	}
	return r.minDelay + time.Duration(rand.Int63n(int64(r.maxDelay-r.minDelay)))
}

// AdaptiveLimiter widens its delays after repeated errors (blocks, 429s) and
// slowly narrows them back to the configured floor after a run of successes.
type AdaptiveLimiter struct {
	*JitterLimiter
	floor         time.Duration
	errorCount    int
	successCount  int
	maxErrorCount int
	backoffFactor float64
}

const (
	maxAdaptiveMin = 60 * time.Second
	maxAdaptiveMax = 120 * time.Second
)

func NewAdaptiveLimiter(minDelay, maxDelay time.Duration) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		JitterLimiter: NewJitterLimiter(minDelay, maxDelay),
		floor:         minDelay,
		maxErrorCount: 2,
		backoffFactor: 1.5,
	}
}

func (a *AdaptiveLimiter) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.successCount++
	a.errorCount = 0

	if a.successCount >= 5 {
		newMin := time.Duration(float64(a.minDelay) * 0.9)
		if newMin < a.floor {
			newMin = a.floor
		}
		if a.maxDelay < newMin {
			a.maxDelay = newMin
		}
		a.minDelay = newMin
		a.successCount = 0
	}
}

func (a *AdaptiveLimiter) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errorCount++
	a.successCount = 0

	if a.errorCount >= a.maxErrorCount {
		a.minDelay = min(time.Duration(float64(a.minDelay)*a.backoffFactor), maxAdaptiveMin)
		a.maxDelay = min(time.Duration(float64(a.maxDelay)*a.backoffFactor), maxAdaptiveMax)
		a.errorCount = 0
	}
}

// Unlimited never waits.
type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
