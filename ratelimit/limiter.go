// Package ratelimit throttles delivery attempts per endpoint with token
// buckets, so one chatty tenant cannot flood a single receiver.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter implements per-endpoint token bucket rate limiting. Burst size
// equals the per-second rate.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens   float64
	lastFill time.Time
	rate     float64 // tokens per second
}

// New creates an empty limiter. Buckets are created on first use.
func New() *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
	}
}

// Allow reports whether an attempt to the endpoint may proceed now.
// A rate of 0 or less means unlimited.
func (l *Limiter) Allow(endpointID string, rate int) bool {
	if rate <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bucket(endpointID, float64(rate))
	b.refill()

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Wait blocks until the endpoint's bucket has a token or the context is
// cancelled. A rate of 0 or less returns immediately.
func (l *Limiter) Wait(ctx context.Context, endpointID string, rate int) error {
	if rate <= 0 {
		return nil
	}

	for {
		if l.Allow(endpointID, rate) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second / time.Duration(rate)):
			// Roughly one token's worth of wait, then retry.
		}
	}
}

// Reset drops the bucket for an endpoint. The next attempt starts with a
// full bucket.
func (l *Limiter) Reset(endpointID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, endpointID)
}

// bucket returns the endpoint's bucket, creating it full on first use.
// If the configured rate changed since creation the bucket is rebuilt, so
// endpoint updates take effect without a restart.
func (l *Limiter) bucket(endpointID string, rate float64) *bucket {
	b, ok := l.buckets[endpointID]
	if !ok || b.rate != rate {
		b = &bucket{
			tokens:   rate,
			lastFill: time.Now(),
			rate:     rate,
		}
		l.buckets[endpointID] = b
	}
	return b
}

func (b *bucket) refill() {
	now := time.Now()
	elapsed := now.Sub(b.lastFill).Seconds()
	b.tokens += elapsed * b.rate
	if b.tokens > b.rate {
		b.tokens = b.rate
	}
	b.lastFill = now
}
