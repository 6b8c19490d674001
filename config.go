package notify

import (
	"time"

	"github.com/revred/smartpay-notify/delivery"
	"github.com/revred/smartpay-notify/idempotency"
)

// Config holds the configuration for a Hub instance.
type Config struct {
	// Concurrency is the number of in-flight attempts the delivery worker
	// allows at once. There is still exactly one queue consumer.
	Concurrency int

	// PollInterval is how often the worker checks the outbox for due work.
	PollInterval time.Duration

	// BatchSize is the maximum number of envelopes dequeued per poll cycle.
	BatchSize int

	// RequestTimeout is the HTTP timeout per delivery attempt. Values
	// outside [2s, 30s] are clamped.
	RequestTimeout time.Duration

	// MaxAttempts is the default delivery attempt budget per envelope.
	MaxAttempts int

	// InitialBackoff is the delay after the first failed attempt; each
	// further failure doubles it.
	InitialBackoff time.Duration

	// BackoffCap bounds the exponential backoff.
	BackoffCap time.Duration

	// IdempotencyTTL is how long a publish idempotency key blocks duplicates.
	IdempotencyTTL time.Duration

	// CacheTTL is the TTL for the topic registry's in-memory cache.
	// Set to 0 to cache forever (single-process setups).
	CacheTTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:    4,
		PollInterval:   250 * time.Millisecond,
		BatchSize:      50,
		RequestTimeout: delivery.DefaultRequestTimeout,
		MaxAttempts:    delivery.DefaultMaxAttempts,
		InitialBackoff: delivery.DefaultInitialBackoff,
		BackoffCap:     delivery.DefaultBackoffCap,
		IdempotencyTTL: idempotency.DefaultTTL,
		CacheTTL:       30 * time.Second,
	}
}
