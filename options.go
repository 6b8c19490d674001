package notify

import (
	"log/slog"
	"time"

	"github.com/revred/smartpay-notify/observability"
	"github.com/revred/smartpay-notify/store"
)

// Option configures a Hub instance.
type Option func(*Hub) error

// WithStore sets the persistence backend for the Hub.
func WithStore(s store.Store) Option {
	return func(h *Hub) error {
		h.store = s
		return nil
	}
}

// WithLogger sets the structured logger for the Hub.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) error {
		h.logger = logger
		return nil
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Hub) error {
		h.metrics = m
		return nil
	}
}

// WithTracer enables OpenTelemetry spans around delivery attempts.
func WithTracer(t *observability.Tracer) Option {
	return func(h *Hub) error {
		h.tracer = t
		return nil
	}
}

// WithConcurrency sets the number of concurrent in-flight delivery attempts.
func WithConcurrency(n int) Option {
	return func(h *Hub) error {
		h.config.Concurrency = n
		return nil
	}
}

// WithPollInterval sets how often the worker checks the outbox for due work.
func WithPollInterval(d time.Duration) Option {
	return func(h *Hub) error {
		h.config.PollInterval = d
		return nil
	}
}

// WithBatchSize sets the maximum number of envelopes dequeued per poll cycle.
func WithBatchSize(n int) Option {
	return func(h *Hub) error {
		h.config.BatchSize = n
		return nil
	}
}

// WithRequestTimeout sets the HTTP timeout per delivery attempt.
// Values outside [2s, 30s] are clamped.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *Hub) error {
		h.config.RequestTimeout = d
		return nil
	}
}

// WithMaxAttempts sets the default delivery attempt budget per envelope.
func WithMaxAttempts(n int) Option {
	return func(h *Hub) error {
		h.config.MaxAttempts = n
		return nil
	}
}

// WithBackoff sets the initial retry delay and its cap. The delay doubles
// after each failed attempt until it reaches the cap.
func WithBackoff(initial, cap time.Duration) Option {
	return func(h *Hub) error {
		h.config.InitialBackoff = initial
		h.config.BackoffCap = cap
		return nil
	}
}

// WithIdempotencyTTL sets how long a publish idempotency key blocks
// duplicates.
func WithIdempotencyTTL(d time.Duration) Option {
	return func(h *Hub) error {
		h.config.IdempotencyTTL = d
		return nil
	}
}

// WithCacheTTL sets the TTL for the topic registry's in-memory cache.
func WithCacheTTL(d time.Duration) Option {
	return func(h *Hub) error {
		h.config.CacheTTL = d
		return nil
	}
}
