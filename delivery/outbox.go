package delivery

import (
	"context"

	"github.com/revred/smartpay-notify/id"
)

// Outbox defines the queue contract for pending envelopes. It decouples
// business-operation completion from webhook delivery: publishers enqueue,
// the single delivery worker dequeues.
//
// Ordering is best-effort FIFO by NextAttemptAt; a retried envelope re-enters
// behind fresh work, so one slow endpoint does not starve unrelated tenants.
type Outbox interface {
	// Enqueue adds a pending envelope.
	Enqueue(ctx context.Context, env *Envelope) error

	// EnqueueBatch adds multiple envelopes atomically (fan-out).
	EnqueueBatch(ctx context.Context, envs []*Envelope) error

	// Dequeue fetches pending envelopes whose NextAttemptAt has passed.
	// An empty result means nothing is ready, not an error. Dequeued
	// envelopes stay locked until UpdateEnvelope reports the outcome, so a
	// concurrent dequeue never hands out the same envelope twice.
	Dequeue(ctx context.Context, limit int) ([]*Envelope, error)

	// UpdateEnvelope records the outcome of an attempt and releases the
	// dequeue lock. A pending envelope re-enters the queue at its new
	// NextAttemptAt.
	UpdateEnvelope(ctx context.Context, env *Envelope) error

	// GetEnvelope returns an envelope by ID.
	GetEnvelope(ctx context.Context, envID id.ID) (*Envelope, error)

	// ListByEndpoint returns delivery history for an endpoint.
	ListByEndpoint(ctx context.Context, epID id.ID, opts ListOpts) ([]*Envelope, error)

	// CountPending returns the number of envelopes awaiting attempt.
	CountPending(ctx context.Context) (int64, error)
}
