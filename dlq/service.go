package dlq

import (
	"context"
	"log/slog"
	"time"

	"github.com/revred/smartpay-notify/delivery"
	"github.com/revred/smartpay-notify/endpoint"
	"github.com/revred/smartpay-notify/id"
	"github.com/revred/smartpay-notify/internal/entity"
)

// Service manages the dead letter queue.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new DLQ service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// PushDead creates a DLQ entry from a dead envelope. Implements
// delivery.DLQPusher.
func (svc *Service) PushDead(ctx context.Context, env *delivery.Envelope, ep *endpoint.Endpoint) error {
	entry := &Entry{
		Entity:         entity.New(),
		ID:             id.NewDLQID(),
		EnvelopeID:     env.ID,
		EndpointID:     env.EndpointID,
		Topic:          env.Topic,
		TenantID:       env.TenantID,
		URL:            ep.URL,
		Payload:        env.Payload,
		Error:          env.LastError,
		AttemptCount:   env.Attempt,
		LastStatusCode: env.LastStatusCode,
		FailedAt:       time.Now().UTC(),
	}

	return svc.store.Push(ctx, entry)
}

// List returns DLQ entries matching the given options.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Entry, error) {
	return svc.store.ListDLQ(ctx, opts)
}

// Get returns a DLQ entry by ID.
func (svc *Service) Get(ctx context.Context, dlqID id.ID) (*Entry, error) {
	return svc.store.GetDLQ(ctx, dlqID)
}

// Replay re-enqueues a single DLQ entry for redelivery.
func (svc *Service) Replay(ctx context.Context, dlqID id.ID) error {
	return svc.store.Replay(ctx, dlqID)
}

// ReplayBulk re-enqueues all DLQ entries that failed within a time range.
func (svc *Service) ReplayBulk(ctx context.Context, from, to time.Time) (int64, error) {
	n, err := svc.store.ReplayBulk(ctx, from, to)
	if err != nil {
		return n, err
	}
	if n > 0 {
		svc.logger.InfoContext(ctx, "replayed DLQ entries", "count", n)
	}
	return n, nil
}

// Purge removes old DLQ entries.
func (svc *Service) Purge(ctx context.Context, before time.Time) (int64, error) {
	return svc.store.Purge(ctx, before)
}

// Count returns the total number of DLQ entries.
func (svc *Service) Count(ctx context.Context) (int64, error) {
	return svc.store.CountDLQ(ctx)
}
