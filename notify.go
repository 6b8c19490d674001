package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/revred/smartpay-notify/delivery"
	"github.com/revred/smartpay-notify/dlq"
	"github.com/revred/smartpay-notify/endpoint"
	"github.com/revred/smartpay-notify/id"
	"github.com/revred/smartpay-notify/internal/entity"
	"github.com/revred/smartpay-notify/observability"
	"github.com/revred/smartpay-notify/ratelimit"
	"github.com/revred/smartpay-notify/store"
	"github.com/revred/smartpay-notify/subscriber"
	"github.com/revred/smartpay-notify/topic"
)

// Hub is the root outbound notification engine: publishers hand it events,
// the embedded delivery worker gets them to webhook endpoints.
type Hub struct {
	config      Config
	store       store.Store
	topics      *topic.Registry
	validator   *topic.Validator
	endpointSvc *endpoint.Service
	worker      *delivery.Worker
	dlqSvc      *dlq.Service
	bus         *subscriber.Bus
	limiter     *ratelimit.Limiter
	metrics     *observability.Metrics
	tracer      *observability.Tracer
	logger      *slog.Logger
}

// New creates a new Hub with the given options.
func New(opts ...Option) (*Hub, error) {
	h := &Hub{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}
	if h.store == nil {
		return nil, ErrNoStore
	}
	h.wireServices()
	return h, nil
}

// wireServices initializes the internal services after options have been
// applied.
func (h *Hub) wireServices() {
	h.topics = topic.NewRegistry(h.store, topic.Config{
		CacheTTL: h.config.CacheTTL,
	}, h.logger)

	h.validator = topic.NewValidator()

	h.endpointSvc = endpoint.NewService(h.store, h.logger)

	h.dlqSvc = dlq.NewService(h.store, h.logger)

	h.bus = subscriber.NewBus(h.logger)

	h.limiter = ratelimit.New()

	h.worker = delivery.NewWorker(h.store, h.dlqSvc, h.limiter, delivery.WorkerConfig{
		Concurrency:    h.config.Concurrency,
		PollInterval:   h.config.PollInterval,
		BatchSize:      h.config.BatchSize,
		RequestTimeout: h.config.RequestTimeout,
		InitialBackoff: h.config.InitialBackoff,
		BackoffCap:     h.config.BackoffCap,
		Metrics:        h.metrics,
		Tracer:         h.tracer,
	}, h.logger)
}

// Start begins the delivery worker.
func (h *Hub) Start(ctx context.Context) {
	h.worker.Start(ctx)
}

// Stop gracefully shuts down the delivery worker, waiting for in-flight
// attempts to complete.
func (h *Hub) Stop(ctx context.Context) {
	h.worker.Stop(ctx)
}

// RegisterTopic registers a notification topic definition in the catalog.
func (h *Hub) RegisterTopic(ctx context.Context, def topic.Definition, opts ...topic.RegisterOption) (*topic.Topic, error) {
	return h.topics.Register(ctx, def, opts...)
}

// Receipt reports the outcome of a Publish call.
type Receipt struct {
	// EnvelopeID identifies the enqueued envelope. For a duplicate publish
	// it is the envelope from the original call.
	EnvelopeID id.ID

	// Duplicate is true when the idempotency key was already claimed and
	// nothing new was enqueued.
	Duplicate bool

	// Subscribers is how many in-process handlers observed the event.
	Subscribers int
}

// PublishOption configures a single Publish call.
type PublishOption func(*publishOptions)

type publishOptions struct {
	idempotencyKey string
	maxAttempts    int
}

// WithIdempotencyKey deduplicates the publish: a second call with the same
// tenant and key within the configured TTL is a no-op returning the
// original envelope.
func WithIdempotencyKey(key string) PublishOption {
	return func(o *publishOptions) { o.idempotencyKey = key }
}

// WithAttemptBudget overrides the configured attempt budget for this
// envelope only.
func WithAttemptBudget(n int) PublishOption {
	return func(o *publishOptions) { o.maxAttempts = n }
}

// Publish validates an event against its registered topic and enqueues
// exactly one envelope for delivery. The call returns once the envelope is
// durably queued; HTTP delivery happens asynchronously in the worker, which
// resolves the tenant's matching endpoints and fans out.
//
// The critical path:
//  1. Look up the topic (reject unknown topics).
//  2. Reject deprecated topics.
//  3. Validate the payload against the topic's JSON Schema, if any.
//  4. Claim the idempotency key, if given; duplicates are a no-op.
//  5. Enqueue one unbound envelope.
//  6. Notify in-process subscribers.
//
// A failed enqueue is returned as an error rather than swallowed: the
// envelope was never durably queued, so the caller must know the event will
// not be delivered. Subscriber panics, by contrast, are recovered and
// logged — they never surface here.
func (h *Hub) Publish(ctx context.Context, tenantID, topicName string, payload json.RawMessage, opts ...PublishOption) (*Receipt, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}

	po := publishOptions{maxAttempts: h.config.MaxAttempts}
	for _, o := range opts {
		o(&po)
	}
	if po.maxAttempts <= 0 {
		po.maxAttempts = delivery.DefaultMaxAttempts
	}

	t, err := h.topics.Get(ctx, topicName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTopicNotFound, topicName)
	}
	if t.IsDeprecated {
		return nil, fmt.Errorf("%w: %s", ErrTopicDeprecated, topicName)
	}

	if len(t.Definition.Schema) > 0 {
		if validateErr := h.validator.Validate(t.Definition.Schema, payload); validateErr != nil {
			return nil, fmt.Errorf("%w: %s", ErrPayloadValidationFailed, validateErr.Error())
		}
	}

	now := time.Now().UTC()
	env := &delivery.Envelope{
		Entity:        entity.New(),
		ID:            id.NewEnvelopeID(),
		TenantID:      tenantID,
		Topic:         topicName,
		Payload:       payload,
		State:         delivery.StatePending,
		MaxAttempts:   po.maxAttempts,
		NextAttemptAt: now,
	}

	if po.idempotencyKey != "" {
		prev, claimed, idemErr := h.store.TryAdd(ctx, tenantID, po.idempotencyKey, env.ID, h.config.IdempotencyTTL)
		if idemErr != nil {
			return nil, fmt.Errorf("notify: idempotency check: %w", idemErr)
		}
		if !claimed {
			h.logger.DebugContext(ctx, "duplicate publish suppressed",
				"tenant_id", tenantID, "topic", topicName, "envelope_id", prev)
			return &Receipt{EnvelopeID: prev, Duplicate: true}, nil
		}
	}

	if err := h.store.Enqueue(ctx, env); err != nil {
		return nil, fmt.Errorf("notify: enqueue envelope: %w", err)
	}

	if h.metrics != nil {
		h.metrics.EventsPublished.Inc()
		h.metrics.PendingEnvelopes.Inc()
	}

	subscribers := h.bus.Dispatch(ctx, subscriber.Notification{
		EnvelopeID:  env.ID,
		TenantID:    tenantID,
		Topic:       topicName,
		Payload:     payload,
		PublishedAt: now,
	})

	h.logger.DebugContext(ctx, "event published",
		"envelope_id", env.ID,
		"tenant_id", tenantID,
		"topic", topicName,
		"subscribers", subscribers,
	)

	return &Receipt{EnvelopeID: env.ID, Subscribers: subscribers}, nil
}

// Subscribe registers an in-process handler for topics matching the glob
// pattern. It returns an unsubscribe function.
func (h *Hub) Subscribe(pattern string, handler subscriber.Handler) func() {
	return h.bus.Subscribe(pattern, handler)
}

// LoadEndpoints validates and persists statically configured endpoints.
// Any invalid entry fails the whole load.
func (h *Hub) LoadEndpoints(ctx context.Context, configs []endpoint.Config) ([]*endpoint.Endpoint, error) {
	return endpoint.LoadStatic(ctx, h.store, configs)
}

// Topics returns the topic registry.
func (h *Hub) Topics() *topic.Registry {
	return h.topics
}

// Endpoints returns the endpoint management service.
func (h *Hub) Endpoints() *endpoint.Service {
	return h.endpointSvc
}

// DLQ returns the dead letter queue service.
func (h *Hub) DLQ() *dlq.Service {
	return h.dlqSvc
}

// Store returns the underlying store.
func (h *Hub) Store() store.Store {
	return h.store
}
