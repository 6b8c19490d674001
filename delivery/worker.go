package delivery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/revred/smartpay-notify/endpoint"
	"github.com/revred/smartpay-notify/id"
	"github.com/revred/smartpay-notify/observability"
	"github.com/revred/smartpay-notify/ratelimit"
)

// WorkerStore is the interface the worker needs for delivery operations.
type WorkerStore interface {
	Dequeue(ctx context.Context, limit int) ([]*Envelope, error)
	UpdateEnvelope(ctx context.Context, env *Envelope) error
	EnqueueBatch(ctx context.Context, envs []*Envelope) error
	Resolve(ctx context.Context, tenantID, topicName string) ([]*endpoint.Endpoint, error)
	GetEndpoint(ctx context.Context, epID id.ID) (*endpoint.Endpoint, error)
}

// DLQPusher records permanently failed envelopes in the dead letter queue.
type DLQPusher interface {
	PushDead(ctx context.Context, env *Envelope, ep *endpoint.Endpoint) error
}

// WorkerConfig holds delivery worker configuration.
type WorkerConfig struct {
	Concurrency    int
	PollInterval   time.Duration
	BatchSize      int
	RequestTimeout time.Duration
	InitialBackoff time.Duration
	BackoffCap     time.Duration
	Metrics        *observability.Metrics
	Tracer         *observability.Tracer
}

// Worker is the single queue consumer: it polls the outbox, fans unbound
// envelopes out to their tenant's matching endpoints, performs HTTP
// attempts, and re-enqueues or dead-letters failures. Attempts within a
// batch run concurrently, but there is exactly one dequeue loop.
type Worker struct {
	store   WorkerStore
	sender  *Sender
	retrier *Retrier
	dlq     DLQPusher
	limiter *ratelimit.Limiter
	config  WorkerConfig
	logger  *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a delivery worker.
func NewWorker(store WorkerStore, dlq DLQPusher, limiter *ratelimit.Limiter, cfg WorkerConfig, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Worker{
		store:   store,
		sender:  NewSender(cfg.RequestTimeout),
		retrier: NewRetrier(cfg.InitialBackoff, cfg.BackoffCap),
		dlq:     dlq,
		limiter: limiter,
		config:  cfg,
		logger:  logger,
	}
}

// Start begins the poll loop.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()
}

// Stop cancels the poll loop and waits for in-flight attempts to complete.
func (w *Worker) Stop(_ context.Context) {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// pollLoop periodically dequeues due envelopes and dispatches them.
func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, w.config.Concurrency)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch, err := w.store.Dequeue(ctx, w.config.BatchSize)
			if err != nil {
				w.logger.ErrorContext(ctx, "dequeue failed", "error", err)
				continue
			}

			for _, env := range batch {
				select {
				case <-ctx.Done():
					return
				case sem <- struct{}{}:
				}

				w.wg.Add(1)
				go func(e *Envelope) {
					defer w.wg.Done()
					defer func() { <-sem }()
					w.process(ctx, e)
				}(env)
			}
		}
	}
}

// process routes one dequeued envelope. Unbound envelopes (first dequeue
// after publish) fan out to the tenant's matching endpoints; bound envelopes
// are retries of a single (envelope, endpoint) pair.
func (w *Worker) process(ctx context.Context, env *Envelope) {
	if !env.Bound() {
		w.fanOut(ctx, env)
		return
	}

	ep, err := w.store.GetEndpoint(ctx, env.EndpointID)
	if err != nil {
		// The endpoint was deleted between attempts. The envelope can never
		// deliver, so terminate it rather than leak a locked queue entry.
		w.logger.ErrorContext(ctx, "get endpoint failed",
			"envelope_id", env.ID, "endpoint_id", env.EndpointID, "error", err)
		w.terminate(ctx, env, "endpoint not found: "+err.Error())
		return
	}

	if !ep.Active {
		w.logger.WarnContext(ctx, "endpoint inactive, abandoning envelope",
			"envelope_id", env.ID, "endpoint", ep.Name)
		w.terminate(ctx, env, "endpoint inactive")
		return
	}

	w.attempt(ctx, env, ep)
}

// fanOut resolves the tenant's active endpoints whose patterns match the
// envelope's topic, binds the dequeued envelope to the first one, and
// enqueues a clone per remaining endpoint. Only the bound original is
// attempted here; clones are picked up by later poll ticks so each one goes
// through the normal dequeue lock. From here on every envelope retries
// independently: a failing endpoint never holds up the others.
func (w *Worker) fanOut(ctx context.Context, env *Envelope) {
	eps, err := w.store.Resolve(ctx, env.TenantID, env.Topic)
	if err != nil {
		// Store hiccup, not a delivery failure: reschedule without
		// consuming the attempt budget.
		w.logger.ErrorContext(ctx, "resolve endpoints failed",
			"envelope_id", env.ID, "tenant_id", env.TenantID, "error", err)
		env.NextAttemptAt = time.Now().UTC().Add(w.config.PollInterval)
		w.update(ctx, env)
		return
	}

	if len(eps) == 0 {
		now := time.Now().UTC()
		env.State = StateDelivered
		env.CompletedAt = &now
		if w.config.Metrics != nil {
			w.config.Metrics.PendingEnvelopes.Dec()
		}
		w.logger.DebugContext(ctx, "no endpoints subscribed, envelope complete",
			"envelope_id", env.ID, "topic", env.Topic)
		w.update(ctx, env)
		return
	}

	env.EndpointID = eps[0].ID

	if len(eps) > 1 {
		clones := make([]*Envelope, 0, len(eps)-1)
		for _, ep := range eps[1:] {
			clones = append(clones, env.CloneFor(ep.ID))
		}
		if err := w.store.EnqueueBatch(ctx, clones); err != nil {
			w.logger.ErrorContext(ctx, "fan-out enqueue failed",
				"envelope_id", env.ID, "clones", len(clones), "error", err)
		} else if w.config.Metrics != nil {
			w.config.Metrics.PendingEnvelopes.Add(float64(len(clones)))
		}
	}

	w.attempt(ctx, env, eps[0])
}

// attempt performs one HTTP delivery of a bound envelope and records the
// outcome.
func (w *Worker) attempt(ctx context.Context, env *Envelope, ep *endpoint.Endpoint) {
	var span trace.Span
	if w.config.Tracer != nil {
		ctx, span = w.config.Tracer.StartDeliverySpan(ctx, env.ID.String(), env.Topic, ep.ID.String())
	}

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx, ep.ID.String(), ep.RateLimit); err != nil {
			// Shutting down mid-wait: leave the envelope pending for the
			// next run without consuming the attempt budget.
			env.NextAttemptAt = time.Now().UTC()
			w.update(ctx, env)
			if span != nil {
				w.config.Tracer.EndDeliverySpan(span, 0, 0, err.Error())
			}
			return
		}
	}

	result := w.sender.Send(ctx, ep, env)

	env.LastError = result.Error
	env.LastStatusCode = result.StatusCode
	env.LastLatencyMs = result.LatencyMs

	latencySeconds := float64(result.LatencyMs) / 1000.0

	switch w.retrier.Decide(result, env) {
	case Delivered:
		now := time.Now().UTC()
		env.State = StateDelivered
		env.CompletedAt = &now
		if w.config.Metrics != nil {
			w.config.Metrics.RecordDelivery("delivered", latencySeconds)
			w.config.Metrics.PendingEnvelopes.Dec()
		}
		w.logger.DebugContext(ctx, "delivered",
			"envelope_id", env.ID, "endpoint", ep.Name,
			"status", result.StatusCode, "latency_ms", result.LatencyMs)

	case Retry:
		env.NextAttemptAt = w.retrier.NextAttempt(env.Attempt)
		env.Attempt++
		if w.config.Metrics != nil {
			w.config.Metrics.RecordDelivery("retried", latencySeconds)
		}
		w.logger.DebugContext(ctx, "retry scheduled",
			"envelope_id", env.ID, "endpoint", ep.Name,
			"attempt", env.Attempt, "next_at", env.NextAttemptAt)

	case Dead:
		now := time.Now().UTC()
		env.Attempt++
		env.State = StateDead
		env.CompletedAt = &now
		if w.dlq != nil {
			if dlqErr := w.dlq.PushDead(ctx, env, ep); dlqErr != nil {
				w.logger.ErrorContext(ctx, "push to DLQ failed",
					"envelope_id", env.ID, "error", dlqErr)
			}
		}
		if w.config.Metrics != nil {
			w.config.Metrics.RecordDelivery("dead", latencySeconds)
			w.config.Metrics.PendingEnvelopes.Dec()
			w.config.Metrics.DLQSize.Inc()
		}
		w.logger.ErrorContext(ctx, "delivery failed permanently",
			"envelope_id", env.ID, "endpoint", ep.Name,
			"attempts", env.Attempt, "status", result.StatusCode, "error", result.Error)
	}

	if span != nil {
		w.config.Tracer.EndDeliverySpan(span, env.LastStatusCode, env.LastLatencyMs, env.LastError)
	}

	w.update(ctx, env)
}

// terminate marks an envelope dead without a delivery attempt.
func (w *Worker) terminate(ctx context.Context, env *Envelope, reason string) {
	now := time.Now().UTC()
	env.State = StateDead
	env.LastError = reason
	env.CompletedAt = &now
	if w.config.Metrics != nil {
		w.config.Metrics.PendingEnvelopes.Dec()
	}
	w.update(ctx, env)
}

func (w *Worker) update(ctx context.Context, env *Envelope) {
	if err := w.store.UpdateEnvelope(ctx, env); err != nil {
		w.logger.ErrorContext(ctx, "update envelope failed",
			"envelope_id", env.ID, "error", err)
	}
}
