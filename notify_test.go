package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	notify "github.com/revred/smartpay-notify"
	"github.com/revred/smartpay-notify/delivery"
	"github.com/revred/smartpay-notify/endpoint"
	"github.com/revred/smartpay-notify/store/memory"
	"github.com/revred/smartpay-notify/subscriber"
	"github.com/revred/smartpay-notify/topic"
)

func ctx() context.Context { return context.Background() }

func setup(t *testing.T, opts ...notify.Option) (*notify.Hub, *memory.Store) {
	t.Helper()
	s := memory.New()
	h, err := notify.New(append([]notify.Option{notify.WithStore(s)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return h, s
}

func registerTopic(t *testing.T, h *notify.Hub, name string) {
	t.Helper()
	if _, err := h.RegisterTopic(ctx(), topic.Definition{Name: name}); err != nil {
		t.Fatal(err)
	}
}

func createEndpoint(t *testing.T, h *notify.Hub, tenantID, url string, patterns []string) *endpoint.Endpoint {
	t.Helper()
	ep, err := h.Endpoints().Create(ctx(), endpoint.Input{
		TenantID: tenantID,
		URL:      url,
		Topics:   patterns,
	})
	if err != nil {
		t.Fatal(err)
	}
	return ep
}

func TestNewRequiresStore(t *testing.T) {
	_, err := notify.New()
	if !errors.Is(err, notify.ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
}

func TestPublishHappyPath(t *testing.T) {
	h, s := setup(t)

	registerTopic(t, h, "payment.intent.created")
	createEndpoint(t, h, "t1", "https://example.com/webhook", []string{"payment.*"})
	createEndpoint(t, h, "t1", "https://example.com/webhook2", []string{"*"})

	receipt, err := h.Publish(ctx(), "t1", "payment.intent.created", json.RawMessage(`{"amount":100}`))
	if err != nil {
		t.Fatal(err)
	}
	if receipt.EnvelopeID.IsNil() {
		t.Fatal("expected envelope ID to be assigned")
	}
	if receipt.Duplicate {
		t.Fatal("first publish should not be a duplicate")
	}

	// Exactly one envelope regardless of subscriber count. Fan-out to the
	// two endpoints happens in the worker.
	pending, _ := s.CountPending(ctx())
	if pending != 1 {
		t.Fatalf("expected 1 pending envelope, got %d", pending)
	}

	env, err := s.GetEnvelope(ctx(), receipt.EnvelopeID)
	if err != nil {
		t.Fatal(err)
	}
	if env.State != delivery.StatePending {
		t.Fatalf("expected pending, got %s", env.State)
	}
	if env.Bound() {
		t.Fatal("freshly published envelope should be unbound")
	}
	if env.Attempt != 0 {
		t.Fatalf("Attempt = %d, want 0", env.Attempt)
	}
}

func TestPublishRequiresTenant(t *testing.T) {
	h, _ := setup(t)
	registerTopic(t, h, "payment.captured")

	_, err := h.Publish(ctx(), "", "payment.captured", json.RawMessage(`{}`))
	if !errors.Is(err, notify.ErrTenantRequired) {
		t.Fatalf("expected ErrTenantRequired, got %v", err)
	}
}

func TestPublishUnknownTopic(t *testing.T) {
	h, _ := setup(t)

	_, err := h.Publish(ctx(), "t1", "does.not.exist", json.RawMessage(`{}`))
	if !errors.Is(err, notify.ErrTopicNotFound) {
		t.Fatalf("expected ErrTopicNotFound, got %v", err)
	}
}

func TestPublishDeprecatedTopic(t *testing.T) {
	h, _ := setup(t)

	registerTopic(t, h, "old.topic")
	if err := h.Topics().Deprecate(ctx(), "old.topic"); err != nil {
		t.Fatal(err)
	}

	_, err := h.Publish(ctx(), "t1", "old.topic", json.RawMessage(`{}`))
	if !errors.Is(err, notify.ErrTopicDeprecated) {
		t.Fatalf("expected ErrTopicDeprecated, got %v", err)
	}
}

func TestPublishSchemaValidation(t *testing.T) {
	h, _ := setup(t)

	_, err := h.RegisterTopic(ctx(), topic.Definition{
		Name: "validated.topic",
		Schema: json.RawMessage(`{
			"type": "object",
			"required": ["amount"],
			"properties": {"amount": {"type": "number"}}
		}`),
	})
	if err != nil {
		t.Fatal(err)
	}

	// Valid payload passes.
	if _, err := h.Publish(ctx(), "t1", "validated.topic", json.RawMessage(`{"amount":100}`)); err != nil {
		t.Fatal(err)
	}

	// Missing required field fails.
	_, err = h.Publish(ctx(), "t1", "validated.topic", json.RawMessage(`{"currency":"GBP"}`))
	if !errors.Is(err, notify.ErrPayloadValidationFailed) {
		t.Fatalf("expected ErrPayloadValidationFailed, got %v", err)
	}
}

func TestPublishIdempotencyKey(t *testing.T) {
	h, s := setup(t)
	registerTopic(t, h, "payment.captured")

	first, err := h.Publish(ctx(), "t1", "payment.captured", json.RawMessage(`{"n":1}`),
		notify.WithIdempotencyKey("op-123"))
	if err != nil {
		t.Fatal(err)
	}

	second, err := h.Publish(ctx(), "t1", "payment.captured", json.RawMessage(`{"n":1}`),
		notify.WithIdempotencyKey("op-123"))
	if err != nil {
		t.Fatal(err)
	}

	if !second.Duplicate {
		t.Fatal("second publish should be flagged duplicate")
	}
	if second.EnvelopeID != first.EnvelopeID {
		t.Fatal("duplicate should return the original envelope ID")
	}

	pending, _ := s.CountPending(ctx())
	if pending != 1 {
		t.Fatalf("expected 1 pending envelope, got %d", pending)
	}

	// A different key enqueues normally.
	third, err := h.Publish(ctx(), "t1", "payment.captured", json.RawMessage(`{"n":2}`),
		notify.WithIdempotencyKey("op-456"))
	if err != nil {
		t.Fatal(err)
	}
	if third.Duplicate {
		t.Fatal("different key should not be a duplicate")
	}
}

func TestSubscribersObservePublish(t *testing.T) {
	h, _ := setup(t)
	registerTopic(t, h, "payment.captured")

	var seen atomic.Int32
	unsub := h.Subscribe("payment.*", func(_ context.Context, n subscriber.Notification) {
		if n.Topic != "payment.captured" || n.TenantID != "t1" {
			t.Errorf("unexpected notification %+v", n)
		}
		seen.Add(1)
	})
	defer unsub()

	receipt, err := h.Publish(ctx(), "t1", "payment.captured", json.RawMessage(`{"amount":1}`))
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Subscribers != 1 {
		t.Fatalf("Subscribers = %d, want 1", receipt.Subscribers)
	}
	if seen.Load() != 1 {
		t.Fatalf("handler ran %d times, want 1", seen.Load())
	}
}

func TestLoadEndpointsFailFast(t *testing.T) {
	h, s := setup(t)

	configs := []endpoint.Config{
		{
			Name:     "good",
			TenantID: "t1",
			URL:      "https://example.com/a",
			Secret:   "whsec_a",
			Topics:   []string{"*"},
			Active:   true,
		},
		{
			Name:     "broken",
			TenantID: "t1",
			URL:      "https://example.com/b",
			// Secret missing.
			Topics: []string{"*"},
		},
	}

	if _, err := h.LoadEndpoints(ctx(), configs); err == nil {
		t.Fatal("expected load to fail on the invalid entry")
	}

	// Fail-fast still aborts before the invalid entry, but nothing after it
	// was loaded either.
	eps, err := s.ListEndpoints(ctx(), "t1", endpoint.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(eps) > 1 {
		t.Fatalf("expected at most 1 endpoint persisted, got %d", len(eps))
	}
}

func TestEndToEndDelivery(t *testing.T) {
	var attempts atomic.Int32
	var secondAttemptHeader atomic.Value

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		secondAttemptHeader.Store(r.Header.Get("X-SmartPay-Attempt"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h, s := setup(t,
		notify.WithPollInterval(20*time.Millisecond),
		notify.WithBackoff(10*time.Millisecond, 50*time.Millisecond),
	)

	registerTopic(t, h, "payment.captured")
	createEndpoint(t, h, "t1", srv.URL, []string{"payment.*"})

	receipt, err := h.Publish(ctx(), "t1", "payment.captured", json.RawMessage(`{"amount":100}`))
	if err != nil {
		t.Fatal(err)
	}

	h.Start(ctx())
	defer h.Stop(ctx())

	deadline := time.After(3 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for delivery")
		default:
		}

		env, getErr := s.GetEnvelope(ctx(), receipt.EnvelopeID)
		if getErr != nil {
			t.Fatal(getErr)
		}
		if env.State == delivery.StateDelivered {
			if env.Attempt != 1 {
				t.Fatalf("Attempt = %d, want 1", env.Attempt)
			}
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	if attempts.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts.Load())
	}
	if got := secondAttemptHeader.Load(); got != "1" {
		t.Fatalf("second attempt header = %v, want 1", got)
	}
}
