package delivery_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/revred/smartpay-notify/delivery"
	"github.com/revred/smartpay-notify/endpoint"
	"github.com/revred/smartpay-notify/id"
	"github.com/revred/smartpay-notify/internal/entity"
	"github.com/revred/smartpay-notify/store/memory"
)

// stubDLQ records pushed envelopes.
type stubDLQ struct {
	mu     sync.Mutex
	pushed []*delivery.Envelope
	count  atomic.Int32
}

func (s *stubDLQ) PushDead(_ context.Context, env *delivery.Envelope, _ *endpoint.Endpoint) error {
	s.mu.Lock()
	s.pushed = append(s.pushed, env)
	s.mu.Unlock()
	s.count.Add(1)
	return nil
}

func setupWorker(t *testing.T, pusher delivery.DLQPusher) (*memory.Store, *delivery.Worker) {
	t.Helper()

	store := memory.New()
	cfg := delivery.WorkerConfig{
		Concurrency:    2,
		PollInterval:   20 * time.Millisecond,
		BatchSize:      10,
		RequestTimeout: 5 * time.Second,
		InitialBackoff: 10 * time.Millisecond,
		BackoffCap:     40 * time.Millisecond,
	}

	return store, delivery.NewWorker(store, pusher, nil, cfg, nil)
}

func addEndpoint(t *testing.T, store *memory.Store, url string, topics ...string) *endpoint.Endpoint {
	t.Helper()
	if len(topics) == 0 {
		topics = []string{"*"}
	}
	ep := &endpoint.Endpoint{
		Entity:   entity.New(),
		ID:       id.NewEndpointID(),
		TenantID: "tenant-1",
		Name:     "test hook",
		URL:      url,
		Secret:   testSecret,
		Topics:   topics,
		Active:   true,
	}
	if err := store.CreateEndpoint(context.Background(), ep); err != nil {
		t.Fatal(err)
	}
	return ep
}

func publish(t *testing.T, store *memory.Store, maxAttempts int) *delivery.Envelope {
	t.Helper()
	env := &delivery.Envelope{
		Entity:        entity.New(),
		ID:            id.NewEnvelopeID(),
		TenantID:      "tenant-1",
		Topic:         "payment.captured",
		Payload:       json.RawMessage(`{"amount":100}`),
		State:         delivery.StatePending,
		MaxAttempts:   maxAttempts,
		NextAttemptAt: time.Now().UTC(),
	}
	if err := store.Enqueue(context.Background(), env); err != nil {
		t.Fatal(err)
	}
	return env
}

// waitForState polls until the envelope reaches the wanted state.
func waitForState(t *testing.T, store *memory.Store, envID id.ID, want delivery.State) *delivery.Envelope {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for envelope %s to reach %q", envID, want)
		default:
		}

		env, err := store.GetEnvelope(context.Background(), envID)
		if err != nil {
			t.Fatal(err)
		}
		if env.State == want {
			return env
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// waitForQuiet polls until no pending envelopes remain.
func waitForQuiet(t *testing.T, store *memory.Store) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-deadline:
			n, _ := store.CountPending(context.Background())
			t.Fatalf("timeout: %d envelopes still pending", n)
		default:
		}

		n, err := store.CountPending(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if n == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWorkerDeliversSuccessfully(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pusher := &stubDLQ{}
	store, worker := setupWorker(t, pusher)
	addEndpoint(t, store, srv.URL)
	env := publish(t, store, 3)

	ctx := context.Background()
	worker.Start(ctx)
	defer worker.Stop(ctx)

	got := waitForState(t, store, env.ID, delivery.StateDelivered)

	if requests.Load() != 1 {
		t.Fatalf("expected 1 request, got %d", requests.Load())
	}
	if got.Attempt != 0 {
		t.Fatalf("successful first attempt should leave Attempt at 0, got %d", got.Attempt)
	}
	if got.CompletedAt == nil {
		t.Fatal("CompletedAt should be set")
	}
	if got.LastStatusCode != 200 {
		t.Fatalf("LastStatusCode = %d, want 200", got.LastStatusCode)
	}
	if pusher.count.Load() != 0 {
		t.Fatal("expected no DLQ pushes")
	}
}

func TestWorkerRetriesThenSucceeds(t *testing.T) {
	var attempts atomic.Int32
	var headers sync.Map

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		headers.Store(n, r.Header.Get("X-SmartPay-Attempt"))
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pusher := &stubDLQ{}
	store, worker := setupWorker(t, pusher)
	addEndpoint(t, store, srv.URL)
	env := publish(t, store, 3)

	ctx := context.Background()
	worker.Start(ctx)
	defer worker.Stop(ctx)

	got := waitForState(t, store, env.ID, delivery.StateDelivered)

	if attempts.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts.Load())
	}
	if got.Attempt != 2 {
		t.Fatalf("Attempt = %d, want 2 after two failures", got.Attempt)
	}

	// Each retried request declares its own attempt number.
	for n, want := range map[int32]string{1: "0", 2: "1", 3: "2"} {
		if h, _ := headers.Load(n); h != want {
			t.Fatalf("attempt %d header = %v, want %s", n, h, want)
		}
	}
	if pusher.count.Load() != 0 {
		t.Fatal("expected no DLQ pushes")
	}
}

func TestWorkerExhaustsAndDeadLetters(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	pusher := &stubDLQ{}
	store, worker := setupWorker(t, pusher)
	addEndpoint(t, store, srv.URL)
	env := publish(t, store, 2)

	ctx := context.Background()
	worker.Start(ctx)
	defer worker.Stop(ctx)

	got := waitForState(t, store, env.ID, delivery.StateDead)

	if attempts.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts.Load())
	}
	if got.Attempt != 2 {
		t.Fatalf("Attempt = %d, want 2 after exhaustion", got.Attempt)
	}
	if got.LastStatusCode != 503 {
		t.Fatalf("LastStatusCode = %d, want 503", got.LastStatusCode)
	}
	if pusher.count.Load() != 1 {
		t.Fatalf("expected 1 DLQ push, got %d", pusher.count.Load())
	}
}

func TestWorkerFansOutToAllMatchingEndpoints(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pusher := &stubDLQ{}
	store, worker := setupWorker(t, pusher)
	addEndpoint(t, store, srv.URL, "payment.*")
	addEndpoint(t, store, srv.URL, "*")
	addEndpoint(t, store, srv.URL, "payment.captured")
	addEndpoint(t, store, srv.URL, "refund.*") // does not match
	publish(t, store, 3)

	ctx := context.Background()
	worker.Start(ctx)
	defer worker.Stop(ctx)

	waitForQuiet(t, store)

	if requests.Load() != 3 {
		t.Fatalf("expected 3 deliveries, got %d", requests.Load())
	}
}

func TestWorkerFanOutDeliversOncePerEndpoint(t *testing.T) {
	// A slow receiver keeps one fan-out attempt in flight across several
	// poll ticks. The sibling envelope must still be delivered exactly
	// once: the dequeue lock, not timing, decides who owns it.
	var slow, fast atomic.Int32
	slowSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		slow.Add(1)
		time.Sleep(400 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer slowSrv.Close()

	fastSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fast.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer fastSrv.Close()

	pusher := &stubDLQ{}
	store, worker := setupWorker(t, pusher)
	addEndpoint(t, store, slowSrv.URL)
	addEndpoint(t, store, fastSrv.URL)
	publish(t, store, 3)

	ctx := context.Background()
	worker.Start(ctx)
	defer worker.Stop(ctx)

	waitForQuiet(t, store)

	if slow.Load() != 1 {
		t.Fatalf("slow endpoint received %d POSTs for one envelope, want exactly 1", slow.Load())
	}
	if fast.Load() != 1 {
		t.Fatalf("fast endpoint received %d POSTs for one envelope, want exactly 1", fast.Load())
	}
}

func TestWorkerFailingEndpointDoesNotBlockOthers(t *testing.T) {
	var healthy atomic.Int32
	healthySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		healthy.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer healthySrv.Close()

	brokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer brokenSrv.Close()

	pusher := &stubDLQ{}
	store, worker := setupWorker(t, pusher)
	addEndpoint(t, store, brokenSrv.URL)
	addEndpoint(t, store, healthySrv.URL)
	publish(t, store, 2)

	ctx := context.Background()
	worker.Start(ctx)
	defer worker.Stop(ctx)

	waitForQuiet(t, store)

	// The healthy endpoint got its delivery exactly once while the broken
	// one burned through its own retry budget.
	if healthy.Load() != 1 {
		t.Fatalf("healthy endpoint: expected 1 delivery, got %d", healthy.Load())
	}
	if pusher.count.Load() != 1 {
		t.Fatalf("expected 1 DLQ push for the broken endpoint, got %d", pusher.count.Load())
	}
}

func TestWorkerNoSubscribersCompletesEnvelope(t *testing.T) {
	pusher := &stubDLQ{}
	store, worker := setupWorker(t, pusher)
	env := publish(t, store, 3)

	ctx := context.Background()
	worker.Start(ctx)
	defer worker.Stop(ctx)

	got := waitForState(t, store, env.ID, delivery.StateDelivered)

	if got.Attempt != 0 {
		t.Fatalf("Attempt = %d, want 0", got.Attempt)
	}
	if pusher.count.Load() != 0 {
		t.Fatal("expected no DLQ pushes")
	}
}

func TestWorkerManyEnvelopesManyEndpoints(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pusher := &stubDLQ{}
	store, worker := setupWorker(t, pusher)

	const endpoints = 3
	const envelopes = 10
	for i := 0; i < endpoints; i++ {
		addEndpoint(t, store, srv.URL)
	}

	var wg sync.WaitGroup
	for i := 0; i < envelopes; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			publish(t, store, 3)
		}()
	}
	wg.Wait()

	ctx := context.Background()
	worker.Start(ctx)
	defer worker.Stop(ctx)

	waitForQuiet(t, store)

	if requests.Load() != endpoints*envelopes {
		t.Fatalf("expected %d deliveries, got %d", endpoints*envelopes, requests.Load())
	}
}
