package subscriber

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
)

func note(topicName string) Notification {
	return Notification{
		TenantID: "tenant-1",
		Topic:    topicName,
		Payload:  json.RawMessage(`{"amount":100}`),
	}
}

func TestDispatch_ExactMatch(t *testing.T) {
	b := NewBus(nil)

	var got atomic.Int32
	b.Subscribe("payment.intent.created", func(_ context.Context, n Notification) {
		if n.Topic != "payment.intent.created" {
			t.Errorf("unexpected topic %q", n.Topic)
		}
		got.Add(1)
	})

	n := b.Dispatch(context.Background(), note("payment.intent.created"))
	if n != 1 {
		t.Fatalf("expected 1 handler, got %d", n)
	}
	if got.Load() != 1 {
		t.Fatalf("handler ran %d times, want 1", got.Load())
	}
}

func TestDispatch_GlobPattern(t *testing.T) {
	b := NewBus(nil)

	var payments, all atomic.Int32
	b.Subscribe("payment.*", func(context.Context, Notification) { payments.Add(1) })
	b.Subscribe("*", func(context.Context, Notification) { all.Add(1) })

	b.Dispatch(context.Background(), note("payment.intent.created"))
	b.Dispatch(context.Background(), note("refund.completed"))

	if payments.Load() != 1 {
		t.Fatalf("payment.* handler ran %d times, want 1", payments.Load())
	}
	if all.Load() != 2 {
		t.Fatalf("* handler ran %d times, want 2", all.Load())
	}
}

func TestDispatch_NoMatch(t *testing.T) {
	b := NewBus(nil)
	b.Subscribe("refund.*", func(context.Context, Notification) {
		t.Error("handler should not run")
	})

	if n := b.Dispatch(context.Background(), note("payment.captured")); n != 0 {
		t.Fatalf("expected 0 handlers, got %d", n)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := NewBus(nil)

	var got atomic.Int32
	unsub := b.Subscribe("*", func(context.Context, Notification) { got.Add(1) })

	b.Dispatch(context.Background(), note("payment.captured"))
	unsub()
	unsub() // second call is a no-op
	b.Dispatch(context.Background(), note("payment.captured"))

	if got.Load() != 1 {
		t.Fatalf("handler ran %d times, want 1", got.Load())
	}
	if b.Len() != 0 {
		t.Fatalf("expected 0 subscriptions, got %d", b.Len())
	}
}

func TestDispatch_PanickingHandlerIsIsolated(t *testing.T) {
	b := NewBus(nil)

	var got atomic.Int32
	b.Subscribe("*", func(context.Context, Notification) { panic("boom") })
	b.Subscribe("*", func(context.Context, Notification) { got.Add(1) })

	n := b.Dispatch(context.Background(), note("payment.captured"))
	if n != 2 {
		t.Fatalf("expected 2 handlers, got %d", n)
	}
	if got.Load() != 1 {
		t.Fatalf("surviving handler ran %d times, want 1", got.Load())
	}
}
