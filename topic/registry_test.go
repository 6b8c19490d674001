package topic_test

import (
	"context"
	"errors"
	"testing"

	notify "github.com/revred/smartpay-notify"
	"github.com/revred/smartpay-notify/store/memory"
	"github.com/revred/smartpay-notify/topic"
)

func ctx() context.Context { return context.Background() }

func newRegistry() *topic.Registry {
	return topic.NewRegistry(memory.New(), topic.Config{}, nil)
}

func TestRegisterAndGet(t *testing.T) {
	r := newRegistry()

	created, err := r.Register(ctx(), topic.Definition{
		Name:        "payment.intent.created",
		Description: "A payment intent was created",
		Group:       "payments",
	})
	if err != nil {
		t.Fatal(err)
	}
	if created.ID.IsNil() {
		t.Fatal("expected assigned ID")
	}

	got, err := r.Get(ctx(), "payment.intent.created")
	if err != nil {
		t.Fatal(err)
	}
	if got.Definition.Group != "payments" {
		t.Fatalf("group = %q", got.Definition.Group)
	}
}

func TestRegisterUpsertKeepsIdentity(t *testing.T) {
	r := newRegistry()

	first, err := r.Register(ctx(), topic.Definition{Name: "payment.captured", Description: "v1"})
	if err != nil {
		t.Fatal(err)
	}

	second, err := r.Register(ctx(), topic.Definition{Name: "payment.captured", Description: "v2"})
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Fatal("upsert should keep the original ID")
	}

	got, _ := r.Get(ctx(), "payment.captured")
	if got.Definition.Description != "v2" {
		t.Fatalf("description = %q", got.Definition.Description)
	}
}

func TestGetUnknown(t *testing.T) {
	r := newRegistry()

	_, err := r.Get(ctx(), "does.not.exist")
	if !errors.Is(err, notify.ErrTopicNotFound) {
		t.Fatalf("expected ErrTopicNotFound, got %v", err)
	}
}

func TestDeprecateRemovesFromCache(t *testing.T) {
	r := newRegistry()

	if _, err := r.Register(ctx(), topic.Definition{Name: "old.topic"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Deprecate(ctx(), "old.topic"); err != nil {
		t.Fatal(err)
	}

	got, err := r.Get(ctx(), "old.topic")
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsDeprecated {
		t.Fatal("topic should be deprecated")
	}
}

func TestListByGroup(t *testing.T) {
	r := newRegistry()

	defs := []topic.Definition{
		{Name: "payment.captured", Group: "payments"},
		{Name: "payment.refunded", Group: "payments"},
		{Name: "dispute.opened", Group: "disputes"},
	}
	for _, def := range defs {
		if _, err := r.Register(ctx(), def); err != nil {
			t.Fatal(err)
		}
	}

	payments, err := r.List(ctx(), topic.ListOpts{Group: "payments"})
	if err != nil {
		t.Fatal(err)
	}
	if len(payments) != 2 {
		t.Fatalf("expected 2 payment topics, got %d", len(payments))
	}
}

func TestWarmCache(t *testing.T) {
	store := memory.New()
	r := topic.NewRegistry(store, topic.Config{}, nil)

	if _, err := r.Register(ctx(), topic.Definition{Name: "payment.captured"}); err != nil {
		t.Fatal(err)
	}

	// A second registry over the same store starts cold and warms up.
	r2 := topic.NewRegistry(store, topic.Config{}, nil)
	if err := r2.WarmCache(ctx()); err != nil {
		t.Fatal(err)
	}
	if _, err := r2.Get(ctx(), "payment.captured"); err != nil {
		t.Fatal(err)
	}
}
