// Package subscriber provides an in-process notification bus. Components in
// the same process (audit trail, cache invalidation, projections) observe
// published events without going through HTTP delivery.
package subscriber

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/revred/smartpay-notify/id"
	"github.com/revred/smartpay-notify/topic"
)

// Notification is the in-process view of a published event.
type Notification struct {
	EnvelopeID  id.ID
	TenantID    string
	Topic       string
	Payload     json.RawMessage
	PublishedAt time.Time
}

// Handler receives notifications matching a subscription's topic pattern.
// Handlers run synchronously on the publisher's goroutine, so they must be
// fast and must not block.
type Handler func(ctx context.Context, n Notification)

type subscription struct {
	pattern string
	handler Handler
}

// Bus dispatches notifications to pattern subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscription
	nextID int
	logger *slog.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[int]*subscription),
		logger: logger,
	}
}

// Subscribe registers a handler for topics matching the glob pattern
// (e.g. "payment.*", "*"). It returns an unsubscribe function; calling it
// more than once is harmless.
func (b *Bus) Subscribe(pattern string, h Handler) func() {
	b.mu.Lock()
	sid := b.nextID
	b.nextID++
	b.subs[sid] = &subscription{pattern: pattern, handler: h}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, sid)
		b.mu.Unlock()
	}
}

// Dispatch delivers a notification to every matching subscriber and returns
// how many handlers ran. A panicking handler is recovered and logged; it
// never takes down the publisher or the other subscribers.
func (b *Bus) Dispatch(ctx context.Context, n Notification) int {
	b.mu.RLock()
	matched := make([]Handler, 0, len(b.subs))
	for _, sub := range b.subs {
		if topic.Match(sub.pattern, n.Topic) {
			matched = append(matched, sub.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range matched {
		b.invoke(ctx, h, n)
	}
	return len(matched)
}

func (b *Bus) invoke(ctx context.Context, h Handler, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.ErrorContext(ctx, "subscriber handler panicked",
				"topic", n.Topic, "envelope_id", n.EnvelopeID, "panic", r)
		}
	}()
	h(ctx, n)
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
