package dlq

import (
	"context"
	"time"

	"github.com/revred/smartpay-notify/id"
)

// Store defines the persistence contract for the dead letter queue.
type Store interface {
	// Push adds an entry to the DLQ.
	Push(ctx context.Context, entry *Entry) error

	// GetDLQ returns an entry by ID.
	GetDLQ(ctx context.Context, dlqID id.ID) (*Entry, error)

	// ListDLQ returns entries matching the options, newest first.
	ListDLQ(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// Replay re-enqueues the entry's envelope as fresh pending work with a
	// zeroed attempt budget and stamps ReplayedAt.
	Replay(ctx context.Context, dlqID id.ID) error

	// ReplayBulk replays every unreplayed entry that failed within
	// [from, to] and returns the count.
	ReplayBulk(ctx context.Context, from, to time.Time) (int64, error)

	// Purge removes entries that failed before the given time and returns
	// the count removed.
	Purge(ctx context.Context, before time.Time) (int64, error)

	// CountDLQ returns the total number of entries.
	CountDLQ(ctx context.Context) (int64, error)
}
