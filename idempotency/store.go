// Package idempotency deduplicates publishes. A tenant retrying a publish
// call with the same idempotency key within the TTL gets the original
// envelope back instead of a duplicate delivery.
package idempotency

import (
	"context"
	"time"

	"github.com/revred/smartpay-notify/id"
)

// DefaultTTL is how long a key blocks duplicates when the caller does not
// configure a TTL.
const DefaultTTL = 24 * time.Hour

// Store defines the persistence contract for idempotency keys. Keys are
// scoped per tenant: two tenants may use the same key independently.
type Store interface {
	// TryAdd claims (tenantID, key) for the given envelope. It returns
	// (id.Nil, true) when the key was free and is now claimed, or the
	// previously claimed envelope ID and false when the key is already
	// held and unexpired. The claim must be atomic under concurrent
	// publishes.
	TryAdd(ctx context.Context, tenantID, key string, envID id.ID, ttl time.Duration) (id.ID, bool, error)
}
