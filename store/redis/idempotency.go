package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/revred/smartpay-notify/id"
)

// TryAdd claims (tenantID, key) with SET NX PX, which gives atomicity and
// TTL expiry for free. On conflict the stored value is the winning
// envelope's ID.
func (s *Store) TryAdd(ctx context.Context, tenantID, key string, envID id.ID, ttl time.Duration) (id.ID, bool, error) {
	claimed, err := s.client.SetNX(ctx, idemKey(tenantID, key), envID.String(), ttl).Result()
	if err != nil {
		return id.Nil, false, err
	}
	if claimed {
		return id.Nil, true, nil
	}

	prev, err := s.client.Get(ctx, idemKey(tenantID, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// The claim expired between SetNX and Get. Claim it now.
			return s.TryAdd(ctx, tenantID, key, envID, ttl)
		}
		return id.Nil, false, err
	}

	prevID, err := id.ParseEnvelopeID(prev)
	if err != nil {
		return id.Nil, false, err
	}
	return prevID, false, nil
}
