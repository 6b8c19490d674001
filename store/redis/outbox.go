package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	notify "github.com/revred/smartpay-notify"
	"github.com/revred/smartpay-notify/delivery"
	"github.com/revred/smartpay-notify/id"
)

func pendingScore(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// putEnvelope writes the envelope document and maintains the pending and
// history indexes in one transaction.
func (s *Store) putEnvelope(ctx context.Context, env *delivery.Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("redis: marshal envelope %s: %w", env.ID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, envelopeKey(env.ID.String()), raw, 0)

	if env.State == delivery.StatePending {
		pipe.ZAdd(ctx, keyPending, redis.Z{
			Score:  pendingScore(env.NextAttemptAt),
			Member: env.ID.String(),
		})
	} else {
		pipe.ZRem(ctx, keyPending, env.ID.String())
	}

	if !env.EndpointID.IsNil() {
		pipe.ZAdd(ctx, historyKey(env.EndpointID.String()), redis.Z{
			Score:  pendingScore(env.CreatedAt),
			Member: env.ID.String(),
		})
	}

	_, err = pipe.Exec(ctx)
	return err
}

// Enqueue adds a pending envelope.
func (s *Store) Enqueue(ctx context.Context, env *delivery.Envelope) error {
	return s.putEnvelope(ctx, env)
}

// EnqueueBatch adds multiple envelopes.
func (s *Store) EnqueueBatch(ctx context.Context, envs []*delivery.Envelope) error {
	for _, env := range envs {
		if err := s.putEnvelope(ctx, env); err != nil {
			return err
		}
	}
	return nil
}

// Dequeue fetches due pending envelopes, oldest NextAttemptAt first. Each
// returned envelope is claimed with a SET NX lock so concurrent workers
// never process the same envelope; the lock expires after lockTTL if the
// worker dies, putting the envelope back in play.
func (s *Store) Dequeue(ctx context.Context, limit int) ([]*delivery.Envelope, error) {
	ids, err := s.client.ZRangeByScore(ctx, keyPending, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatFloat(pendingScore(time.Now()), 'f', 0, 64),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*delivery.Envelope, 0, len(ids))
	for _, envID := range ids {
		claimed, err := s.client.SetNX(ctx, lockKey(envID), "1", lockTTL).Result()
		if err != nil {
			return nil, err
		}
		if !claimed {
			continue
		}

		var env delivery.Envelope
		if err := s.getJSON(ctx, envelopeKey(envID), &env); err != nil {
			if errors.Is(err, redis.Nil) {
				// Document vanished; drop the dangling index entry.
				s.client.ZRem(ctx, keyPending, envID)
				s.client.Del(ctx, lockKey(envID))
				continue
			}
			return nil, err
		}
		result = append(result, &env)
	}

	return result, nil
}

// UpdateEnvelope records an attempt outcome and releases the dequeue lock.
func (s *Store) UpdateEnvelope(ctx context.Context, env *delivery.Envelope) error {
	exists, err := s.client.Exists(ctx, envelopeKey(env.ID.String())).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return notify.ErrEnvelopeNotFound
	}

	env.UpdatedAt = time.Now().UTC()
	if err := s.putEnvelope(ctx, env); err != nil {
		return err
	}
	return s.client.Del(ctx, lockKey(env.ID.String())).Err()
}

// GetEnvelope returns an envelope by ID.
func (s *Store) GetEnvelope(ctx context.Context, envID id.ID) (*delivery.Envelope, error) {
	var env delivery.Envelope
	if err := s.getJSON(ctx, envelopeKey(envID.String()), &env); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notify.ErrEnvelopeNotFound
		}
		return nil, err
	}
	return &env, nil
}

// ListByEndpoint returns delivery history for an endpoint, newest first.
func (s *Store) ListByEndpoint(ctx context.Context, epID id.ID, opts delivery.ListOpts) ([]*delivery.Envelope, error) {
	ids, err := s.client.ZRevRange(ctx, historyKey(epID.String()), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*delivery.Envelope, 0, len(ids))
	for _, envID := range ids {
		var env delivery.Envelope
		if err := s.getJSON(ctx, envelopeKey(envID), &env); err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		if opts.State != nil && env.State != *opts.State {
			continue
		}
		result = append(result, &env)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// CountPending returns the size of the pending index. Locked in-flight
// envelopes still count: they are pending until an outcome is recorded.
func (s *Store) CountPending(ctx context.Context) (int64, error) {
	return s.client.ZCard(ctx, keyPending).Result()
}
