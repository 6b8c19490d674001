package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	notify "github.com/revred/smartpay-notify"
	"github.com/revred/smartpay-notify/delivery"
	"github.com/revred/smartpay-notify/dlq"
	"github.com/revred/smartpay-notify/id"
	"github.com/revred/smartpay-notify/internal/entity"
)

// Push adds a permanently failed envelope to the DLQ.
func (s *Store) Push(ctx context.Context, entry *dlq.Entry) error {
	if err := s.setJSON(ctx, dlqKey(entry.ID.String()), entry); err != nil {
		return err
	}
	return s.client.ZAdd(ctx, keyDLQIndex, redis.Z{
		Score:  pendingScore(entry.FailedAt),
		Member: entry.ID.String(),
	}).Err()
}

// GetDLQ returns a DLQ entry by ID.
func (s *Store) GetDLQ(ctx context.Context, dlqID id.ID) (*dlq.Entry, error) {
	var e dlq.Entry
	if err := s.getJSON(ctx, dlqKey(dlqID.String()), &e); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notify.ErrDLQNotFound
		}
		return nil, err
	}
	return &e, nil
}

// ListDLQ returns DLQ entries, optionally filtered, newest first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	min, max := "-inf", "+inf"
	if opts.From != nil {
		min = strconv.FormatFloat(pendingScore(*opts.From), 'f', 0, 64)
	}
	if opts.To != nil {
		max = strconv.FormatFloat(pendingScore(*opts.To), 'f', 0, 64)
	}

	ids, err := s.client.ZRevRangeByScore(ctx, keyDLQIndex, &redis.ZRangeBy{
		Min: min,
		Max: max,
	}).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*dlq.Entry, 0, len(ids))
	for _, entryID := range ids {
		var e dlq.Entry
		if err := s.getJSON(ctx, dlqKey(entryID), &e); err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		if opts.TenantID != "" && e.TenantID != opts.TenantID {
			continue
		}
		if opts.Topic != "" && e.Topic != opts.Topic {
			continue
		}
		if opts.EndpointID != nil && e.EndpointID.String() != opts.EndpointID.String() {
			continue
		}
		result = append(result, &e)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// replayEntry stamps the entry and enqueues a fresh bound envelope built
// from the captured payload.
func (s *Store) replayEntry(ctx context.Context, e *dlq.Entry) error {
	now := time.Now().UTC()
	e.ReplayedAt = &now
	if err := s.setJSON(ctx, dlqKey(e.ID.String()), e); err != nil {
		return err
	}

	env := &delivery.Envelope{
		Entity:        entity.New(),
		ID:            id.NewEnvelopeID(),
		TenantID:      e.TenantID,
		Topic:         e.Topic,
		Payload:       e.Payload,
		EndpointID:    e.EndpointID,
		State:         delivery.StatePending,
		MaxAttempts:   delivery.DefaultMaxAttempts,
		NextAttemptAt: now,
	}
	return s.putEnvelope(ctx, env)
}

// Replay re-enqueues a DLQ entry's envelope as fresh pending work.
func (s *Store) Replay(ctx context.Context, dlqID id.ID) error {
	e, err := s.GetDLQ(ctx, dlqID)
	if err != nil {
		return err
	}
	return s.replayEntry(ctx, e)
}

// ReplayBulk replays all unreplayed DLQ entries in a time window.
func (s *Store) ReplayBulk(ctx context.Context, from, to time.Time) (int64, error) {
	entries, err := s.ListDLQ(ctx, dlq.ListOpts{From: &from, To: &to})
	if err != nil {
		return 0, err
	}

	var count int64
	for _, e := range entries {
		if e.ReplayedAt != nil {
			continue
		}
		if err := s.replayEntry(ctx, e); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// Purge deletes DLQ entries that failed before a threshold.
func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	max := strconv.FormatFloat(pendingScore(before), 'f', 0, 64)
	ids, err := s.client.ZRangeByScore(ctx, keyDLQIndex, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + max,
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.client.TxPipeline()
	for _, entryID := range ids {
		pipe.Del(ctx, dlqKey(entryID))
		pipe.ZRem(ctx, keyDLQIndex, entryID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}

// CountDLQ returns the total number of DLQ entries.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	return s.client.ZCard(ctx, keyDLQIndex).Result()
}
