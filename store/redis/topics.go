package redis

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	notify "github.com/revred/smartpay-notify"
	"github.com/revred/smartpay-notify/topic"
)

// RegisterTopic creates or updates a topic definition (upsert by name).
func (s *Store) RegisterTopic(ctx context.Context, t *topic.Topic) error {
	var existing topic.Topic
	err := s.getJSON(ctx, topicKey(t.Definition.Name), &existing)
	switch {
	case err == nil:
		// Upsert keeps the original identity and creation time.
		t.ID = existing.ID
		t.CreatedAt = existing.CreatedAt
		t.UpdatedAt = time.Now().UTC()
	case errors.Is(err, redis.Nil):
	default:
		return err
	}

	if err := s.setJSON(ctx, topicKey(t.Definition.Name), t); err != nil {
		return err
	}
	return s.client.SAdd(ctx, keyTopics, t.Definition.Name).Err()
}

// GetTopic returns a topic by name.
func (s *Store) GetTopic(ctx context.Context, name string) (*topic.Topic, error) {
	var t topic.Topic
	if err := s.getJSON(ctx, topicKey(name), &t); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notify.ErrTopicNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ListTopics returns registered topics, optionally filtered.
func (s *Store) ListTopics(ctx context.Context, opts topic.ListOpts) ([]*topic.Topic, error) {
	names, err := s.client.SMembers(ctx, keyTopics).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*topic.Topic, 0, len(names))
	for _, name := range names {
		t, err := s.GetTopic(ctx, name)
		if err != nil {
			if errors.Is(err, notify.ErrTopicNotFound) {
				continue
			}
			return nil, err
		}
		if !opts.IncludeDeprecated && t.IsDeprecated {
			continue
		}
		if opts.Group != "" && t.Definition.Group != opts.Group {
			continue
		}
		result = append(result, t)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Definition.Name < result[j].Definition.Name
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// DeprecateTopic soft-deletes a topic.
func (s *Store) DeprecateTopic(ctx context.Context, name string) error {
	t, err := s.GetTopic(ctx, name)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	t.IsDeprecated = true
	t.DeprecatedAt = &now
	t.UpdatedAt = now
	return s.setJSON(ctx, topicKey(name), t)
}

func applyPagination[T any](items []*T, offset, limit int) []*T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
