// Package redis provides a Redis-backed Store implementation for
// multi-process deployments: publishers and the delivery worker share the
// outbox through one Redis instance.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	notifystore "github.com/revred/smartpay-notify/store"
)

// compile-time interface check.
var _ notifystore.Store = (*Store)(nil)

// lockTTL bounds how long a dequeued envelope stays invisible if its worker
// dies before reporting an outcome. After expiry the envelope is dequeued
// again, which is the at-least-once contract.
const lockTTL = 2 * time.Minute

// Options configures the Redis store.
type Options struct {
	// Addr is the Redis server address (host:port).
	Addr string

	// Password is the optional server password.
	Password string

	// DB is the Redis database number.
	DB int
}

// Store is a Redis-backed implementation of store.Store.
type Store struct {
	client redis.UniversalClient
}

// New connects to Redis and returns a store.
func New(opts Options) *Store {
	return &Store{
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
	}
}

// NewWithClient wraps an existing client, e.g. a cluster client or a test
// fixture.
func NewWithClient(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// getJSON loads and unmarshals one key into v. Returns redis.Nil when the
// key is absent.
func (s *Store) getJSON(ctx context.Context, key string, v any) error {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("redis: unmarshal %s: %w", key, err)
	}
	return nil
}

// setJSON marshals and stores v under key.
func (s *Store) setJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis: marshal %s: %w", key, err)
	}
	return s.client.Set(ctx, key, raw, 0).Err()
}
