// Package topic provides the registered-topic catalog: topic definitions,
// glob-style subscription matching, and optional JSON Schema payload
// validation.
package topic

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/revred/smartpay-notify/id"
	"github.com/revred/smartpay-notify/internal/entity"
)

// Registry is the in-memory cached service for managing topics.
type Registry struct {
	store    Store
	cache    map[string]*Topic
	cacheTTL time.Duration
	lastLoad time.Time
	mu       sync.RWMutex
	logger   *slog.Logger
}

// Config configures the registry.
type Config struct {
	CacheTTL time.Duration
}

// NewRegistry creates a new Registry backed by the given store.
func NewRegistry(store Store, cfg Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:    store,
		cache:    make(map[string]*Topic),
		cacheTTL: cfg.CacheTTL,
		logger:   logger,
	}
}

// RegisterOption configures Register behavior.
type RegisterOption func(*registerOptions)

type registerOptions struct {
	metadata map[string]string
}

// WithMetadata sets metadata on a registered topic.
func WithMetadata(m map[string]string) RegisterOption {
	return func(o *registerOptions) { o.metadata = m }
}

// Register registers or updates a topic definition.
func (r *Registry) Register(ctx context.Context, def Definition, opts ...RegisterOption) (*Topic, error) {
	ro := registerOptions{}
	for _, o := range opts {
		o(&ro)
	}

	t := &Topic{
		Entity:     entity.New(),
		ID:         id.NewTopicID(),
		Definition: def,
		Metadata:   ro.metadata,
	}

	if err := r.store.RegisterTopic(ctx, t); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[def.Name] = t
	r.mu.Unlock()

	return t, nil
}

// Get returns a topic by name, using the cache when available.
func (r *Registry) Get(ctx context.Context, name string) (*Topic, error) {
	r.mu.RLock()
	if t, ok := r.cache[name]; ok && !r.cacheExpired() {
		r.mu.RUnlock()
		return t, nil
	}
	r.mu.RUnlock()

	t, err := r.store.GetTopic(ctx, name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[name] = t
	r.mu.Unlock()

	return t, nil
}

// List returns all registered topics.
func (r *Registry) List(ctx context.Context, opts ListOpts) ([]*Topic, error) {
	return r.store.ListTopics(ctx, opts)
}

// Deprecate soft-deletes a topic and removes it from cache.
func (r *Registry) Deprecate(ctx context.Context, name string) error {
	if err := r.store.DeprecateTopic(ctx, name); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.cache, name)
	r.mu.Unlock()

	return nil
}

// InvalidateCache clears the in-memory cache, forcing fresh reads from the store.
func (r *Registry) InvalidateCache() {
	r.mu.Lock()
	r.cache = make(map[string]*Topic)
	r.lastLoad = time.Time{}
	r.mu.Unlock()
}

// WarmCache preloads the cache from the store.
func (r *Registry) WarmCache(ctx context.Context) error {
	topics, err := r.store.ListTopics(ctx, ListOpts{IncludeDeprecated: false})
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache = make(map[string]*Topic, len(topics))
	for _, t := range topics {
		r.cache[t.Definition.Name] = t
	}
	r.lastLoad = time.Now()
	return nil
}

// cacheExpired returns true if the cache TTL has elapsed. Callers hold at least RLock.
func (r *Registry) cacheExpired() bool {
	if r.cacheTTL == 0 {
		return false
	}
	return time.Since(r.lastLoad) > r.cacheTTL
}
