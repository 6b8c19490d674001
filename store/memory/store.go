// Package memory provides an in-memory Store implementation for unit tests
// and single-process setups.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	notify "github.com/revred/smartpay-notify"
	"github.com/revred/smartpay-notify/delivery"
	"github.com/revred/smartpay-notify/dlq"
	"github.com/revred/smartpay-notify/endpoint"
	"github.com/revred/smartpay-notify/id"
	notifystore "github.com/revred/smartpay-notify/store"
	"github.com/revred/smartpay-notify/topic"
)

// compile-time interface check.
var _ notifystore.Store = (*Store)(nil)

type idemEntry struct {
	envID     id.ID
	expiresAt time.Time
}

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	topics     map[string]*topic.Topic       // keyed by name
	topicsByID map[string]*topic.Topic       // keyed by ID string
	endpoints  map[string]*endpoint.Endpoint // keyed by ID string
	envelopes  map[string]*delivery.Envelope // keyed by ID string
	locked     map[string]bool               // simulates SKIP LOCKED
	dlqEntries map[string]*dlq.Entry         // keyed by ID string
	idemKeys   map[string]idemEntry          // keyed by tenant + NUL + key

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		topics:     make(map[string]*topic.Topic),
		topicsByID: make(map[string]*topic.Topic),
		endpoints:  make(map[string]*endpoint.Endpoint),
		envelopes:  make(map[string]*delivery.Envelope),
		locked:     make(map[string]bool),
		dlqEntries: make(map[string]*dlq.Entry),
		idemKeys:   make(map[string]idemEntry),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Ping reports whether the store is usable.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return notify.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// topic.Store
// ──────────────────────────────────────────────────

// RegisterTopic creates or updates a topic definition (upsert by name).
func (s *Store) RegisterTopic(_ context.Context, t *topic.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.topics[t.Definition.Name]; ok {
		existing.Definition = t.Definition
		existing.UpdatedAt = time.Now().UTC()
		existing.Metadata = t.Metadata
		t.ID = existing.ID
		return nil
	}

	s.topics[t.Definition.Name] = t
	s.topicsByID[t.ID.String()] = t
	return nil
}

// GetTopic returns a topic by name.
func (s *Store) GetTopic(_ context.Context, name string) (*topic.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.topics[name]
	if !ok {
		return nil, notify.ErrTopicNotFound
	}
	return t, nil
}

// ListTopics returns registered topics, optionally filtered.
func (s *Store) ListTopics(_ context.Context, opts topic.ListOpts) ([]*topic.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*topic.Topic, 0, len(s.topics))
	for _, t := range s.topics {
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
func (s *Store) DeprecateTopic(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.topics[name]
	if !ok {
		return notify.ErrTopicNotFound
	}

	now := time.Now().UTC()
	t.IsDeprecated = true
	t.DeprecatedAt = &now
	t.UpdatedAt = now
	return nil
}

// ──────────────────────────────────────────────────
// endpoint.Store
// ──────────────────────────────────────────────────

// CreateEndpoint persists a new endpoint.
func (s *Store) CreateEndpoint(_ context.Context, ep *endpoint.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.endpoints[ep.ID.String()] = ep
	return nil
}

// GetEndpoint returns an endpoint by ID.
func (s *Store) GetEndpoint(_ context.Context, epID id.ID) (*endpoint.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ep, ok := s.endpoints[epID.String()]
	if !ok {
		return nil, notify.ErrEndpointNotFound
	}
	return ep, nil
}

// UpdateEndpoint modifies an existing endpoint.
func (s *Store) UpdateEndpoint(_ context.Context, ep *endpoint.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.endpoints[ep.ID.String()]; !ok {
		return notify.ErrEndpointNotFound
	}
	ep.UpdatedAt = time.Now().UTC()
	s.endpoints[ep.ID.String()] = ep
	return nil
}

// DeleteEndpoint removes an endpoint.
func (s *Store) DeleteEndpoint(_ context.Context, epID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.endpoints[epID.String()]; !ok {
		return notify.ErrEndpointNotFound
	}
	delete(s.endpoints, epID.String())
	return nil
}

// ListEndpoints returns endpoints for a tenant, optionally filtered.
func (s *Store) ListEndpoints(_ context.Context, tenantID string, opts endpoint.ListOpts) ([]*endpoint.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*endpoint.Endpoint, 0, len(s.endpoints))
	for _, ep := range s.endpoints {
		if ep.TenantID != tenantID {
			continue
		}
		if opts.Active != nil && ep.Active != *opts.Active {
			continue
		}
		result = append(result, ep)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// Resolve finds all active endpoints whose topic patterns match, for a tenant.
func (s *Store) Resolve(_ context.Context, tenantID, topicName string) ([]*endpoint.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*endpoint.Endpoint
	for _, ep := range s.endpoints {
		if ep.TenantID != tenantID || !ep.Active {
			continue
		}
		for _, pattern := range ep.Topics {
			if topic.Match(pattern, topicName) {
				result = append(result, ep)
				break
			}
		}
	}

	// Stable order so fan-out binding is deterministic.
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// SetActive activates or deactivates an endpoint.
func (s *Store) SetActive(_ context.Context, epID id.ID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ep, ok := s.endpoints[epID.String()]
	if !ok {
		return notify.ErrEndpointNotFound
	}
	ep.Active = active
	ep.UpdatedAt = time.Now().UTC()
	return nil
}

// ──────────────────────────────────────────────────
// delivery.Outbox
// ──────────────────────────────────────────────────

// Enqueue adds a pending envelope. The store keeps its own copy so the
// caller's struct is never shared with concurrent dequeuers.
func (s *Store) Enqueue(_ context.Context, env *delivery.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.envelopes[env.ID.String()] = copyEnvelope(env)
	return nil
}

// EnqueueBatch adds multiple envelopes atomically.
func (s *Store) EnqueueBatch(_ context.Context, envs []*delivery.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, env := range envs {
		s.envelopes[env.ID.String()] = copyEnvelope(env)
	}
	return nil
}

func copyEnvelope(env *delivery.Envelope) *delivery.Envelope {
	cp := *env
	return &cp
}

// Dequeue fetches due pending envelopes, oldest NextAttemptAt first. Locks
// each returned envelope until UpdateEnvelope; returns copies so callers can
// mutate without holding the store lock.
func (s *Store) Dequeue(_ context.Context, limit int) ([]*delivery.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	candidates := make([]*delivery.Envelope, 0, len(s.envelopes))

	for _, env := range s.envelopes {
		if env.State != delivery.StatePending {
			continue
		}
		if env.NextAttemptAt.After(now) {
			continue
		}
		if s.locked[env.ID.String()] {
			continue
		}
		candidates = append(candidates, env)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].NextAttemptAt.Before(candidates[j].NextAttemptAt)
	})

	if limit > 0 && limit < len(candidates) {
		candidates = candidates[:limit]
	}

	result := make([]*delivery.Envelope, 0, len(candidates))
	for _, env := range candidates {
		s.locked[env.ID.String()] = true
		result = append(result, copyEnvelope(env))
	}

	return result, nil
}

// UpdateEnvelope records an attempt outcome and releases the dequeue lock.
func (s *Store) UpdateEnvelope(_ context.Context, env *delivery.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.envelopes[env.ID.String()]; !ok {
		return notify.ErrEnvelopeNotFound
	}
	env.UpdatedAt = time.Now().UTC()
	s.envelopes[env.ID.String()] = copyEnvelope(env)
	delete(s.locked, env.ID.String())
	return nil
}

// GetEnvelope returns a copy of the envelope by ID.
func (s *Store) GetEnvelope(_ context.Context, envID id.ID) (*delivery.Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	env, ok := s.envelopes[envID.String()]
	if !ok {
		return nil, notify.ErrEnvelopeNotFound
	}
	return copyEnvelope(env), nil
}

// ListByEndpoint returns delivery history for an endpoint, newest first.
func (s *Store) ListByEndpoint(_ context.Context, epID id.ID, opts delivery.ListOpts) ([]*delivery.Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*delivery.Envelope, 0, len(s.envelopes))
	for _, env := range s.envelopes {
		if env.EndpointID.String() != epID.String() {
			continue
		}
		if opts.State != nil && env.State != *opts.State {
			continue
		}
		result = append(result, env)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// CountPending returns the number of envelopes awaiting attempt.
func (s *Store) CountPending(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, env := range s.envelopes {
		if env.State == delivery.StatePending {
			count++
		}
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// dlq.Store
// ──────────────────────────────────────────────────

// Push adds a permanently failed envelope to the DLQ.
func (s *Store) Push(_ context.Context, entry *dlq.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dlqEntries[entry.ID.String()] = entry
	return nil
}

// ListDLQ returns DLQ entries, optionally filtered, newest first.
func (s *Store) ListDLQ(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*dlq.Entry, 0, len(s.dlqEntries))
	for _, e := range s.dlqEntries {
		if opts.TenantID != "" && e.TenantID != opts.TenantID {
			continue
		}
		if opts.Topic != "" && e.Topic != opts.Topic {
			continue
		}
		if opts.EndpointID != nil && e.EndpointID.String() != opts.EndpointID.String() {
			continue
		}
		if opts.From != nil && e.FailedAt.Before(*opts.From) {
			continue
		}
		if opts.To != nil && e.FailedAt.After(*opts.To) {
			continue
		}
		result = append(result, e)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].FailedAt.After(result[j].FailedAt)
	})

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// GetDLQ returns a DLQ entry by ID.
func (s *Store) GetDLQ(_ context.Context, dlqID id.ID) (*dlq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.dlqEntries[dlqID.String()]
	if !ok {
		return nil, notify.ErrDLQNotFound
	}
	return e, nil
}

// Replay re-enqueues a DLQ entry's envelope as fresh pending work.
func (s *Store) Replay(_ context.Context, dlqID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.dlqEntries[dlqID.String()]
	if !ok {
		return notify.ErrDLQNotFound
	}

	s.replayLocked(e)
	return nil
}

// ReplayBulk replays all unreplayed DLQ entries in a time window.
func (s *Store) ReplayBulk(_ context.Context, from, to time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, e := range s.dlqEntries {
		if e.FailedAt.Before(from) || e.FailedAt.After(to) {
			continue
		}
		if e.ReplayedAt != nil {
			continue
		}
		s.replayLocked(e)
		count++
	}
	return count, nil
}

// replayLocked stamps the entry and enqueues a fresh bound envelope built
// from the captured payload. Caller holds s.mu.
func (s *Store) replayLocked(e *dlq.Entry) {
	now := time.Now().UTC()
	e.ReplayedAt = &now

	env := &delivery.Envelope{
		Entity:        notify.NewEntity(),
		ID:            id.NewEnvelopeID(),
		TenantID:      e.TenantID,
		Topic:         e.Topic,
		Payload:       e.Payload,
		EndpointID:    e.EndpointID,
		State:         delivery.StatePending,
		MaxAttempts:   delivery.DefaultMaxAttempts,
		NextAttemptAt: now,
	}
	s.envelopes[env.ID.String()] = env
}

// Purge deletes DLQ entries that failed before a threshold.
func (s *Store) Purge(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for k, e := range s.dlqEntries {
		if e.FailedAt.Before(before) {
			delete(s.dlqEntries, k)
			count++
		}
	}
	return count, nil
}

// CountDLQ returns the total number of DLQ entries.
func (s *Store) CountDLQ(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.dlqEntries)), nil
}

// ──────────────────────────────────────────────────
// idempotency.Store
// ──────────────────────────────────────────────────

// TryAdd atomically claims (tenantID, key) for envID. Expiry is lazy: an
// expired claim is treated as free and overwritten; expired keys for other
// tenants are purged opportunistically while the lock is held.
func (s *Store) TryAdd(_ context.Context, tenantID, key string, envID id.ID, ttl time.Duration) (id.ID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for k, e := range s.idemKeys {
		if now.After(e.expiresAt) {
			delete(s.idemKeys, k)
		}
	}

	k := tenantID + "\x00" + key
	if e, ok := s.idemKeys[k]; ok {
		return e.envID, false, nil
	}

	s.idemKeys[k] = idemEntry{envID: envID, expiresAt: now.Add(ttl)}
	return id.Nil, true, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func applyPagination[T any](items []*T, offset, limit int) []*T {
	if offset > 0 && offset < len(items) {
		items = items[offset:]
	} else if offset >= len(items) && offset > 0 {
		return nil
	}

	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	return items
}
