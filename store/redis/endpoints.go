package redis

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	notify "github.com/revred/smartpay-notify"
	"github.com/revred/smartpay-notify/endpoint"
	"github.com/revred/smartpay-notify/id"
	"github.com/revred/smartpay-notify/topic"
)

// storedEndpoint re-adds the signing secret for persistence. The entity's
// own Secret field is excluded from JSON so it never leaks through an API
// response, but the store must keep it.
type storedEndpoint struct {
	*endpoint.Endpoint
	Secret string `json:"secret"`
}

func (s *Store) putEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	return s.setJSON(ctx, endpointKey(ep.ID.String()), storedEndpoint{Endpoint: ep, Secret: ep.Secret})
}

func (s *Store) loadEndpoint(ctx context.Context, key string) (*endpoint.Endpoint, error) {
	se := storedEndpoint{Endpoint: &endpoint.Endpoint{}}
	if err := s.getJSON(ctx, key, &se); err != nil {
		return nil, err
	}
	se.Endpoint.Secret = se.Secret
	return se.Endpoint, nil
}

// CreateEndpoint persists a new endpoint.
func (s *Store) CreateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	if err := s.putEndpoint(ctx, ep); err != nil {
		return err
	}
	return s.client.SAdd(ctx, tenantEpsKey(ep.TenantID), ep.ID.String()).Err()
}

// GetEndpoint returns an endpoint by ID.
func (s *Store) GetEndpoint(ctx context.Context, epID id.ID) (*endpoint.Endpoint, error) {
	ep, err := s.loadEndpoint(ctx, endpointKey(epID.String()))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notify.ErrEndpointNotFound
		}
		return nil, err
	}
	return ep, nil
}

// UpdateEndpoint modifies an existing endpoint.
func (s *Store) UpdateEndpoint(ctx context.Context, ep *endpoint.Endpoint) error {
	if _, err := s.GetEndpoint(ctx, ep.ID); err != nil {
		return err
	}
	ep.UpdatedAt = time.Now().UTC()
	return s.putEndpoint(ctx, ep)
}

// DeleteEndpoint removes an endpoint.
func (s *Store) DeleteEndpoint(ctx context.Context, epID id.ID) error {
	ep, err := s.GetEndpoint(ctx, epID)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, endpointKey(epID.String()))
	pipe.SRem(ctx, tenantEpsKey(ep.TenantID), epID.String())
	_, err = pipe.Exec(ctx)
	return err
}

// tenantEndpoints loads all endpoints owned by a tenant, oldest first.
func (s *Store) tenantEndpoints(ctx context.Context, tenantID string) ([]*endpoint.Endpoint, error) {
	ids, err := s.client.SMembers(ctx, tenantEpsKey(tenantID)).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*endpoint.Endpoint, 0, len(ids))
	for _, epID := range ids {
		ep, err := s.loadEndpoint(ctx, endpointKey(epID))
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		result = append(result, ep)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// ListEndpoints returns endpoints for a tenant, optionally filtered.
func (s *Store) ListEndpoints(ctx context.Context, tenantID string, opts endpoint.ListOpts) ([]*endpoint.Endpoint, error) {
	eps, err := s.tenantEndpoints(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	result := make([]*endpoint.Endpoint, 0, len(eps))
	for _, ep := range eps {
		if opts.Active != nil && ep.Active != *opts.Active {
			continue
		}
		result = append(result, ep)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// Resolve finds all active endpoints whose topic patterns match, for a tenant.
func (s *Store) Resolve(ctx context.Context, tenantID, topicName string) ([]*endpoint.Endpoint, error) {
	eps, err := s.tenantEndpoints(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var result []*endpoint.Endpoint
	for _, ep := range eps {
		if !ep.Active {
			continue
		}
		for _, pattern := range ep.Topics {
			if topic.Match(pattern, topicName) {
				result = append(result, ep)
				break
			}
		}
	}
	return result, nil
}

// SetActive activates or deactivates an endpoint.
func (s *Store) SetActive(ctx context.Context, epID id.ID, active bool) error {
	ep, err := s.GetEndpoint(ctx, epID)
	if err != nil {
		return err
	}
	ep.Active = active
	ep.UpdatedAt = time.Now().UTC()
	return s.putEndpoint(ctx, ep)
}
