// Package endpoint manages webhook delivery targets: the endpoint entity, its
// persistence contract, a management service, and a config-driven registry
// loader for static setups.
package endpoint

import (
	"github.com/revred/smartpay-notify/id"
	"github.com/revred/smartpay-notify/internal/entity"
)

// Endpoint represents a webhook delivery target registered by a tenant.
type Endpoint struct {
	entity.Entity

	// ID is the unique TypeID for this endpoint.
	ID id.ID `json:"id"`

	// TenantID identifies the tenant that owns this endpoint.
	TenantID string `json:"tenant_id"`

	// Name is a stable human-readable identifier, unique per tenant.
	// It appears in logs and DLQ entries instead of the URL.
	Name string `json:"name"`

	// URL is the webhook delivery URL.
	URL string `json:"url"`

	// Description is a human-readable description of this endpoint.
	Description string `json:"description,omitempty"`

	// Secret is the HMAC signing secret for this endpoint. Never serialized.
	Secret string `json:"-"`

	// Topics are glob patterns for topic subscriptions.
	Topics []string `json:"topics"`

	// Headers are custom HTTP headers sent with each delivery.
	Headers map[string]string `json:"headers,omitempty"`

	// Active indicates whether the endpoint receives deliveries.
	// Inactive endpoints are skipped, never deleted, by the delivery path.
	Active bool `json:"active"`

	// RateLimit is the maximum deliveries per second. 0 means unlimited.
	RateLimit int `json:"rate_limit"`

	// Metadata holds user-defined key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}
