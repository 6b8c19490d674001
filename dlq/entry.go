// Package dlq holds envelopes that exhausted their retry budget and the
// operations to inspect and replay them.
package dlq

import (
	"encoding/json"
	"time"

	"github.com/revred/smartpay-notify/id"
	"github.com/revred/smartpay-notify/internal/entity"
)

// Entry represents a permanently failed envelope in the dead letter queue.
// It is self-contained: payload, topic, and destination are captured at
// failure time so a replay works even if the envelope is later purged.
type Entry struct {
	entity.Entity

	// ID is the unique TypeID for this DLQ entry.
	ID id.ID `json:"id"`

	// EnvelopeID references the failed envelope.
	EnvelopeID id.ID `json:"envelope_id"`

	// EndpointID references the target endpoint.
	EndpointID id.ID `json:"endpoint_id"`

	// Topic is the envelope's topic name, kept for filtering.
	Topic string `json:"topic"`

	// TenantID identifies the tenant that published the event.
	TenantID string `json:"tenant_id"`

	// URL is the endpoint URL at the time of failure.
	URL string `json:"url"`

	// Payload is the event document that failed to deliver.
	Payload json.RawMessage `json:"payload"`

	// Error is the error message from the final attempt.
	Error string `json:"error"`

	// AttemptCount is the total number of attempts made.
	AttemptCount int `json:"attempt_count"`

	// LastStatusCode is the HTTP status code from the final attempt.
	LastStatusCode int `json:"last_status_code,omitempty"`

	// ReplayedAt is set when the entry has been replayed.
	ReplayedAt *time.Time `json:"replayed_at,omitempty"`

	// FailedAt is when the envelope permanently failed.
	FailedAt time.Time `json:"failed_at"`
}

// ListOpts configures filtering and pagination for DLQ listing.
type ListOpts struct {
	Offset     int
	Limit      int
	TenantID   string
	Topic      string
	EndpointID *id.ID
	From       *time.Time
	To         *time.Time
}
