package delivery

import (
	"encoding/json"
	"time"

	"github.com/revred/smartpay-notify/id"
	"github.com/revred/smartpay-notify/internal/entity"
)

// DefaultMaxAttempts is the delivery attempt budget applied when a caller
// does not configure one.
const DefaultMaxAttempts = 5

// State represents the current state of an envelope.
type State string

const (
	// StatePending indicates the envelope is awaiting a delivery attempt.
	StatePending State = "pending"

	// StateDelivered indicates the envelope was successfully delivered.
	StateDelivered State = "delivered"

	// StateDead indicates the envelope exhausted its retry budget and was
	// moved to the dead letter queue.
	StateDead State = "dead"
)

// Envelope is one unit of outbound event data plus delivery metadata.
//
// A freshly published envelope is unbound (EndpointID is Nil): the worker
// resolves the tenant's active endpoints on first dequeue and fans out. After
// fan-out every envelope is bound to exactly one endpoint, so a retry of one
// slow destination never blocks delivery to another.
type Envelope struct {
	entity.Entity

	// ID is the unique TypeID for this envelope.
	ID id.ID `json:"id"`

	// TenantID identifies the tenant that published the event.
	TenantID string `json:"tenant_id"`

	// Topic is the dot-separated topic name (e.g. "payment.intent.created").
	Topic string `json:"topic"`

	// Payload is the opaque serialized event document. The delivery path
	// never interprets its contents.
	Payload json.RawMessage `json:"payload"`

	// EndpointID is the destination, bound per delivery attempt.
	// Nil until the worker fans the envelope out.
	EndpointID id.ID `json:"endpoint_id,omitempty"`

	// State is the current envelope state.
	State State `json:"state"`

	// Attempt counts retries: 0 on first delivery, incremented each time the
	// envelope is re-enqueued after a failure. Monotonically non-decreasing.
	Attempt int `json:"attempt"`

	// MaxAttempts is the attempt budget before the envelope goes dead.
	MaxAttempts int `json:"max_attempts"`

	// NextAttemptAt is when the next delivery attempt should occur.
	NextAttemptAt time.Time `json:"next_attempt_at"`

	// LastError is the error message from the most recent failed attempt.
	LastError string `json:"last_error,omitempty"`

	// LastStatusCode is the HTTP status code from the most recent attempt.
	LastStatusCode int `json:"last_status_code,omitempty"`

	// LastLatencyMs is the latency in milliseconds of the most recent attempt.
	LastLatencyMs int `json:"last_latency_ms,omitempty"`

	// CompletedAt is when the envelope reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Bound reports whether the envelope has been bound to a single endpoint.
func (e *Envelope) Bound() bool {
	return !e.EndpointID.IsNil()
}

// CloneFor returns a copy of the envelope bound to the given endpoint, with a
// fresh identity and a clean attempt history. Used during fan-out.
func (e *Envelope) CloneFor(epID id.ID) *Envelope {
	c := *e
	c.Entity = entity.New()
	c.ID = id.NewEnvelopeID()
	c.EndpointID = epID
	c.State = StatePending
	c.Attempt = 0
	c.LastError = ""
	c.LastStatusCode = 0
	c.LastLatencyMs = 0
	c.CompletedAt = nil
	return &c
}

// ListOpts configures filtering and pagination for envelope listing.
type ListOpts struct {
	Offset int
	Limit  int
	State  *State
}
