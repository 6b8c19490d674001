package topic

import "encoding/json"

// Definition is the canonical description of a notification topic.
// Topics are registered at boot (or dynamically) and name the events the
// platform emits, e.g. "payment.intent.created" or "fx.quote.expired".
type Definition struct {
	// Name is the dot-separated topic name.
	// Convention: "<resource>.<action>" — e.g. "payment.intent.created".
	Name string `json:"name"`

	// Description is a human-readable explanation of when this topic fires.
	Description string `json:"description"`

	// Group is an optional category for organizing topics in docs.
	Group string `json:"group,omitempty"`

	// Schema is an optional JSON Schema (draft-07) describing the payload shape.
	// When set, Hub.Publish validates the payload against this schema.
	Schema json.RawMessage `json:"schema,omitempty"`

	// SchemaVersion tracks changes to the Schema itself.
	SchemaVersion string `json:"schema_version,omitempty"`

	// Version is the API version of this topic.
	// Convention: date-based, e.g. "2025-01-01".
	Version string `json:"version"`

	// Example is an optional example payload for documentation and testing.
	Example json.RawMessage `json:"example,omitempty"`
}
