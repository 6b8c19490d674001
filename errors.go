package notify

import "errors"

// Sentinel errors returned by notify operations.
var (
	// ErrNoStore is returned when a Hub is created without a store.
	ErrNoStore = errors.New("notify: store is required")

	// ErrTenantRequired is returned when Publish is called with an empty tenant ID.
	ErrTenantRequired = errors.New("notify: tenant ID is required")

	// ErrTopicNotFound is returned when a topic is not registered in the catalog.
	ErrTopicNotFound = errors.New("notify: topic not found")

	// ErrTopicDeprecated is returned when publishing to a deprecated topic.
	ErrTopicDeprecated = errors.New("notify: topic is deprecated")

	// ErrPayloadValidationFailed is returned when a payload fails JSON Schema validation.
	ErrPayloadValidationFailed = errors.New("notify: payload validation failed")

	// ErrEndpointNotFound is returned when an endpoint cannot be found.
	ErrEndpointNotFound = errors.New("notify: endpoint not found")

	// ErrEnvelopeNotFound is returned when an envelope cannot be found.
	ErrEnvelopeNotFound = errors.New("notify: envelope not found")

	// ErrDLQNotFound is returned when a DLQ entry cannot be found.
	ErrDLQNotFound = errors.New("notify: dlq entry not found")

	// ErrStoreClosed is returned when a store operation is attempted after Close.
	ErrStoreClosed = errors.New("notify: store is closed")
)
