package topic

import "context"

// Store defines the persistence contract for registered topics.
type Store interface {
	// RegisterTopic creates or updates a topic definition (upsert by name).
	RegisterTopic(ctx context.Context, t *Topic) error

	// GetTopic returns a topic by name.
	GetTopic(ctx context.Context, name string) (*Topic, error)

	// ListTopics returns registered topics, optionally filtered.
	ListTopics(ctx context.Context, opts ListOpts) ([]*Topic, error)

	// DeprecateTopic soft-deletes a topic. Publishing to it is rejected;
	// already-enqueued envelopes are unaffected.
	DeprecateTopic(ctx context.Context, name string) error
}
