package topic

import (
	"time"

	"github.com/revred/smartpay-notify/id"
	"github.com/revred/smartpay-notify/internal/entity"
)

// Topic is the stored entity for a registered notification topic.
// It wraps Definition with identity and deprecation state.
type Topic struct {
	entity.Entity

	// ID is the unique TypeID for this topic.
	ID id.ID `json:"id"`

	// Definition contains the topic descriptor.
	Definition Definition `json:"definition"`

	// IsDeprecated indicates whether this topic has been soft-deleted.
	IsDeprecated bool `json:"deprecated"`

	// DeprecatedAt is when the topic was deprecated.
	DeprecatedAt *time.Time `json:"deprecated_at,omitempty"`

	// Metadata holds user-defined key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ListOpts configures filtering and pagination for topic listing.
type ListOpts struct {
	Offset            int
	Limit             int
	Group             string
	IncludeDeprecated bool
}
