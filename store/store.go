// Package store defines the composite Store interface for all notify
// persistence.
//
// Each subsystem defines its own store interface; the aggregate Store
// composes them all, so a backend implements every subsystem in one type
// and the Hub wires it everywhere.
package store

import (
	"context"

	"github.com/revred/smartpay-notify/delivery"
	"github.com/revred/smartpay-notify/dlq"
	"github.com/revred/smartpay-notify/endpoint"
	"github.com/revred/smartpay-notify/idempotency"
	"github.com/revred/smartpay-notify/topic"
)

// Store is the aggregate persistence interface.
type Store interface {
	topic.Store
	endpoint.Store
	delivery.Outbox
	dlq.Store
	idempotency.Store

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}
