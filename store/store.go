// Package store defines the composite Store interface backing botrelay.
//
// Each subsystem declares its own store contract; the aggregate Store
// composes them with lifecycle methods shared by every backend.
package store

import (
	"context"

	"github.com/xraph/botrelay/bot"
)

// Store is the aggregate persistence interface.
type Store interface {
	bot.Store

	// Migrate creates tables, collections or indexes.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}
