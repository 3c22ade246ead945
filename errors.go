package botrelay

import (
	"errors"

	"github.com/xraph/botrelay/bot"
)

// Sentinel errors returned by Relay operations.
var (
	// ErrNoStore is returned when a Relay is created without a store.
	ErrNoStore = errors.New("botrelay: store is required")

	// ErrNoClient is returned when a Relay is created without a webhook client.
	ErrNoClient = errors.New("botrelay: webhook client is required")

	// ErrNoWebhookDomain is returned when WebhookDomain is empty.
	ErrNoWebhookDomain = errors.New("botrelay: webhook domain is required")

	// ErrNotFound is returned when a bot cannot be found.
	ErrNotFound = bot.ErrNotFound

	// ErrUsernameTaken is returned when another bot already uses the username.
	ErrUsernameTaken = bot.ErrUsernameTaken

	// ErrStoreClosed is returned when a store operation is attempted after the store is closed.
	ErrStoreClosed = bot.ErrStoreClosed
)
