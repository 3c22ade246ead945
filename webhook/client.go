// Package webhook owns this process's view of which bots have a live
// provider-side webhook and mediates every setWebhook/deleteWebhook call.
package webhook

import (
	"context"
	"errors"

	"github.com/xraph/botrelay/bot"
)

// Client performs the provider calls for one bot credential. Errors are
// opaque failures; callers never retry automatically.
type Client interface {
	// SetWebhook points the bot's webhook at url. secretToken is echoed by
	// the provider in a header on every callback; empty disables it.
	SetWebhook(ctx context.Context, token, url, secretToken string) error

	// DeleteWebhook removes the bot's webhook.
	DeleteWebhook(ctx context.Context, token string) error
}

// Directory is the read side of the bot store the coordinator depends on.
type Directory interface {
	// FindEnabled returns every enabled bot.
	FindEnabled(ctx context.Context) ([]*bot.Bot, error)

	// FindByUsername returns bot.ErrNotFound when the bot does not exist.
	FindByUsername(ctx context.Context, username string) (*bot.Bot, error)
}

type storeDirectory struct {
	store bot.Store
}

// NewDirectory adapts a bot.Store to a Directory. Reads bypass the cache
// so the coordinator always sees the current credential.
func NewDirectory(store bot.Store) Directory {
	return storeDirectory{store: store}
}

func (d storeDirectory) FindEnabled(ctx context.Context) ([]*bot.Bot, error) {
	return d.store.ListBots(ctx, bot.EnabledOnly())
}

func (d storeDirectory) FindByUsername(ctx context.Context, username string) (*bot.Bot, error) {
	return d.store.GetBotByUsername(ctx, username)
}

func isNotFound(err error) bool {
	return errors.Is(err, bot.ErrNotFound)
}
