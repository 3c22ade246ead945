// Package bot holds the bot record, its persistence contract and the
// mutation path that keeps webhook registration and caches in step with it.
package bot

import (
	"github.com/xraph/botrelay/id"
	"github.com/xraph/botrelay/internal/entity"
)

// Bot is a Telegram bot served by this process.
type Bot struct {
	entity.Entity

	// ID is the bot's TypeID ("bot_...").
	ID id.ID `json:"id"`

	// Username is the Telegram username. Unique; used as the webhook path
	// segment and as the cache key.
	Username string `json:"username"`

	// Token is the Bot API credential. Never serialized.
	Token string `json:"-"`

	// Enabled reports whether inbound updates are processed and a webhook
	// should be registered.
	Enabled bool `json:"enabled"`
}

// Clone returns a shallow copy so callers can mutate without touching
// shared (cached) values.
func (b *Bot) Clone() *Bot {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

// UsernameKey is the cache key under which a bot is stored by username.
func UsernameKey(username string) string { return "username:" + username }

// IDKey is the cache key under which a bot is stored by ID.
func IDKey(botID id.ID) string { return "id:" + botID.String() }
