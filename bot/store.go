package bot

import (
	"context"

	"github.com/xraph/botrelay/id"
)

// Store defines the persistence contract for bot records.
type Store interface {
	// CreateBot persists a new bot. Returns ErrUsernameTaken on conflict.
	CreateBot(ctx context.Context, b *Bot) error

	// GetBot returns a bot by ID.
	GetBot(ctx context.Context, botID id.ID) (*Bot, error)

	// GetBotByUsername returns a bot by username.
	GetBotByUsername(ctx context.Context, username string) (*Bot, error)

	// UpdateBot replaces a stored bot. Returns ErrUsernameTaken when the
	// new username belongs to another bot.
	UpdateBot(ctx context.Context, b *Bot) error

	// DeleteBot removes a bot.
	DeleteBot(ctx context.Context, botID id.ID) error

	// ListBots returns bots ordered by creation time.
	ListBots(ctx context.Context, opts ListOpts) ([]*Bot, error)

	// CountBots counts bots matching opts.Enabled. Offset and Limit are ignored.
	CountBots(ctx context.Context, opts ListOpts) (int64, error)
}
