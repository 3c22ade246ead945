package botrelay

import (
	"github.com/xraph/botrelay/bot"
	"github.com/xraph/botrelay/internal/entity"
)

// Entity is the timestamp pair embedded by persisted records.
type Entity = entity.Entity

// Bot is a Telegram bot served by a Relay.
type Bot = bot.Bot

// Input is the create/update payload for a bot.
type Input = bot.Input
