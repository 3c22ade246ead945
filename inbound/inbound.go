// Package inbound turns provider updates into webhook replies.
//
// A reply is returned in the body of the webhook response itself, so a
// bot can answer without holding an outbound connection to the provider.
package inbound

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mymmrac/telego"

	"github.com/xraph/botrelay/bot"
)

// MethodSendMessage is the Bot API method a text Reply invokes.
const MethodSendMessage = "sendMessage"

// Reply is a Bot API method call returned in the webhook response body.
type Reply struct {
	Method string `json:"method"`
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// Handler answers one update for one bot. A nil Reply means no answer.
type Handler interface {
	Handle(ctx context.Context, b *bot.Bot, update *telego.Update) (*Reply, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, b *bot.Bot, update *telego.Update) (*Reply, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, b *bot.Bot, update *telego.Update) (*Reply, error) {
	return f(ctx, b, update)
}

// DefaultGreeting answers /start.
const DefaultGreeting = "Hello! Welcome to this Telegram bot."

// Echo greets /start and echoes any other text message.
type Echo struct {
	Greeting string
	logger   *slog.Logger
}

// NewEcho creates an Echo handler. An empty greeting uses DefaultGreeting.
func NewEcho(greeting string, logger *slog.Logger) *Echo {
	if greeting == "" {
		greeting = DefaultGreeting
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Echo{Greeting: greeting, logger: logger}
}

// Handle implements Handler. Updates without a text message get no reply.
func (e *Echo) Handle(ctx context.Context, b *bot.Bot, update *telego.Update) (*Reply, error) {
	if update == nil || update.Message == nil || update.Message.Text == "" {
		return nil, nil
	}
	msg := update.Message
	e.logger.DebugContext(ctx, "message received",
		"username", b.Username,
		"chat_id", msg.Chat.ID,
	)

	text := "You said: " + msg.Text
	if isCommand(msg.Text, "start") {
		text = e.Greeting
	}
	return &Reply{Method: MethodSendMessage, ChatID: msg.Chat.ID, Text: text}, nil
}

// isCommand matches "/name" and "/name@botname".
func isCommand(text, name string) bool {
	cmd, _, _ := strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return cmd == "/"+name
}
