// Package telegram implements webhook.Client on the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mymmrac/telego"

	"github.com/xraph/botrelay/webhook"
)

// compile-time interface check.
var _ webhook.Client = (*Client)(nil)

// Config configures the Bot API client.
type Config struct {
	// APIServer overrides the Bot API base URL (default https://api.telegram.org).
	APIServer string

	// Timeout bounds every HTTP request.
	Timeout time.Duration

	// DropPendingUpdates discards queued updates when a webhook is
	// deleted.
	DropPendingUpdates bool
}

// Client issues setWebhook and deleteWebhook for arbitrary bot tokens.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New creates a Client.
func New(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) bot(token string) (*telego.Bot, error) {
	opts := []telego.BotOption{
		telego.WithHTTPClient(c.httpClient),
		telego.WithDiscardLogger(),
	}
	if c.cfg.APIServer != "" {
		opts = append(opts, telego.WithAPIServer(c.cfg.APIServer))
	}
	b, err := telego.NewBot(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("botrelay/telegram: %w", err)
	}
	return b, nil
}

// SetWebhook calls setWebhook for token.
func (c *Client) SetWebhook(ctx context.Context, token, url, secretToken string) error {
	b, err := c.bot(token)
	if err != nil {
		return err
	}
	params := &telego.SetWebhookParams{
		URL:            url,
		SecretToken:    secretToken,
		AllowedUpdates: []string{"message"},
	}
	if err := b.SetWebhook(ctx, params); err != nil {
		return fmt.Errorf("botrelay/telegram: set webhook: %w", err)
	}
	return nil
}

// DeleteWebhook calls deleteWebhook for token.
func (c *Client) DeleteWebhook(ctx context.Context, token string) error {
	b, err := c.bot(token)
	if err != nil {
		return err
	}
	params := &telego.DeleteWebhookParams{DropPendingUpdates: c.cfg.DropPendingUpdates}
	if err := b.DeleteWebhook(ctx, params); err != nil {
		return fmt.Errorf("botrelay/telegram: delete webhook: %w", err)
	}
	return nil
}
