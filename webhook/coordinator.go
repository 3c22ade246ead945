package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xraph/botrelay/bot"
	"github.com/xraph/botrelay/observability"
)

// Config configures a Coordinator.
type Config struct {
	// WebhookDomain is the public base URL, e.g. "https://bots.example.com".
	WebhookDomain string

	// RegisterPath is the path prefix the inbound handler is mounted on,
	// e.g. "/webhook". The bot username is appended as the last segment.
	RegisterPath string

	// RequestTimeout bounds each provider call. Zero means no bound beyond
	// the caller's context.
	RequestTimeout time.Duration

	// SecretToken derives the per-bot secret token sent with setWebhook.
	// Nil sends none.
	SecretToken func(username string) string

	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// Tally counts the outcome of a bulk sweep.
type Tally struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Coordinator owns the set of usernames this process believes have a live
// webhook. Every operation holds one mutex for its whole critical section,
// provider calls included, so webhook churn is serialized per process.
//
// The set is a best-effort record used to skip redundant provider calls.
// Absence does not prove the provider side is clear.
type Coordinator struct {
	mu         sync.Mutex
	registered map[string]struct{}

	client Client
	dir    Directory
	cfg    Config
	logger *slog.Logger
}

// NewCoordinator creates a Coordinator with an empty registration set.
func NewCoordinator(client Client, dir Directory, cfg Config, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		registered: make(map[string]struct{}),
		client:     client,
		dir:        dir,
		cfg:        cfg,
		logger:     logger,
	}
}

// URL returns the webhook URL registered for username.
func (c *Coordinator) URL(username string) string {
	base := strings.TrimSuffix(c.cfg.WebhookDomain+c.cfg.RegisterPath, "/")
	return base + "/" + username
}

// Register sets the webhook for b and records it on success. When the
// username is already recorded, the existing webhook is deleted first and
// then set again. The caller is responsible for checking b.Enabled.
func (c *Coordinator) Register(ctx context.Context, b *bot.Bot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Callers persist b before registering it, so b.Token is the
	// credential the directory holds for this username.
	if _, ok := c.registered[b.Username]; ok {
		c.logger.InfoContext(ctx, "webhook already registered, replacing", "username", b.Username)
		c.deregisterLocked(ctx, b)
	}

	url := c.URL(b.Username)
	secret := ""
	if c.cfg.SecretToken != nil {
		secret = c.cfg.SecretToken(b.Username)
	}

	err := c.call(ctx, "register", b.Username, func(ctx context.Context) error {
		return c.client.SetWebhook(ctx, b.Token, url, secret)
	})
	c.cfg.Metrics.RecordRegistration(err == nil)
	if err != nil {
		c.logger.ErrorContext(ctx, "set webhook failed",
			"username", b.Username,
			"url", url,
			"error", err,
		)
		return false
	}

	c.registered[b.Username] = struct{}{}
	c.cfg.Metrics.SetRegistered(len(c.registered))
	c.logger.InfoContext(ctx, "webhook registered", "username", b.Username, "url", url)
	return true
}

// Deregister deletes the webhook for username if this process recorded
// one. An unknown bot is a successful no-op: there is nothing left to
// remove remotely, and any stale local entry is dropped.
func (c *Coordinator) Deregister(ctx context.Context, username string) bool {
	b, err := c.dir.FindByUsername(ctx, username)
	if err != nil {
		if isNotFound(err) {
			c.logger.WarnContext(ctx, "deregister of unknown bot", "username", username)
			c.UpdateLocalState(username, false)
			return true
		}
		c.logger.ErrorContext(ctx, "deregister lookup failed", "username", username, "error", err)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deregisterLocked(ctx, b)
}

// DeregisterBot deletes the webhook recorded for b.Username using
// b.Token, without consulting the directory. It is for records that were
// renamed or removed. The entry is dropped even when the provider call
// fails, since no later lookup by that name could reach the token again.
func (c *Coordinator) DeregisterBot(ctx context.Context, b *bot.Bot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ok := c.deregisterLocked(ctx, b)
	if !ok {
		delete(c.registered, b.Username)
		c.cfg.Metrics.SetRegistered(len(c.registered))
	}
	return ok
}

func (c *Coordinator) deregisterLocked(ctx context.Context, b *bot.Bot) bool {
	if _, ok := c.registered[b.Username]; !ok {
		return true
	}

	err := c.call(ctx, "deregister", b.Username, func(ctx context.Context) error {
		return c.client.DeleteWebhook(ctx, b.Token)
	})
	c.cfg.Metrics.RecordDeregistration(err == nil)
	if err != nil {
		c.logger.ErrorContext(ctx, "delete webhook failed", "username", b.Username, "error", err)
		return false
	}

	delete(c.registered, b.Username)
	c.cfg.Metrics.SetRegistered(len(c.registered))
	c.logger.InfoContext(ctx, "webhook deregistered", "username", b.Username)
	return true
}

// IsRegistered reports whether username is recorded as registered.
func (c *Coordinator) IsRegistered(username string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.registered[username]
	return ok
}

// UpdateLocalState records username as registered or not without calling
// the provider. Used to converge after another instance did the call.
func (c *Coordinator) UpdateLocalState(username string, registered bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if registered {
		c.registered[username] = struct{}{}
	} else {
		delete(c.registered, username)
	}
	c.cfg.Metrics.SetRegistered(len(c.registered))
}

// Registered returns a sorted snapshot of the recorded usernames.
func (c *Coordinator) Registered() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.registered))
	for u := range c.registered {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of recorded usernames.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.registered)
}

// Start registers every enabled bot. Per-bot failures are counted and
// logged. If the directory cannot be read the process carries on with an
// empty set.
func (c *Coordinator) Start(ctx context.Context) Tally {
	var t Tally

	bots, err := c.dir.FindEnabled(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "bot directory unavailable, no webhooks registered", "error", err)
		return t
	}

	for _, b := range bots {
		if c.Register(ctx, b) {
			t.Succeeded++
		} else {
			t.Failed++
		}
	}

	c.logger.InfoContext(ctx, "startup webhook registration finished",
		"succeeded", t.Succeeded,
		"failed", t.Failed,
	)
	return t
}

// Stop deregisters every recorded username one at a time, then clears the
// set regardless of outcome. The lock is taken per username so concurrent
// callers see a shrinking set instead of blocking for the whole sweep.
func (c *Coordinator) Stop(ctx context.Context) Tally {
	var t Tally

	for _, username := range c.Registered() {
		if c.safeDeregister(ctx, username) {
			t.Succeeded++
		} else {
			t.Failed++
		}
	}

	c.mu.Lock()
	clear(c.registered)
	c.mu.Unlock()
	c.cfg.Metrics.SetRegistered(0)

	c.logger.InfoContext(ctx, "shutdown webhook deregistration finished",
		"succeeded", t.Succeeded,
		"failed", t.Failed,
	)
	return t
}

func (c *Coordinator) safeDeregister(ctx context.Context, username string) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.ErrorContext(ctx, "deregister panicked", "username", username, "panic", rec)
			ok = false
		}
	}()
	return c.Deregister(ctx, username)
}

// call runs one provider call under the request timeout and a span.
func (c *Coordinator) call(ctx context.Context, op, username string, fn func(context.Context) error) error {
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	ctx, span := c.cfg.Tracer.StartWebhookSpan(ctx, op, username)
	err := fn(ctx)
	if err != nil {
		err = fmt.Errorf("botrelay/webhook: %s %s: %w", op, username, err)
	}
	c.cfg.Tracer.EndWebhookSpan(span, err)
	return err
}
