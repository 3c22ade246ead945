package botrelay

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/botrelay/bot"
	"github.com/xraph/botrelay/botcache"
	"github.com/xraph/botrelay/id"
	"github.com/xraph/botrelay/notify"
	notifymem "github.com/xraph/botrelay/notify/memory"
	"github.com/xraph/botrelay/observability"
	"github.com/xraph/botrelay/signature"
	"github.com/xraph/botrelay/store"
	"github.com/xraph/botrelay/webhook"
)

// wireServices initializes the internal services after options have been applied.
func (r *Relay) wireServices() {
	if r.config.InstanceID == "" {
		r.config.InstanceID = id.NewInstanceID().String()
	}
	if r.config.RegisterPath == "" {
		r.config.RegisterPath = "/webhook"
	}
	r.logger = r.logger.With("instance_id", r.config.InstanceID)

	if r.bus == nil {
		r.bus = notifymem.New(r.logger)
	}

	r.cache = botcache.New(botcache.Config{
		Size: r.config.CacheSize,
		TTL:  r.config.CacheTTL,
	}, r.metrics, r.logger)

	r.coordinator = webhook.NewCoordinator(r.client, webhook.NewDirectory(r.store), webhook.Config{
		WebhookDomain:  r.config.WebhookDomain,
		RegisterPath:   r.config.RegisterPath,
		RequestTimeout: r.config.RequestTimeout,
		SecretToken:    signature.Tokens(r.config.SecretKey),
		Metrics:        r.metrics,
		Tracer:         r.tracer,
	}, r.logger)

	r.notifier = notify.NewNotifier(r.bus, r.metrics, r.logger)
	r.listener = notify.NewListener(r.cache, r.coordinator, r.metrics, r.logger)
	r.bots = bot.NewService(r.store, r.coordinator, r.cache, r.notifier, r.logger)
}

// Start subscribes to the notification bus and registers a webhook for
// every enabled bot. A directory failure leaves the process running with
// no registrations. The subscription outlives ctx and ends on Stop.
func (r *Relay) Start(ctx context.Context) error {
	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := r.bus.Subscribe(subCtx, r.listener.Handle); err != nil {
		cancel()
		return fmt.Errorf("botrelay: subscribe: %w", err)
	}
	r.stopListener = cancel

	t := r.coordinator.Start(ctx)
	r.logger.InfoContext(ctx, "botrelay started",
		"registered", t.Succeeded,
		"failed", t.Failed,
	)
	return nil
}

// Stop deregisters every webhook this process registered, then stops the
// subscription and closes the bus. The sweep is bounded by
// ShutdownTimeout.
func (r *Relay) Stop(ctx context.Context) error {
	if r.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.ShutdownTimeout)
		defer cancel()
	}

	t := r.coordinator.Stop(ctx)

	if r.stopListener != nil {
		r.stopListener()
	}
	var errs []error
	if err := r.bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("botrelay: close bus: %w", err))
	}

	r.logger.InfoContext(ctx, "botrelay stopped",
		"deregistered", t.Succeeded,
		"failed", t.Failed,
	)
	return errors.Join(errs...)
}

// BroadcastEvictAll asks every instance, this one included, to drop its
// bot cache.
func (r *Relay) BroadcastEvictAll(ctx context.Context) error {
	return r.notifier.EvictAll(ctx)
}

// Bots returns the bot management service.
func (r *Relay) Bots() *bot.Service { return r.bots }

// Coordinator returns the webhook coordinator.
func (r *Relay) Coordinator() *webhook.Coordinator { return r.coordinator }

// Cache returns the local bot cache.
func (r *Relay) Cache() *botcache.Cache { return r.cache }

// Notifier returns the bus publisher used by the mutation path.
func (r *Relay) Notifier() *notify.Notifier { return r.notifier }

// Store returns the underlying store.
func (r *Relay) Store() store.Store { return r.store }

// Metrics returns the metrics sink, nil when none was configured.
func (r *Relay) Metrics() *observability.Metrics { return r.metrics }

// Config returns the effective configuration.
func (r *Relay) Config() Config { return r.config }

// InstanceID returns this process's bus identity.
func (r *Relay) InstanceID() string { return r.config.InstanceID }
