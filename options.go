package botrelay

import (
	"log/slog"
	"time"

	"github.com/xraph/botrelay/bot"
	"github.com/xraph/botrelay/botcache"
	"github.com/xraph/botrelay/notify"
	"github.com/xraph/botrelay/observability"
	"github.com/xraph/botrelay/store"
	"github.com/xraph/botrelay/webhook"
)

// Relay ties one process's bot store, webhook coordinator, cache and
// notification bus together.
type Relay struct {
	config  Config
	store   store.Store
	client  webhook.Client
	bus     notify.Bus
	metrics *observability.Metrics
	tracer  *observability.Tracer
	logger  *slog.Logger

	cache       *botcache.Cache
	coordinator *webhook.Coordinator
	notifier    *notify.Notifier
	listener    *notify.Listener
	bots        *bot.Service

	stopListener func()
}

// Option configures a Relay instance.
type Option func(*Relay) error

// New creates a new Relay with the given options. A store and a webhook
// client are required. Without a bus, notifications stay in-process.
func New(opts ...Option) (*Relay, error) {
	r := &Relay{
		config: DefaultConfig(),
		tracer: observability.NewTracer(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.store == nil {
		return nil, ErrNoStore
	}
	if r.client == nil {
		return nil, ErrNoClient
	}
	if r.config.WebhookDomain == "" {
		return nil, ErrNoWebhookDomain
	}
	r.wireServices()
	return r, nil
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(r *Relay) error {
		r.config = cfg
		return nil
	}
}

// WithStore sets the bot store.
func WithStore(s store.Store) Option {
	return func(r *Relay) error {
		r.store = s
		return nil
	}
}

// WithClient sets the provider client used for setWebhook/deleteWebhook.
func WithClient(c webhook.Client) Option {
	return func(r *Relay) error {
		r.client = c
		return nil
	}
}

// WithBus sets the notification bus. The Relay closes it on Stop.
func WithBus(b notify.Bus) Option {
	return func(r *Relay) error {
		r.bus = b
		return nil
	}
}

// WithLogger sets the structured logger for the Relay instance.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) error {
		r.logger = logger
		return nil
	}
}

// WithMetrics sets the Prometheus metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Relay) error {
		r.metrics = m
		return nil
	}
}

// WithTracer sets the tracer used around provider calls.
func WithTracer(t *observability.Tracer) Option {
	return func(r *Relay) error {
		r.tracer = t
		return nil
	}
}

// WithWebhookDomain sets the public base URL for webhook registration.
func WithWebhookDomain(domain string) Option {
	return func(r *Relay) error {
		r.config.WebhookDomain = domain
		return nil
	}
}

// WithRegisterPath sets the inbound route prefix.
func WithRegisterPath(path string) Option {
	return func(r *Relay) error {
		r.config.RegisterPath = path
		return nil
	}
}

// WithRequestTimeout bounds each provider call.
func WithRequestTimeout(d time.Duration) Option {
	return func(r *Relay) error {
		r.config.RequestTimeout = d
		return nil
	}
}

// WithCache sets the bot cache TTL and size.
func WithCache(ttl time.Duration, size int) Option {
	return func(r *Relay) error {
		r.config.CacheTTL = ttl
		r.config.CacheSize = size
		return nil
	}
}

// WithInstanceID sets this process's bus identity.
func WithInstanceID(instanceID string) Option {
	return func(r *Relay) error {
		r.config.InstanceID = instanceID
		return nil
	}
}

// WithSecretKey sets the key that derives per-bot secret tokens.
func WithSecretKey(key string) Option {
	return func(r *Relay) error {
		r.config.SecretKey = key
		return nil
	}
}

// WithShutdownTimeout sets the maximum time Stop spends deregistering.
func WithShutdownTimeout(d time.Duration) Option {
	return func(r *Relay) error {
		r.config.ShutdownTimeout = d
		return nil
	}
}
