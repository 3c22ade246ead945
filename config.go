package botrelay

import "time"

// Config holds the configuration for a Relay instance. The yaml and env
// tags let a host embed it in a larger file or environment config.
type Config struct {
	// WebhookDomain is the public base URL the provider calls back, e.g.
	// "https://bots.example.com".
	WebhookDomain string `yaml:"webhook_domain" env:"WEBHOOK_DOMAIN"`

	// RegisterPath is the path prefix of the inbound route. The bot
	// username is appended as the last segment.
	RegisterPath string `yaml:"register_path" env:"REGISTER_PATH"`

	// RequestTimeout bounds each setWebhook/deleteWebhook call.
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`

	// CacheTTL is how long a cached bot record lives. Set to 0 to keep
	// entries until evicted.
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`

	// CacheSize caps the number of cached entries. 0 means unbounded.
	CacheSize int `yaml:"cache_size" env:"CACHE_SIZE"`

	// InstanceID identifies this process on the notification bus. A new
	// "inst_" ID is generated when empty, which suits in-process and
	// pub/sub buses. Kafka derives its consumer group from it, so there it
	// must stay the same across restarts.
	InstanceID string `yaml:"instance_id" env:"INSTANCE_ID"`

	// ShutdownTimeout bounds the deregistration sweep on Stop.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`

	// SecretKey derives the per-bot secret token sent with setWebhook and
	// checked on inbound calls. Empty disables the check.
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RegisterPath:    "/webhook",
		RequestTimeout:  10 * time.Second,
		CacheTTL:        10 * time.Minute,
		CacheSize:       1024,
		ShutdownTimeout: 30 * time.Second,
	}
}
