package server

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/xraph/botrelay"
)

// EnvPrefix prefixes every environment override, e.g. BOTRELAY_WEBHOOK_DOMAIN.
const EnvPrefix = "BOTRELAY_"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMongo    = "mongo"
	DriverKafka    = "kafka"
)

// Config is the process configuration. The embedded botrelay.Config keys
// sit at the top level of the YAML file.
type Config struct {
	botrelay.Config `yaml:",inline"`

	// StartTimeout bounds startup, including the registration sweep over
	// every enabled bot.
	StartTimeout time.Duration `yaml:"start_timeout" env:"START_TIMEOUT"`

	HTTP     HTTPConfig     `yaml:"http" envPrefix:"HTTP_"`
	Store    StoreConfig    `yaml:"store" envPrefix:"STORE_"`
	Bus      BusConfig      `yaml:"bus" envPrefix:"BUS_"`
	Telegram TelegramConfig `yaml:"telegram" envPrefix:"TELEGRAM_"`
	Auth     AuthConfig     `yaml:"auth" envPrefix:"AUTH_"`
	Inbound  InboundConfig  `yaml:"inbound" envPrefix:"INBOUND_"`
	Log      LogConfig      `yaml:"log" envPrefix:"LOG_"`
}

// HTTPConfig configures the listener.
type HTTPConfig struct {
	Addr         string        `yaml:"addr" env:"ADDR"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`

	// ShutdownTimeout bounds the drain of in-flight requests. It runs
	// before the deregistration sweep and does not eat into it.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// StoreConfig selects and configures the bot store.
type StoreConfig struct {
	// Driver is one of memory, sqlite, postgres, redis or mongo.
	Driver string `yaml:"driver" env:"DRIVER"`

	// DSN is the sqlite/postgres DSN or the mongo URI.
	DSN string `yaml:"dsn" env:"DSN"`

	// Database is the mongo database name.
	Database string `yaml:"database" env:"DATABASE"`

	Redis RedisConfig `yaml:"redis" envPrefix:"REDIS_"`
}

// RedisConfig configures a go-redis universal client.
type RedisConfig struct {
	Addrs    []string `yaml:"addrs" env:"ADDRS"`
	Password string   `yaml:"password" env:"PASSWORD"`
	DB       int      `yaml:"db" env:"DB"`
}

// BusConfig selects and configures the notification bus.
type BusConfig struct {
	// Driver is one of memory, redis or kafka.
	Driver string `yaml:"driver" env:"DRIVER"`

	// Prefix is the channel or topic prefix.
	Prefix string `yaml:"prefix" env:"PREFIX"`

	Redis RedisConfig `yaml:"redis" envPrefix:"REDIS_"`

	Kafka KafkaConfig `yaml:"kafka" envPrefix:"KAFKA_"`
}

// KafkaConfig configures the kafka bus.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers" env:"BROKERS"`
	GroupPrefix  string        `yaml:"group_prefix" env:"GROUP_PREFIX"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
}

// TelegramConfig configures the Bot API client.
type TelegramConfig struct {
	APIServer          string        `yaml:"api_server" env:"API_SERVER"`
	Timeout            time.Duration `yaml:"timeout" env:"TIMEOUT"`
	DropPendingUpdates bool          `yaml:"drop_pending_updates" env:"DROP_PENDING_UPDATES"`
}

// AuthConfig configures bearer auth on the admin API.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	JWTIssuer string `yaml:"jwt_issuer" env:"JWT_ISSUER"`
}

// InboundConfig configures the inbound update route.
type InboundConfig struct {
	Greeting string `yaml:"greeting" env:"GREETING"`

	// RatePerSecond limits updates per bot. 0 disables the limit.
	RatePerSecond float64 `yaml:"rate_per_second" env:"RATE_PER_SECOND"`
	Burst         int     `yaml:"burst" env:"BURST"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level" env:"LEVEL"`

	// Format is json or text.
	Format string `yaml:"format" env:"FORMAT"`

	// File, when set, receives a copy of every record and is rotated.
	File       string `yaml:"file" env:"FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" env:"MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" env:"MAX_AGE_DAYS"`
}

// DefaultConfig returns a Config that runs a single instance on in-memory
// components.
func DefaultConfig() Config {
	return Config{
		Config:       botrelay.DefaultConfig(),
		StartTimeout: 60 * time.Second,
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Driver:   DriverMemory,
			Database: "botrelay",
		},
		Bus: BusConfig{
			Driver: DriverMemory,
			Prefix: "botrelay",
			Kafka: KafkaConfig{
				GroupPrefix:  "botrelay",
				WriteTimeout: 10 * time.Second,
			},
		},
		Telegram: TelegramConfig{
			Timeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// Load reads and validates the configuration.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Read reads the YAML file at path over the defaults and then applies
// BOTRELAY_* environment overrides without validating. An empty path
// skips the file.
func Read(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("botrelay/server: read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("botrelay/server: parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("botrelay/server: env overrides: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings New and the factories cannot default.
func (c Config) Validate() error {
	var errs []error
	if c.WebhookDomain == "" {
		errs = append(errs, errors.New("webhook_domain is required"))
	}
	switch c.Store.Driver {
	case DriverMemory, DriverRedis:
	case DriverSQLite, DriverPostgres, DriverMongo:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}
	switch c.Bus.Driver {
	case DriverMemory, DriverRedis:
	case DriverKafka:
		if len(c.Bus.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("bus.kafka.brokers is required for driver \"kafka\""))
		}
		// A generated ID would join a fresh consumer group on every boot.
		if c.InstanceID == "" {
			errs = append(errs, errors.New("instance_id is required for driver \"kafka\""))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown bus.driver %q", c.Bus.Driver))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("botrelay/server: invalid config: %w", err)
	}
	return nil
}
