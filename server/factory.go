package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/botrelay/notify"
	"github.com/xraph/botrelay/notify/kafka"
	notifymem "github.com/xraph/botrelay/notify/memory"
	notifyredis "github.com/xraph/botrelay/notify/redis"
	"github.com/xraph/botrelay/store"
	"github.com/xraph/botrelay/store/bunstore"
	"github.com/xraph/botrelay/store/memory"
	"github.com/xraph/botrelay/store/mongo"
	storeredis "github.com/xraph/botrelay/store/redis"
)

const defaultRedisAddr = "localhost:6379"

// OpenStore connects the configured store and runs its migrations.
func OpenStore(ctx context.Context, cfg StoreConfig) (store.Store, error) {
	var (
		s   store.Store
		err error
	)
	switch cfg.Driver {
	case "", DriverMemory:
		s = memory.New()
	case DriverSQLite:
		s, err = bunstore.Open(bunstore.DialectSQLite, cfg.DSN)
	case DriverPostgres:
		s, err = bunstore.Open(bunstore.DialectPostgres, cfg.DSN)
	case DriverRedis:
		s = storeredis.New(newRedisClient(cfg.Redis))
	case DriverMongo:
		s, err = mongo.Connect(cfg.DSN, cfg.Database)
	default:
		return nil, fmt.Errorf("botrelay/server: unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Migrate(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("botrelay/server: migrate %s store: %w", cfg.Driver, err), s.Close())
	}
	return s, nil
}

// OpenBus builds the configured notification bus. instanceID names the
// kafka consumer group.
func OpenBus(cfg BusConfig, instanceID string, logger *slog.Logger) (notify.Bus, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return notifymem.New(logger), nil
	case DriverRedis:
		rdb := newRedisClient(cfg.Redis)
		return &clientBus{Bus: notifyredis.New(rdb, cfg.Prefix, logger), client: rdb}, nil
	case DriverKafka:
		b, err := kafka.New(kafka.Config{
			Brokers:      cfg.Kafka.Brokers,
			TopicPrefix:  cfg.Prefix,
			GroupPrefix:  cfg.Kafka.GroupPrefix,
			InstanceID:   instanceID,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("botrelay/server: unknown bus driver %q", cfg.Driver)
	}
}

func newRedisClient(cfg RedisConfig) goredis.UniversalClient {
	addrs := cfg.Addrs
	if len(addrs) == 0 {
		addrs = []string{defaultRedisAddr}
	}
	return goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:    addrs,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// clientBus closes the redis client it was built on after the bus.
type clientBus struct {
	*notifyredis.Bus
	client goredis.UniversalClient
}

func (b *clientBus) Close() error {
	return errors.Join(b.Bus.Close(), b.client.Close())
}
