// Package botcache is the local read-through cache of bot records.
package botcache

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/xraph/botrelay/bot"
	"github.com/xraph/botrelay/observability"
)

// Config sizes the cache. Size 0 means unbounded; TTL 0 disables expiry.
type Config struct {
	Size int
	TTL  time.Duration
}

// compile-time interface check.
var _ bot.Cache = (*Cache)(nil)

// Cache maps UsernameKey/IDKey to bot records loaded on demand.
//
// Every eviction advances epoch. Loads are shared only within one epoch
// and store their result only if no eviction happened meanwhile, so a
// lookup issued after an eviction never sees a record loaded before it.
type Cache struct {
	lru   *expirable.LRU[string, *bot.Bot]
	group singleflight.Group

	mu    sync.Mutex // guards epoch and orders it against lru.Add
	epoch uint64

	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a cache. metrics may be nil.
func New(cfg Config, metrics *observability.Metrics, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		lru:     expirable.NewLRU[string, *bot.Bot](cfg.Size, nil, cfg.TTL),
		metrics: metrics,
		logger:  logger,
	}
}

// Get returns the cached bot for key, calling load on a miss. Concurrent
// misses for one key share a single load. Misses are not cached, and a
// load that races with an eviction is returned but not stored. The result
// is a copy the caller may modify.
func (c *Cache) Get(ctx context.Context, key string, load bot.Loader) (*bot.Bot, error) {
	if b, ok := c.lru.Get(key); ok {
		c.metrics.RecordCacheLookup(true)
		return b.Clone(), nil
	}
	c.metrics.RecordCacheLookup(false)

	epoch := c.currentEpoch()
	v, err, _ := c.group.Do(strconv.FormatUint(epoch, 10)+"/"+key, func() (any, error) {
		b, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.epoch == epoch {
			c.lru.Add(key, b)
		}
		c.mu.Unlock()
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*bot.Bot).Clone(), nil
}

func (c *Cache) currentEpoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Evict removes the given keys.
func (c *Cache) Evict(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	for _, k := range keys {
		c.lru.Remove(k)
	}
}

// EvictUsername removes the username entry and every ID entry whose
// record carries that username.
func (c *Cache) EvictUsername(username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.lru.Remove(bot.UsernameKey(username))
	for _, k := range c.lru.Keys() {
		if b, ok := c.lru.Peek(k); ok && b.Username == username {
			c.lru.Remove(k)
		}
	}
}

// EvictAll drops every entry.
func (c *Cache) EvictAll() {
	c.mu.Lock()
	c.epoch++
	n := c.lru.Len()
	c.lru.Purge()
	c.mu.Unlock()
	c.logger.Debug("bot cache purged", "entries", n)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int { return c.lru.Len() }
