package bot

import "context"

// Loader fetches a bot on a cache miss.
type Loader func(ctx context.Context) (*Bot, error)

// Cache is a read-through cache of bot records keyed by UsernameKey and
// IDKey. Entries are only ever removed, never updated in place.
type Cache interface {
	Get(ctx context.Context, key string, load Loader) (*Bot, error)
	Evict(keys ...string)
	EvictUsername(username string)
	EvictAll()
}

type nopCache struct{}

func (nopCache) Get(ctx context.Context, _ string, load Loader) (*Bot, error) { return load(ctx) }
func (nopCache) Evict(...string)                                               {}
func (nopCache) EvictUsername(string)                                          {}
func (nopCache) EvictAll()                                                     {}
