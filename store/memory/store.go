// Package memory provides an in-memory Store for tests and single-process
// development setups.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/botrelay/bot"
	"github.com/xraph/botrelay/id"
	botstore "github.com/xraph/botrelay/store"
)

// compile-time interface check.
var _ botstore.Store = (*Store)(nil)

// Store keeps bots in maps guarded by a RWMutex. Values are copied on the
// way in and out.
type Store struct {
	mu sync.RWMutex

	bots       map[string]*bot.Bot // keyed by ID string
	byUsername map[string]string   // username -> ID string

	closed bool
}

// New creates an empty store.
func New() *Store {
	return &Store{
		bots:       make(map[string]*bot.Bot),
		byUsername: make(map[string]string),
	}
}

// Migrate is a no-op.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports ErrStoreClosed after Close.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return bot.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// CreateBot stores a new bot.
func (s *Store) CreateBot(_ context.Context, b *bot.Bot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return bot.ErrStoreClosed
	}
	if _, taken := s.byUsername[b.Username]; taken {
		return bot.ErrUsernameTaken
	}
	key := b.ID.String()
	s.bots[key] = b.Clone()
	s.byUsername[b.Username] = key
	return nil
}

// GetBot returns a bot by ID.
func (s *Store) GetBot(_ context.Context, botID id.ID) (*bot.Bot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, bot.ErrStoreClosed
	}
	b, ok := s.bots[botID.String()]
	if !ok {
		return nil, bot.ErrNotFound
	}
	return b.Clone(), nil
}

// GetBotByUsername returns a bot by username.
func (s *Store) GetBotByUsername(_ context.Context, username string) (*bot.Bot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, bot.ErrStoreClosed
	}
	key, ok := s.byUsername[username]
	if !ok {
		return nil, bot.ErrNotFound
	}
	return s.bots[key].Clone(), nil
}

// UpdateBot replaces a stored bot, moving its username index on rename.
func (s *Store) UpdateBot(_ context.Context, b *bot.Bot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return bot.ErrStoreClosed
	}
	key := b.ID.String()
	existing, ok := s.bots[key]
	if !ok {
		return bot.ErrNotFound
	}
	if owner, taken := s.byUsername[b.Username]; taken && owner != key {
		return bot.ErrUsernameTaken
	}
	delete(s.byUsername, existing.Username)
	s.bots[key] = b.Clone()
	s.byUsername[b.Username] = key
	return nil
}

// DeleteBot removes a bot.
func (s *Store) DeleteBot(_ context.Context, botID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return bot.ErrStoreClosed
	}
	key := botID.String()
	b, ok := s.bots[key]
	if !ok {
		return bot.ErrNotFound
	}
	delete(s.bots, key)
	delete(s.byUsername, b.Username)
	return nil
}

// ListBots returns bots ordered by creation time.
func (s *Store) ListBots(_ context.Context, opts bot.ListOpts) ([]*bot.Bot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, bot.ErrStoreClosed
	}

	result := make([]*bot.Bot, 0, len(s.bots))
	for _, b := range s.bots {
		if opts.Enabled != nil && b.Enabled != *opts.Enabled {
			continue
		}
		result = append(result, b.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// CountBots counts bots matching opts.Enabled.
func (s *Store) CountBots(_ context.Context, opts bot.ListOpts) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, bot.ErrStoreClosed
	}
	var n int64
	for _, b := range s.bots {
		if opts.Enabled != nil && b.Enabled != *opts.Enabled {
			continue
		}
		n++
	}
	return n, nil
}

func applyPagination[T any](items []*T, offset, limit int) []*T {
	if offset >= len(items) {
		return []*T{}
	}
	if offset > 0 {
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
