// Package redis implements notify.Bus on Redis pub/sub. Each message kind
// is its own channel and the payload is the bare key.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/botrelay/notify"
)

// ErrClosed is returned by Publish and Subscribe after Close.
var ErrClosed = errors.New("notify/redis: bus is closed")

// compile-time interface check.
var _ notify.Bus = (*Bus)(nil)

// Bus publishes and subscribes through a shared Redis client. The client
// is owned by the caller and is not closed by Close.
type Bus struct {
	rdb    goredis.UniversalClient
	prefix string
	logger *slog.Logger

	mu     sync.Mutex
	subs   []*goredis.PubSub
	cancel []context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

// New creates a bus whose channels are named prefix + "." + kind.
func New(rdb goredis.UniversalClient, prefix string, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		rdb:    rdb,
		prefix: prefix,
		logger: logger,
	}
}

// Channels returns every channel the bus subscribes to.
func (b *Bus) Channels() []string {
	kinds := notify.Kinds()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = notify.Topic(b.prefix, k)
	}
	return out
}

// Publish sends msg on its kind's channel.
func (b *Bus) Publish(ctx context.Context, msg notify.Message) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if err := b.rdb.Publish(ctx, notify.Topic(b.prefix, msg.Kind), msg.Payload()).Err(); err != nil {
		return fmt.Errorf("notify/redis: publish %s: %w", msg.Kind, err)
	}
	return nil
}

// Subscribe subscribes to every kind's channel and delivers to h until ctx
// is cancelled or the bus is closed. It returns once the subscription is
// confirmed by the server.
func (b *Bus) Subscribe(ctx context.Context, h notify.Handler) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	ps := b.rdb.Subscribe(ctx, b.Channels()...)
	b.subs = append(b.subs, ps)
	b.cancel = append(b.cancel, cancel)
	b.mu.Unlock()

	if _, err := ps.Receive(ctx); err != nil {
		cancel()
		return fmt.Errorf("notify/redis: subscribe: %w", err)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ch := ps.Channel()
		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}
				b.deliver(ctx, h, m)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (b *Bus) deliver(ctx context.Context, h notify.Handler, m *goredis.Message) {
	msg, err := notify.Decode(b.prefix, m.Channel, m.Payload)
	if err != nil {
		b.logger.WarnContext(ctx, "dropping malformed notification",
			"channel", m.Channel,
			"error", err,
		)
		return
	}
	if err := h(ctx, msg); err != nil {
		b.logger.ErrorContext(ctx, "notification handler failed",
			"kind", msg.Kind,
			"key", msg.Key,
			"error", err,
		)
	}
}

// Close unsubscribes and waits for delivery goroutines to exit.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.wg.Wait()
		return nil
	}
	b.closed = true
	subs, cancels := b.subs, b.cancel
	b.subs, b.cancel = nil, nil
	b.mu.Unlock()

	var errs []error
	for i, ps := range subs {
		cancels[i]()
		if err := ps.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.wg.Wait()
	return errors.Join(errs...)
}
