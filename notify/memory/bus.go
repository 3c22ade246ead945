// Package memory provides an in-process notify.Bus. Every subscriber
// receives every published message, which makes it suitable for single
// process deployments and for tests that simulate several instances.
package memory

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/xraph/botrelay/notify"
)

// ErrClosed is returned by Publish and Subscribe after Close.
var ErrClosed = errors.New("notify/memory: bus is closed")

const defaultBuffer = 256

// compile-time interface check.
var _ notify.Bus = (*Bus)(nil)

// Bus is an in-process fan-out bus.
type Bus struct {
	mu        sync.RWMutex
	subs      []*subscriber
	closed    bool
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
	buffer    int
	logger    *slog.Logger
}

type subscriber struct {
	ch   chan notify.Message
	gone chan struct{} // closed when the delivery goroutine exits
}

// New creates an empty bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		done:   make(chan struct{}),
		buffer: defaultBuffer,
		logger: logger,
	}
}

// Publish delivers msg to every subscriber. It blocks while a subscriber's
// buffer is full rather than dropping.
func (b *Bus) Publish(ctx context.Context, msg notify.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for _, sub := range b.subs {
		select {
		case sub.ch <- msg:
		case <-sub.gone:
		case <-ctx.Done():
			return ctx.Err()
		case <-b.done:
			return ErrClosed
		}
	}
	return nil
}

// Subscribe registers h and starts its delivery goroutine. The
// subscriber is removed once ctx is done.
func (b *Bus) Subscribe(ctx context.Context, h notify.Handler) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	sub := &subscriber{
		ch:   make(chan notify.Message, b.buffer),
		gone: make(chan struct{}),
	}
	b.subs = append(b.subs, sub)
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		defer b.remove(sub)
		for {
			select {
			case msg := <-sub.ch:
				if err := h(ctx, msg); err != nil {
					b.logger.ErrorContext(ctx, "notification handler failed",
						"kind", msg.Kind,
						"key", msg.Key,
						"error", err,
					)
				}
			case <-ctx.Done():
				return
			case <-b.done:
				return
			}
		}
	}()
	return nil
}

// remove unblocks publishers waiting on sub and drops it from the list.
func (b *Bus) remove(sub *subscriber) {
	close(sub.gone)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Subscribers returns the number of active subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close stops all subscribers and waits for them to exit.
func (b *Bus) Close() error {
	b.closeOnce.Do(func() {
		close(b.done)
		b.mu.Lock()
		b.closed = true
		b.subs = nil
		b.mu.Unlock()
	})
	b.wg.Wait()
	return nil
}
