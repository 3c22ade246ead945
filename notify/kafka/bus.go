// Package kafka implements notify.Bus on Kafka. Each message kind is its
// own topic. Every instance joins with its own consumer group so that all
// instances see every message.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/xraph/botrelay/notify"
)

// ErrClosed is returned by Publish and Subscribe after Close.
var ErrClosed = errors.New("notify/kafka: bus is closed")

// compile-time interface check.
var _ notify.Bus = (*Bus)(nil)

// Config configures a Bus.
type Config struct {
	Brokers []string

	// TopicPrefix is prepended to each kind, e.g. "botrelay" gives
	// "botrelay.bot-update".
	TopicPrefix string

	// GroupPrefix and InstanceID form the consumer group id
	// "<GroupPrefix>-<InstanceID>". InstanceID must be stable across
	// restarts: a new group starts at the last offset and misses whatever
	// was published while it was joining, and abandoned groups pile up on
	// the brokers.
	GroupPrefix string
	InstanceID  string

	// WriteTimeout bounds each publish. Defaults to 10s.
	WriteTimeout time.Duration
}

// Bus publishes through one Writer and consumes with one Reader per
// subscription.
type Bus struct {
	cfg    Config
	writer *kafkago.Writer
	logger *slog.Logger

	mu      sync.Mutex
	readers []*kafkago.Reader
	cancel  []context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

// New creates a bus. No connection is made until the first publish or
// subscribe.
func New(cfg Config, logger *slog.Logger) (*Bus, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("notify/kafka: at least one broker is required")
	}
	if cfg.InstanceID == "" {
		return nil, errors.New("notify/kafka: instance id is required")
	}
	if cfg.GroupPrefix == "" {
		cfg.GroupPrefix = "botrelay"
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		cfg: cfg,
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(cfg.Brokers...),
			Balancer:               &kafkago.LeastBytes{},
			RequiredAcks:           kafkago.RequireOne,
			AllowAutoTopicCreation: true,
			WriteTimeout:           cfg.WriteTimeout,
		},
		logger: logger,
	}, nil
}

// GroupID returns this instance's consumer group id.
func (b *Bus) GroupID() string {
	return b.cfg.GroupPrefix + "-" + b.cfg.InstanceID
}

// Topics returns every topic the bus consumes.
func (b *Bus) Topics() []string {
	kinds := notify.Kinds()
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = notify.Topic(b.cfg.TopicPrefix, k)
	}
	return out
}

// Publish writes msg to its kind's topic, keyed by username.
func (b *Bus) Publish(ctx context.Context, msg notify.Message) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}
	err := b.writer.WriteMessages(ctx, kafkago.Message{
		Topic: notify.Topic(b.cfg.TopicPrefix, msg.Kind),
		Key:   []byte(msg.Key),
		Value: []byte(msg.Payload()),
	})
	if err != nil {
		return fmt.Errorf("notify/kafka: publish %s: %w", msg.Kind, err)
	}
	return nil
}

// Subscribe starts a reader on every kind's topic. Only messages produced
// after the group first joins are delivered.
func (b *Bus) Subscribe(ctx context.Context, h notify.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     b.cfg.Brokers,
		GroupID:     b.GroupID(),
		GroupTopics: b.Topics(),
		StartOffset: kafkago.LastOffset,
		MinBytes:    1,
		MaxBytes:    1 << 20,
		MaxWait:     500 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(ctx)
	b.readers = append(b.readers, r)
	b.cancel = append(b.cancel, cancel)

	b.wg.Add(1)
	go b.consume(ctx, r, h)
	return nil
}

func (b *Bus) consume(ctx context.Context, r *kafkago.Reader, h notify.Handler) {
	defer b.wg.Done()
	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			b.logger.ErrorContext(ctx, "kafka read failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		msg, err := notify.Decode(b.cfg.TopicPrefix, m.Topic, string(m.Value))
		if err != nil {
			b.logger.WarnContext(ctx, "dropping malformed notification",
				"topic", m.Topic,
				"error", err,
			)
			continue
		}
		if err := h(ctx, msg); err != nil {
			b.logger.ErrorContext(ctx, "notification handler failed",
				"kind", msg.Kind,
				"key", msg.Key,
				"error", err,
			)
		}
	}
}

// Close stops every reader, waits for consumers to exit and closes the
// writer.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.wg.Wait()
		return nil
	}
	b.closed = true
	readers, cancels := b.readers, b.cancel
	b.readers, b.cancel = nil, nil
	b.mu.Unlock()

	var errs []error
	for i, r := range readers {
		cancels[i]()
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.wg.Wait()
	if err := b.writer.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
