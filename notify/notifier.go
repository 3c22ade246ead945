package notify

import (
	"context"
	"log/slog"

	"github.com/xraph/botrelay/observability"
)

// Notifier publishes the messages produced by the record-mutation path.
// Publish failures are logged and counted, never returned, so a bus outage
// cannot fail a mutation that already reached the store.
type Notifier struct {
	pub     Publisher
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewNotifier wraps pub. metrics may be nil.
func NewNotifier(pub Publisher, metrics *observability.Metrics, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{pub: pub, metrics: metrics, logger: logger}
}

// RecordChanged announces that the record for username changed.
func (n *Notifier) RecordChanged(ctx context.Context, username string) {
	_ = n.publish(ctx, RecordChanged(username))
}

// WebhookRegistered announces that this instance registered username.
func (n *Notifier) WebhookRegistered(ctx context.Context, username string) {
	_ = n.publish(ctx, WebhookRegistered(username))
}

// EvictAll asks every instance to drop its bot cache.
func (n *Notifier) EvictAll(ctx context.Context) error {
	return n.publish(ctx, EvictAll())
}

func (n *Notifier) publish(ctx context.Context, msg Message) error {
	err := n.pub.Publish(ctx, msg)
	n.metrics.RecordPublish(string(msg.Kind), err == nil)
	if err != nil {
		n.logger.ErrorContext(ctx, "publish notification failed",
			"kind", msg.Kind,
			"key", msg.Key,
			"error", err,
		)
		return err
	}
	n.logger.DebugContext(ctx, "notification published", "kind", msg.Kind, "key", msg.Key)
	return nil
}
