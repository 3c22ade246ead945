package notify

import (
	"context"
	"log/slog"

	"github.com/xraph/botrelay/observability"
)

// Evicter is the cache surface the listener needs.
type Evicter interface {
	EvictUsername(username string)
	EvictAll()
}

// StateUpdater is the coordinator surface the listener needs. It must
// never trigger a remote call.
type StateUpdater interface {
	UpdateLocalState(username string, registered bool)
}

// Listener applies bus messages to the local cache and registration state.
type Listener struct {
	cache   Evicter
	state   StateUpdater
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewListener creates a Listener. metrics may be nil.
func NewListener(cache Evicter, state StateUpdater, metrics *observability.Metrics, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		cache:   cache,
		state:   state,
		metrics: metrics,
		logger:  logger,
	}
}

// Handle applies one message. It never fails; unknown kinds are dropped.
func (l *Listener) Handle(ctx context.Context, msg Message) error {
	switch msg.Kind {
	case KindEvictAll:
		l.cache.EvictAll()
		l.logger.InfoContext(ctx, "bot cache cleared by notification")
	case KindRecordChanged:
		l.cache.EvictUsername(msg.Key)
		l.logger.DebugContext(ctx, "bot cache entry evicted by notification", "username", msg.Key)
	case KindWebhookRegistered:
		l.state.UpdateLocalState(msg.Key, true)
		l.logger.DebugContext(ctx, "webhook registered elsewhere", "username", msg.Key)
	default:
		l.logger.DebugContext(ctx, "ignoring notification", "kind", msg.Kind)
		return nil
	}
	l.metrics.RecordReceive(string(msg.Kind))
	return nil
}
