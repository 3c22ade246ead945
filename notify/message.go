// Package notify carries cross-instance invalidation messages.
//
// Every botrelay instance subscribes to the bus and converges its local
// cache and webhook registration state from what other instances publish.
// Delivery is at-least-once and unordered; every handler is idempotent.
package notify

import (
	"context"
	"fmt"
	"strings"
)

// Kind names a message type. Drivers use it as the topic or channel suffix.
type Kind string

const (
	// KindEvictAll drops every cached bot record.
	KindEvictAll Kind = "bot-cache-clear"

	// KindRecordChanged evicts the cached record for Key.
	KindRecordChanged Kind = "bot-update"

	// KindWebhookRegistered marks Key as registered without a remote call.
	KindWebhookRegistered Kind = "webhook-registered"
)

// Kinds lists every message kind.
func Kinds() []Kind {
	return []Kind{KindEvictAll, KindRecordChanged, KindWebhookRegistered}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindEvictAll, KindRecordChanged, KindWebhookRegistered:
		return true
	}
	return false
}

// evictAllPayload is the wire payload of an EvictAll message.
const evictAllPayload = "*"

// Message is one bus notification. Key is a bot username, empty for
// KindEvictAll.
type Message struct {
	Kind Kind   `json:"kind"`
	Key  string `json:"key,omitempty"`
}

// EvictAll builds an evict-all message.
func EvictAll() Message { return Message{Kind: KindEvictAll} }

// RecordChanged builds a record-changed message for username.
func RecordChanged(username string) Message {
	return Message{Kind: KindRecordChanged, Key: username}
}

// WebhookRegistered builds a registered-elsewhere message for username.
func WebhookRegistered(username string) Message {
	return Message{Kind: KindWebhookRegistered, Key: username}
}

// Topic returns the topic/channel name for kind under prefix.
func Topic(prefix string, kind Kind) string {
	if prefix == "" {
		return string(kind)
	}
	return prefix + "." + string(kind)
}

// Payload returns the single-string wire payload of m.
func (m Message) Payload() string {
	if m.Kind == KindEvictAll {
		return evictAllPayload
	}
	return m.Key
}

// Decode rebuilds a Message from a topic name and payload.
func Decode(prefix, topic, payload string) (Message, error) {
	name := topic
	if prefix != "" {
		name = strings.TrimPrefix(topic, prefix+".")
	}
	kind := Kind(name)
	if !kind.Valid() {
		return Message{}, fmt.Errorf("notify: unknown topic %q", topic)
	}
	if kind == KindEvictAll {
		return EvictAll(), nil
	}
	if payload == "" {
		return Message{}, fmt.Errorf("notify: empty key on %q", topic)
	}
	return Message{Kind: kind, Key: payload}, nil
}

// Publisher sends messages to every subscribed instance.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Handler processes one delivered message.
type Handler func(ctx context.Context, msg Message) error

// Bus is a broadcast publish/subscribe channel.
type Bus interface {
	Publisher

	// Subscribe starts delivering messages to h in a background goroutine
	// until ctx is cancelled or the bus is closed.
	Subscribe(ctx context.Context, h Handler) error

	// Close stops subscriptions and releases resources. It waits for
	// running handlers to return.
	Close() error
}
