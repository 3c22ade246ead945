package kafka_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/xraph/botrelay/notify"
	notifykafka "github.com/xraph/botrelay/notify/kafka"
)

func TestNewValidates(t *testing.T) {
	if _, err := notifykafka.New(notifykafka.Config{InstanceID: "inst_a"}, nil); err == nil {
		t.Fatal("expected error without brokers")
	}
	if _, err := notifykafka.New(notifykafka.Config{Brokers: []string{"localhost:9092"}}, nil); err == nil {
		t.Fatal("expected error without instance id")
	}
}

func TestGroupIDIsPerInstance(t *testing.T) {
	a, err := notifykafka.New(notifykafka.Config{Brokers: []string{"localhost:9092"}, InstanceID: "inst_a"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := notifykafka.New(notifykafka.Config{Brokers: []string{"localhost:9092"}, InstanceID: "inst_b"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if a.GroupID() == b.GroupID() {
		t.Fatalf("instances must not share a consumer group: %s", a.GroupID())
	}
	if a.GroupID() != "botrelay-inst_a" {
		t.Fatalf("unexpected group id %q", a.GroupID())
	}
}

func TestTopics(t *testing.T) {
	b, err := notifykafka.New(notifykafka.Config{
		Brokers:     []string{"localhost:9092"},
		TopicPrefix: "botrelay",
		InstanceID:  "inst_a",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, topic := range b.Topics() {
		if !strings.HasPrefix(topic, "botrelay.") {
			t.Fatalf("unexpected topic %q", topic)
		}
	}
	if len(b.Topics()) != len(notify.Kinds()) {
		t.Fatalf("expected one topic per kind, got %v", b.Topics())
	}
}

// Set BOTRELAY_TEST_KAFKA_BROKERS (comma separated) to run against a live
// cluster that allows topic auto-creation.
func TestBroadcastToEveryInstance(t *testing.T) {
	brokers := os.Getenv("BOTRELAY_TEST_KAFKA_BROKERS")
	if brokers == "" {
		t.Skip("BOTRELAY_TEST_KAFKA_BROKERS not set")
	}

	prefix := "botrelay-test-" + time.Now().Format("150405")
	newBus := func(inst string) *notifykafka.Bus {
		b, err := notifykafka.New(notifykafka.Config{
			Brokers:     strings.Split(brokers, ","),
			TopicPrefix: prefix,
			InstanceID:  inst,
		}, nil)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = b.Close() })
		return b
	}
	busA, busB := newBus("inst_a"), newBus("inst_b")

	ctx := context.Background()
	// Create the topics before the readers join.
	if err := busA.Publish(ctx, notify.EvictAll()); err != nil {
		t.Fatal(err)
	}

	gotA := make(chan notify.Message, 8)
	gotB := make(chan notify.Message, 8)
	if err := busA.Subscribe(ctx, func(_ context.Context, m notify.Message) error { gotA <- m; return nil }); err != nil {
		t.Fatal(err)
	}
	if err := busB.Subscribe(ctx, func(_ context.Context, m notify.Message) error { gotB <- m; return nil }); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(60 * time.Second)
	for _, ch := range []chan notify.Message{gotA, gotB} {
	wait:
		for {
			if err := busA.Publish(ctx, notify.RecordChanged("alice_bot")); err != nil {
				t.Fatal(err)
			}
			select {
			case m := <-ch:
				if m.Kind == notify.KindRecordChanged && m.Key == "alice_bot" {
					break wait
				}
			case <-time.After(2 * time.Second):
			case <-deadline:
				t.Fatal("timed out waiting for notification")
			}
		}
	}
}
