package botrelay_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xraph/botrelay"
	notifymem "github.com/xraph/botrelay/notify/memory"
	"github.com/xraph/botrelay/store/memory"
)

type fakeClient struct {
	mu   sync.Mutex
	sets map[string]string // token -> url
	dels int
}

func newFakeClient() *fakeClient {
	return &fakeClient{sets: map[string]string{}}
}

func (f *fakeClient) SetWebhook(_ context.Context, token, url, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets[token] = url
	return nil
}

func (f *fakeClient) DeleteWebhook(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sets, token)
	f.dels++
	return nil
}

func (f *fakeClient) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sets)
}

func ctx() context.Context { return context.Background() }

func enabled(v bool) *bool { return &v }

func setup(t *testing.T, opts ...botrelay.Option) (*botrelay.Relay, *fakeClient) {
	t.Helper()
	client := newFakeClient()
	base := []botrelay.Option{
		botrelay.WithStore(memory.New()),
		botrelay.WithClient(client),
		botrelay.WithWebhookDomain("https://bots.example.com"),
	}
	r, err := botrelay.New(append(base, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return r, client
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNewRequiresStore(t *testing.T) {
	_, err := botrelay.New(
		botrelay.WithClient(newFakeClient()),
		botrelay.WithWebhookDomain("https://bots.example.com"),
	)
	if !errors.Is(err, botrelay.ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
}

func TestNewRequiresClient(t *testing.T) {
	_, err := botrelay.New(
		botrelay.WithStore(memory.New()),
		botrelay.WithWebhookDomain("https://bots.example.com"),
	)
	if !errors.Is(err, botrelay.ErrNoClient) {
		t.Fatalf("expected ErrNoClient, got %v", err)
	}
}

func TestNewRequiresWebhookDomain(t *testing.T) {
	_, err := botrelay.New(
		botrelay.WithStore(memory.New()),
		botrelay.WithClient(newFakeClient()),
	)
	if !errors.Is(err, botrelay.ErrNoWebhookDomain) {
		t.Fatalf("expected ErrNoWebhookDomain, got %v", err)
	}
}

func TestDefaults(t *testing.T) {
	r, _ := setup(t)
	if !strings.HasPrefix(r.InstanceID(), "inst_") {
		t.Errorf("InstanceID = %q, want inst_ prefix", r.InstanceID())
	}
	cfg := r.Config()
	if cfg.RegisterPath != "/webhook" {
		t.Errorf("RegisterPath = %q", cfg.RegisterPath)
	}
	if got := r.Coordinator().URL("my_bot"); got != "https://bots.example.com/webhook/my_bot" {
		t.Errorf("URL = %q", got)
	}
}

func TestStartRegistersEnabledBots(t *testing.T) {
	s := memory.New()
	seed, _ := setup(t, botrelay.WithStore(s))
	for _, in := range []botrelay.Input{
		{Username: "alpha_bot", Token: "tok-a"},
		{Username: "bravo_bot", Token: "tok-b"},
		{Username: "charlie_bot", Token: "tok-c", Enabled: enabled(false)},
	} {
		if _, err := seed.Bots().Create(ctx(), in); err != nil {
			t.Fatal(err)
		}
	}

	r, client := setup(t, botrelay.WithStore(s))
	if err := r.Start(ctx()); err != nil {
		t.Fatal(err)
	}
	if got := r.Coordinator().Len(); got != 2 {
		t.Fatalf("registered = %d, want 2", got)
	}
	if client.live() != 2 {
		t.Fatalf("live webhooks = %d, want 2", client.live())
	}

	if err := r.Stop(ctx()); err != nil {
		t.Fatal(err)
	}
	if r.Coordinator().Len() != 0 {
		t.Fatal("expected empty registration set after Stop")
	}
	if client.live() != 0 {
		t.Fatalf("live webhooks after Stop = %d, want 0", client.live())
	}
}

func TestSecretKeyIsSentOnRegister(t *testing.T) {
	var got string
	client := &secretClient{onSet: func(secret string) { got = secret }}
	r, err := botrelay.New(
		botrelay.WithStore(memory.New()),
		botrelay.WithClient(client),
		botrelay.WithWebhookDomain("https://bots.example.com"),
		botrelay.WithSecretKey("k3y"),
	)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Bots().Create(ctx(), botrelay.Input{Username: "secret_bot", Token: "tok"}); err != nil {
		t.Fatal(err)
	}
	if got == "" {
		t.Fatal("expected a secret token on setWebhook")
	}
}

type secretClient struct {
	onSet func(secret string)
}

func (c *secretClient) SetWebhook(_ context.Context, _, _, secret string) error {
	c.onSet(secret)
	return nil
}

func (c *secretClient) DeleteWebhook(context.Context, string) error { return nil }

func TestInstancesConverge(t *testing.T) {
	s := memory.New()
	bus := notifymem.New(nil)
	t.Cleanup(func() { _ = bus.Close() })

	a, clientA := setup(t, botrelay.WithStore(s), botrelay.WithBus(bus), botrelay.WithInstanceID("inst_a"))
	b, clientB := setup(t, botrelay.WithStore(s), botrelay.WithBus(bus), botrelay.WithInstanceID("inst_b"))
	for _, r := range []*botrelay.Relay{a, b} {
		if err := r.Start(ctx()); err != nil {
			t.Fatal(err)
		}
	}

	created, err := a.Bots().Create(ctx(), botrelay.Input{Username: "shared_bot", Token: "tok-s"})
	if err != nil {
		t.Fatal(err)
	}
	if !a.Coordinator().IsRegistered("shared_bot") {
		t.Fatal("expected instance A to record the webhook")
	}
	eventually(t, "instance B to learn about the webhook", func() bool {
		return b.Coordinator().IsRegistered("shared_bot")
	})
	if clientB.live() != 0 {
		t.Fatal("instance B must not call the provider for a peer registration")
	}
	if clientA.live() != 1 {
		t.Fatalf("instance A live webhooks = %d, want 1", clientA.live())
	}

	// Warm B's cache, then change the record on A.
	ok, err := b.Bots().ExistsAndEnabled(ctx(), "shared_bot")
	if err != nil || !ok {
		t.Fatalf("ExistsAndEnabled on B = %v, %v", ok, err)
	}
	if _, err := a.Bots().Disable(ctx(), created.ID); err != nil {
		t.Fatal(err)
	}
	eventually(t, "instance B to drop its cached record", func() bool {
		ok, err := b.Bots().ExistsAndEnabled(ctx(), "shared_bot")
		return err == nil && !ok
	})
}

func TestBroadcastEvictAll(t *testing.T) {
	r, _ := setup(t)
	if err := r.Start(ctx()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = r.Stop(ctx()) })

	if _, err := r.Bots().Create(ctx(), botrelay.Input{Username: "cached_bot", Token: "tok"}); err != nil {
		t.Fatal(err)
	}
	eventually(t, "cache warm", func() bool {
		if _, err := r.Bots().GetByUsername(ctx(), "cached_bot"); err != nil {
			t.Fatal(err)
		}
		return r.Cache().Len() > 0
	})

	if err := r.BroadcastEvictAll(ctx()); err != nil {
		t.Fatal(err)
	}
	eventually(t, "cache cleared", func() bool { return r.Cache().Len() == 0 })
}

func TestStopIsSafeWithoutStart(t *testing.T) {
	r, _ := setup(t)
	if err := r.Stop(ctx()); err != nil {
		t.Fatal(err)
	}
}
