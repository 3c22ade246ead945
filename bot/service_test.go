package bot_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/xraph/botrelay/bot"
	"github.com/xraph/botrelay/botcache"
	"github.com/xraph/botrelay/id"
	"github.com/xraph/botrelay/store/memory"
	"github.com/xraph/botrelay/webhook"
)

func ctx() context.Context { return context.Background() }

func boolPtr(b bool) *bool { return &b }

type fakeClient struct {
	mu      sync.Mutex
	sets    map[string]int
	deletes map[string]int
	fail    bool
}

func (f *fakeClient) SetWebhook(_ context.Context, token, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("provider unavailable")
	}
	f.sets[token]++
	return nil
}

func (f *fakeClient) DeleteWebhook(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes[token]++
	return nil
}

// failingDeleteStore rejects every delete.
type failingDeleteStore struct {
	*memory.Store
}

func (failingDeleteStore) DeleteBot(context.Context, id.ID) error {
	return errors.New("database is locked")
}

type event struct{ kind, username string }

type fakeNotifier struct {
	mu     sync.Mutex
	events []event
}

func (n *fakeNotifier) RecordChanged(_ context.Context, username string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event{"changed", username})
}

func (n *fakeNotifier) WebhookRegistered(_ context.Context, username string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event{"registered", username})
}

func (n *fakeNotifier) has(kind, username string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e.kind == kind && e.username == username {
			return true
		}
	}
	return false
}

func (n *fakeNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = nil
}

type fixture struct {
	svc      *bot.Service
	store    bot.Store
	coord    *webhook.Coordinator
	client   *fakeClient
	notifier *fakeNotifier
	cache    *botcache.Cache
}

func setup(t *testing.T) *fixture {
	t.Helper()
	return setupWithStore(t, memory.New())
}

func setupWithStore(t *testing.T, s bot.Store) *fixture {
	t.Helper()
	client := &fakeClient{sets: map[string]int{}, deletes: map[string]int{}}
	coord := webhook.NewCoordinator(client, webhook.NewDirectory(s), webhook.Config{
		WebhookDomain: "https://bots.example.com",
		RegisterPath:  "/webhook",
	}, nil)
	cache := botcache.New(botcache.Config{Size: 64}, nil, nil)
	notifier := &fakeNotifier{}
	return &fixture{
		svc:      bot.NewService(s, coord, cache, notifier, nil),
		store:    s,
		coord:    coord,
		client:   client,
		notifier: notifier,
		cache:    cache,
	}
}

func TestCreateRegistersAndPublishes(t *testing.T) {
	f := setup(t)

	b, err := f.svc.Create(ctx(), bot.Input{Username: "alice_bot", Token: "tok-a"})
	if err != nil {
		t.Fatal(err)
	}
	if b.ID.Prefix() != id.PrefixBot {
		t.Fatalf("expected bot prefix, got %q", b.ID.Prefix())
	}
	if !b.Enabled {
		t.Fatal("expected enabled by default")
	}
	if !f.coord.IsRegistered("alice_bot") {
		t.Fatal("expected webhook registered")
	}
	if f.client.sets["tok-a"] != 1 {
		t.Fatalf("expected 1 setWebhook, got %d", f.client.sets["tok-a"])
	}
	if !f.notifier.has("changed", "alice_bot") || !f.notifier.has("registered", "alice_bot") {
		t.Fatalf("expected changed+registered notifications, got %v", f.notifier.events)
	}
}

func TestCreateDisabledDoesNotRegister(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Create(ctx(), bot.Input{Username: "alice_bot", Token: "tok-a", Enabled: boolPtr(false)})
	if err != nil {
		t.Fatal(err)
	}
	if f.coord.IsRegistered("alice_bot") {
		t.Fatal("disabled bot must not be registered")
	}
	if f.notifier.has("registered", "alice_bot") {
		t.Fatal("unexpected registered notification")
	}
	if !f.notifier.has("changed", "alice_bot") {
		t.Fatal("expected changed notification")
	}
}

func TestCreateRegistrationFailureStillSaves(t *testing.T) {
	f := setup(t)
	f.client.fail = true

	b, err := f.svc.Create(ctx(), bot.Input{Username: "alice_bot", Token: "tok-a"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.GetBot(ctx(), b.ID); err != nil {
		t.Fatalf("expected bot persisted, got %v", err)
	}
	if f.coord.IsRegistered("alice_bot") {
		t.Fatal("failed registration must not be recorded")
	}
	if f.notifier.has("registered", "alice_bot") {
		t.Fatal("registered notification requires a successful registration")
	}
}

func TestCreateValidation(t *testing.T) {
	f := setup(t)

	cases := []bot.Input{
		{Token: "tok"},
		{Username: "ab", Token: "tok"},
		{Username: "has space", Token: "tok"},
		{Username: "alice_bot"},
	}
	for _, in := range cases {
		_, err := f.svc.Create(ctx(), in)
		var verr *bot.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("input %+v: expected ValidationError, got %v", in, err)
		}
	}
}

func TestCreateDuplicateUsername(t *testing.T) {
	f := setup(t)
	if _, err := f.svc.Create(ctx(), bot.Input{Username: "alice_bot", Token: "tok-a"}); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.Create(ctx(), bot.Input{Username: "alice_bot", Token: "tok-b"})
	if !errors.Is(err, bot.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestDisableDeregistersAndEnableRegisters(t *testing.T) {
	f := setup(t)
	b, _ := f.svc.Create(ctx(), bot.Input{Username: "alice_bot", Token: "tok-a"})

	got, err := f.svc.Disable(ctx(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Enabled {
		t.Fatal("expected disabled")
	}
	if f.coord.IsRegistered("alice_bot") {
		t.Fatal("expected webhook deregistered")
	}
	if f.client.deletes["tok-a"] != 1 {
		t.Fatalf("expected 1 deleteWebhook, got %d", f.client.deletes["tok-a"])
	}

	// Cached lookups must see the new state.
	ok, err := f.svc.ExistsAndEnabled(ctx(), "alice_bot")
	if err != nil || ok {
		t.Fatalf("expected disabled through cache, got %v, %v", ok, err)
	}

	f.notifier.reset()
	if _, err := f.svc.Enable(ctx(), b.ID); err != nil {
		t.Fatal(err)
	}
	if !f.coord.IsRegistered("alice_bot") {
		t.Fatal("expected webhook registered")
	}
	if !f.notifier.has("registered", "alice_bot") {
		t.Fatal("expected registered notification")
	}
	ok, _ = f.svc.ExistsAndEnabled(ctx(), "alice_bot")
	if !ok {
		t.Fatal("expected enabled through cache")
	}
}

func TestEnableAlreadyEnabledIsNoop(t *testing.T) {
	f := setup(t)
	b, _ := f.svc.Create(ctx(), bot.Input{Username: "alice_bot", Token: "tok-a"})
	f.notifier.reset()

	if _, err := f.svc.Enable(ctx(), b.ID); err != nil {
		t.Fatal(err)
	}
	if f.client.sets["tok-a"] != 1 {
		t.Fatalf("expected no extra setWebhook, got %d", f.client.sets["tok-a"])
	}
	if len(f.notifier.events) != 0 {
		t.Fatalf("expected no notifications, got %v", f.notifier.events)
	}
}

func TestUpdateReRegistersWhenNotRegistered(t *testing.T) {
	f := setup(t)
	f.client.fail = true
	b, _ := f.svc.Create(ctx(), bot.Input{Username: "alice_bot", Token: "tok-a"})
	f.client.fail = false

	// Still enabled, but this instance never managed to register.
	if _, err := f.svc.Update(ctx(), b.ID, bot.Input{Token: "tok-a2"}); err != nil {
		t.Fatal(err)
	}
	if !f.coord.IsRegistered("alice_bot") {
		t.Fatal("expected update to retry registration")
	}
	if f.client.sets["tok-a2"] != 1 {
		t.Fatalf("expected setWebhook with the new token, got %v", f.client.sets)
	}
}

func TestUpdateEnabledAndRegisteredSkipsRemote(t *testing.T) {
	f := setup(t)
	b, _ := f.svc.Create(ctx(), bot.Input{Username: "alice_bot", Token: "tok-a"})

	if _, err := f.svc.Update(ctx(), b.ID, bot.Input{}); err != nil {
		t.Fatal(err)
	}
	if f.client.sets["tok-a"] != 1 {
		t.Fatalf("expected no extra setWebhook, got %d", f.client.sets["tok-a"])
	}
}

func TestUpdateRenameMovesWebhookAndEvictsOldName(t *testing.T) {
	f := setup(t)
	b, _ := f.svc.Create(ctx(), bot.Input{Username: "alice_bot", Token: "tok-a"})

	// Warm the cache under the old name.
	if _, err := f.svc.GetByUsername(ctx(), "alice_bot"); err != nil {
		t.Fatal(err)
	}

	f.notifier.reset()
	if _, err := f.svc.Update(ctx(), b.ID, bot.Input{Username: "alice_new"}); err != nil {
		t.Fatal(err)
	}

	if f.coord.IsRegistered("alice_bot") {
		t.Fatal("old username should no longer be registered")
	}
	if !f.coord.IsRegistered("alice_new") {
		t.Fatal("new username should be registered")
	}
	if _, err := f.svc.GetByUsername(ctx(), "alice_bot"); !errors.Is(err, bot.ErrNotFound) {
		t.Fatalf("expected stale cache entry evicted, got %v", err)
	}
	if !f.notifier.has("changed", "alice_bot") || !f.notifier.has("changed", "alice_new") {
		t.Fatalf("expected changed for both names, got %v", f.notifier.events)
	}
}

func TestUpdateRenameConflictKeepsWebhook(t *testing.T) {
	f := setup(t)
	alice, _ := f.svc.Create(ctx(), bot.Input{Username: "alice_bot", Token: "tok-a"})
	_, _ = f.svc.Create(ctx(), bot.Input{Username: "bobby_bot", Token: "tok-b"})
	f.notifier.reset()

	_, err := f.svc.Update(ctx(), alice.ID, bot.Input{Username: "bobby_bot"})
	if !errors.Is(err, bot.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}

	stored, err := f.store.GetBot(ctx(), alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Username != "alice_bot" || !stored.Enabled {
		t.Fatalf("stored record changed: %+v", stored)
	}
	if !f.coord.IsRegistered("alice_bot") {
		t.Fatal("failed rename must keep the old registration")
	}
	if f.client.deletes["tok-a"] != 0 {
		t.Fatalf("failed rename must not delete the webhook, got %d deletes", f.client.deletes["tok-a"])
	}
	if len(f.notifier.events) != 0 {
		t.Fatalf("failed rename must not publish, got %v", f.notifier.events)
	}
}

func TestUpdateRenameWithNewTokenDeletesOldWebhook(t *testing.T) {
	f := setup(t)
	b, _ := f.svc.Create(ctx(), bot.Input{Username: "alice_bot", Token: "tok-a"})

	if _, err := f.svc.Update(ctx(), b.ID, bot.Input{Username: "alice_new", Token: "tok-a2"}); err != nil {
		t.Fatal(err)
	}
	if f.client.deletes["tok-a"] != 1 {
		t.Fatalf("expected the old webhook deleted with the old token, got %v", f.client.deletes)
	}
	if f.client.sets["tok-a2"] != 1 {
		t.Fatalf("expected the new webhook set with the new token, got %v", f.client.sets)
	}
	if f.coord.IsRegistered("alice_bot") || !f.coord.IsRegistered("alice_new") {
		t.Fatalf("registered = %v", f.coord.Registered())
	}
}

func TestUpdateDisableDeregisters(t *testing.T) {
	f := setup(t)
	b, _ := f.svc.Create(ctx(), bot.Input{Username: "alice_bot", Token: "tok-a"})

	if _, err := f.svc.Update(ctx(), b.ID, bot.Input{Enabled: boolPtr(false)}); err != nil {
		t.Fatal(err)
	}
	if f.coord.IsRegistered("alice_bot") {
		t.Fatal("expected deregistered")
	}
}

func TestUpdateNotFound(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Update(ctx(), id.NewBotID(), bot.Input{Token: "x"})
	if !errors.Is(err, bot.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteDeregistersWithStoredToken(t *testing.T) {
	f := setup(t)
	b, _ := f.svc.Create(ctx(), bot.Input{Username: "alice_bot", Token: "tok-a"})
	if _, err := f.svc.Get(ctx(), b.ID); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.Delete(ctx(), b.ID); err != nil {
		t.Fatal(err)
	}
	if f.client.deletes["tok-a"] != 1 {
		t.Fatalf("expected deleteWebhook with the stored token, got %v", f.client.deletes)
	}
	if f.coord.IsRegistered("alice_bot") {
		t.Fatal("expected deregistered")
	}
	if _, err := f.svc.Get(ctx(), b.ID); !errors.Is(err, bot.ErrNotFound) {
		t.Fatalf("expected ErrNotFound through cache, got %v", err)
	}
	if err := f.svc.Delete(ctx(), b.ID); !errors.Is(err, bot.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestDeleteFailureKeepsWebhook(t *testing.T) {
	f := setupWithStore(t, failingDeleteStore{memory.New()})
	b, _ := f.svc.Create(ctx(), bot.Input{Username: "alice_bot", Token: "tok-a"})
	f.notifier.reset()

	if err := f.svc.Delete(ctx(), b.ID); err == nil {
		t.Fatal("expected delete error")
	}
	if !f.coord.IsRegistered("alice_bot") {
		t.Fatal("failed delete must keep the registration")
	}
	if f.client.deletes["tok-a"] != 0 {
		t.Fatalf("failed delete must not delete the webhook, got %d", f.client.deletes["tok-a"])
	}
	if len(f.notifier.events) != 0 {
		t.Fatalf("failed delete must not publish, got %v", f.notifier.events)
	}
}

func TestCountsAndExists(t *testing.T) {
	f := setup(t)
	_, _ = f.svc.Create(ctx(), bot.Input{Username: "alice_bot", Token: "tok-a"})
	_, _ = f.svc.Create(ctx(), bot.Input{Username: "bobby_bot", Token: "tok-b", Enabled: boolPtr(false)})

	n, err := f.svc.Count(ctx())
	if err != nil || n != 2 {
		t.Fatalf("expected 2, got %d, %v", n, err)
	}
	n, err = f.svc.CountEnabled(ctx())
	if err != nil || n != 1 {
		t.Fatalf("expected 1 enabled, got %d, %v", n, err)
	}
	ok, err := f.svc.Exists(ctx(), "bobby_bot")
	if err != nil || !ok {
		t.Fatalf("expected bobby_bot to exist, got %v, %v", ok, err)
	}
	ok, _ = f.svc.ExistsAndEnabled(ctx(), "bobby_bot")
	if ok {
		t.Fatal("bobby_bot is disabled")
	}
	ok, _ = f.svc.Exists(ctx(), "ghost_bot")
	if ok {
		t.Fatal("ghost_bot should not exist")
	}

	enabled, err := f.svc.ListEnabled(ctx())
	if err != nil || len(enabled) != 1 || enabled[0].Username != "alice_bot" {
		t.Fatalf("unexpected enabled list %v, %v", enabled, err)
	}
}

func TestEvictAllDropsCache(t *testing.T) {
	f := setup(t)
	_, _ = f.svc.Create(ctx(), bot.Input{Username: "alice_bot", Token: "tok-a"})
	_, _ = f.svc.GetByUsername(ctx(), "alice_bot")
	if f.cache.Len() == 0 {
		t.Fatal("expected warm cache")
	}
	f.svc.EvictAll(ctx())
	if f.cache.Len() != 0 {
		t.Fatalf("expected empty cache, got %d", f.cache.Len())
	}
}
