// Package storetest is a conformance suite run against every Store backend.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/botrelay/bot"
	"github.com/xraph/botrelay/id"
	"github.com/xraph/botrelay/internal/entity"
	"github.com/xraph/botrelay/store"
)

// Factory returns a fresh, migrated, empty store.
type Factory func(t *testing.T) store.Store

func ctx() context.Context { return context.Background() }

// NewBot returns an unsaved bot with distinct timestamps per call.
func NewBot(username string, enabled bool) *bot.Bot {
	time.Sleep(2 * time.Millisecond)
	e := entity.New()
	e.CreatedAt = e.CreatedAt.Truncate(time.Millisecond)
	e.UpdatedAt = e.CreatedAt
	return &bot.Bot{
		Entity:   e,
		ID:       id.NewBotID(),
		Username: username,
		Token:    "123:" + username,
		Enabled:  enabled,
	}
}

// Run executes the suite.
func Run(t *testing.T, newStore Factory) {
	t.Run("CRUD", func(t *testing.T) { testCRUD(t, newStore(t)) })
	t.Run("UsernameUnique", func(t *testing.T) { testUsernameUnique(t, newStore(t)) })
	t.Run("Rename", func(t *testing.T) { testRename(t, newStore(t)) })
	t.Run("ListAndCount", func(t *testing.T) { testListAndCount(t, newStore(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newStore(t)) })
}

func testCRUD(t *testing.T, s store.Store) {
	b := NewBot("alice_bot", true)
	if err := s.CreateBot(ctx(), b); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetBot(ctx(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Username != "alice_bot" || got.Token != b.Token || !got.Enabled {
		t.Fatalf("unexpected bot %+v", got)
	}

	got, err = s.GetBotByUsername(ctx(), "alice_bot")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != b.ID {
		t.Fatalf("expected %s, got %s", b.ID, got.ID)
	}

	got.Enabled = false
	got.Token = "123:rotated"
	if err := s.UpdateBot(ctx(), got); err != nil {
		t.Fatal(err)
	}
	again, err := s.GetBot(ctx(), b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again.Enabled || again.Token != "123:rotated" {
		t.Fatalf("update not persisted: %+v", again)
	}

	if err := s.DeleteBot(ctx(), b.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetBot(ctx(), b.ID); !errors.Is(err, bot.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := s.GetBotByUsername(ctx(), "alice_bot"); !errors.Is(err, bot.ErrNotFound) {
		t.Fatalf("expected ErrNotFound by username after delete, got %v", err)
	}
}

func testUsernameUnique(t *testing.T, s store.Store) {
	if err := s.CreateBot(ctx(), NewBot("alice_bot", true)); err != nil {
		t.Fatal(err)
	}
	err := s.CreateBot(ctx(), NewBot("alice_bot", true))
	if !errors.Is(err, bot.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func testRename(t *testing.T, s store.Store) {
	a := NewBot("alice_bot", true)
	b := NewBot("bobby_bot", true)
	for _, x := range []*bot.Bot{a, b} {
		if err := s.CreateBot(ctx(), x); err != nil {
			t.Fatal(err)
		}
	}

	a.Username = "alice_two"
	if err := s.UpdateBot(ctx(), a); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetBotByUsername(ctx(), "alice_bot"); !errors.Is(err, bot.ErrNotFound) {
		t.Fatalf("old username should be gone, got %v", err)
	}
	if got, err := s.GetBotByUsername(ctx(), "alice_two"); err != nil || got.ID != a.ID {
		t.Fatalf("expected renamed bot, got %v, %v", got, err)
	}

	a.Username = "bobby_bot"
	if err := s.UpdateBot(ctx(), a); !errors.Is(err, bot.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func testListAndCount(t *testing.T, s store.Store) {
	names := []string{"bot_one", "bot_two", "bot_three", "bot_four"}
	for i, n := range names {
		if err := s.CreateBot(ctx(), NewBot(n, i%2 == 0)); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ListBots(ctx(), bot.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4, got %d", len(all))
	}
	for i, n := range names {
		if all[i].Username != n {
			t.Fatalf("expected creation order %v, got %s at %d", names, all[i].Username, i)
		}
	}

	enabled, err := s.ListBots(ctx(), bot.EnabledOnly())
	if err != nil {
		t.Fatal(err)
	}
	if len(enabled) != 2 {
		t.Fatalf("expected 2 enabled, got %d", len(enabled))
	}

	page, err := s.ListBots(ctx(), bot.ListOpts{Offset: 1, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].Username != "bot_two" {
		t.Fatalf("unexpected page %v", usernames(page))
	}

	n, err := s.CountBots(ctx(), bot.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Fatalf("expected count 4, got %d", n)
	}
	n, err = s.CountBots(ctx(), bot.EnabledOnly())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected enabled count 2, got %d", n)
	}
}

func testNotFound(t *testing.T, s store.Store) {
	missing := NewBot("ghost_bot", true)
	if err := s.UpdateBot(ctx(), missing); !errors.Is(err, bot.ErrNotFound) {
		t.Fatalf("update: expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteBot(ctx(), missing.ID); !errors.Is(err, bot.ErrNotFound) {
		t.Fatalf("delete: expected ErrNotFound, got %v", err)
	}
}

func usernames(bots []*bot.Bot) []string {
	out := make([]string, len(bots))
	for i, b := range bots {
		out[i] = b.Username
	}
	return out
}
