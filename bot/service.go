package bot

import (
	"context"
	"errors"
	"log/slog"
	"regexp"

	"github.com/xraph/botrelay/id"
	"github.com/xraph/botrelay/internal/entity"
)

// Registrar is the slice of the webhook coordinator the mutation path uses.
type Registrar interface {
	Register(ctx context.Context, b *Bot) bool
	Deregister(ctx context.Context, username string) bool
	// DeregisterBot removes the webhook registered for b using b's own
	// token, for records the directory can no longer resolve by name.
	DeregisterBot(ctx context.Context, b *Bot) bool
	IsRegistered(username string) bool
}

// Notifier announces mutations to other instances. Implementations must
// not fail the caller.
type Notifier interface {
	RecordChanged(ctx context.Context, username string)
	WebhookRegistered(ctx context.Context, username string)
}

type nopNotifier struct{}

func (nopNotifier) RecordChanged(context.Context, string)     {}
func (nopNotifier) WebhookRegistered(context.Context, string) {}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{5,32}$`)

// Service is the record-mutation path. Every successful mutation keeps
// the webhook registration in step, evicts local cache entries and
// announces the change on the bus.
type Service struct {
	store     Store
	registrar Registrar
	cache     Cache
	notifier  Notifier
	logger    *slog.Logger
}

// NewService creates a Service. cache and notifier may be nil.
func NewService(store Store, registrar Registrar, cache Cache, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		cache = nopCache{}
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Service{
		store:     store,
		registrar: registrar,
		cache:     cache,
		notifier:  notifier,
		logger:    logger,
	}
}

// Create stores a new bot, enabled unless in.Enabled says otherwise, and
// registers its webhook when enabled.
func (svc *Service) Create(ctx context.Context, in Input) (*Bot, error) {
	if err := validateUsername(in.Username); err != nil {
		return nil, err
	}
	if in.Token == "" {
		return nil, &ValidationError{Field: "token", Message: "required"}
	}

	enabled := true
	if in.Enabled != nil {
		enabled = *in.Enabled
	}

	b := &Bot{
		Entity:   entity.New(),
		ID:       id.NewBotID(),
		Username: in.Username,
		Token:    in.Token,
		Enabled:  enabled,
	}

	svc.logger.InfoContext(ctx, "creating bot", "username", b.Username)
	return svc.save(ctx, b, nil)
}

// Update applies in to an existing bot. Empty fields keep stored values.
func (svc *Service) Update(ctx context.Context, botID id.ID, in Input) (*Bot, error) {
	prev, err := svc.store.GetBot(ctx, botID)
	if err != nil {
		return nil, err
	}

	b := prev.Clone()
	if in.Username != "" {
		if err := validateUsername(in.Username); err != nil {
			return nil, err
		}
		b.Username = in.Username
	}
	if in.Token != "" {
		b.Token = in.Token
	}
	if in.Enabled != nil {
		b.Enabled = *in.Enabled
	}
	b.Touch()

	svc.logger.InfoContext(ctx, "updating bot", "bot_id", botID, "username", b.Username)
	return svc.save(ctx, b, prev)
}

// save persists b and reconciles its webhook. prev is nil for new bots.
func (svc *Service) save(ctx context.Context, b, prev *Bot) (*Bot, error) {
	isNew := prev == nil
	wasEnabled := !isNew && prev.Enabled
	renamed := !isNew && prev.Username != b.Username

	var err error
	if isNew {
		err = svc.store.CreateBot(ctx, b)
	} else {
		err = svc.store.UpdateBot(ctx, b)
	}
	if err != nil {
		return nil, err
	}

	// The old webhook URL embeds the old username. prev still carries the
	// token it was registered with.
	if renamed && svc.registrar.IsRegistered(prev.Username) {
		svc.registrar.DeregisterBot(ctx, prev)
	}

	if renamed {
		svc.cache.EvictUsername(prev.Username)
	}
	svc.cache.Evict(UsernameKey(b.Username), IDKey(b.ID))

	registered := false
	switch {
	case b.Enabled:
		if isNew || !wasEnabled || !svc.registrar.IsRegistered(b.Username) {
			registered = svc.registrar.Register(ctx, b)
			if !registered {
				svc.logger.WarnContext(ctx, "bot saved but webhook registration failed", "username", b.Username)
			}
		}
	case wasEnabled:
		if svc.registrar.IsRegistered(b.Username) {
			svc.registrar.Deregister(ctx, b.Username)
		}
	}

	if renamed {
		svc.notifier.RecordChanged(ctx, prev.Username)
	}
	svc.notifier.RecordChanged(ctx, b.Username)
	if registered {
		svc.notifier.WebhookRegistered(ctx, b.Username)
	}
	return b, nil
}

// Enable turns a bot on and registers its webhook. Enabling an enabled bot
// is a no-op.
func (svc *Service) Enable(ctx context.Context, botID id.ID) (*Bot, error) {
	b, err := svc.Get(ctx, botID)
	if err != nil {
		return nil, err
	}
	if b.Enabled {
		svc.logger.InfoContext(ctx, "bot already enabled", "username", b.Username)
		return b, nil
	}

	b.Enabled = true
	b.Touch()
	if err := svc.store.UpdateBot(ctx, b); err != nil {
		return nil, err
	}
	svc.cache.Evict(UsernameKey(b.Username), IDKey(b.ID))

	registered := svc.registrar.Register(ctx, b)
	if !registered {
		svc.logger.WarnContext(ctx, "bot enabled but webhook registration failed", "username", b.Username)
	}

	svc.notifier.RecordChanged(ctx, b.Username)
	if registered {
		svc.notifier.WebhookRegistered(ctx, b.Username)
	}
	return b, nil
}

// Disable turns a bot off and deregisters its webhook. Disabling a
// disabled bot is a no-op.
func (svc *Service) Disable(ctx context.Context, botID id.ID) (*Bot, error) {
	b, err := svc.Get(ctx, botID)
	if err != nil {
		return nil, err
	}
	if !b.Enabled {
		svc.logger.InfoContext(ctx, "bot already disabled", "username", b.Username)
		return b, nil
	}

	b.Enabled = false
	b.Touch()
	if err := svc.store.UpdateBot(ctx, b); err != nil {
		return nil, err
	}
	svc.cache.Evict(UsernameKey(b.Username), IDKey(b.ID))

	if svc.registrar.IsRegistered(b.Username) {
		svc.registrar.Deregister(ctx, b.Username)
	}

	svc.notifier.RecordChanged(ctx, b.Username)
	return b, nil
}

// Delete removes the record and then its webhook. A failed delete leaves
// the registration untouched.
func (svc *Service) Delete(ctx context.Context, botID id.ID) error {
	b, err := svc.store.GetBot(ctx, botID)
	if err != nil {
		return err
	}

	if err := svc.store.DeleteBot(ctx, botID); err != nil {
		return err
	}
	svc.cache.Evict(UsernameKey(b.Username), IDKey(b.ID))

	if svc.registrar.IsRegistered(b.Username) {
		svc.registrar.DeregisterBot(ctx, b)
	}
	svc.notifier.RecordChanged(ctx, b.Username)

	svc.logger.InfoContext(ctx, "bot deleted", "username", b.Username)
	return nil
}

// Get returns a bot by ID through the cache.
func (svc *Service) Get(ctx context.Context, botID id.ID) (*Bot, error) {
	return svc.cache.Get(ctx, IDKey(botID), func(ctx context.Context) (*Bot, error) {
		return svc.store.GetBot(ctx, botID)
	})
}

// GetByUsername returns a bot by username through the cache.
func (svc *Service) GetByUsername(ctx context.Context, username string) (*Bot, error) {
	return svc.cache.Get(ctx, UsernameKey(username), func(ctx context.Context) (*Bot, error) {
		return svc.store.GetBotByUsername(ctx, username)
	})
}

// List returns bots from the store.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Bot, error) {
	return svc.store.ListBots(ctx, opts)
}

// ListEnabled returns every enabled bot.
func (svc *Service) ListEnabled(ctx context.Context) ([]*Bot, error) {
	return svc.store.ListBots(ctx, EnabledOnly())
}

// Count returns the number of bots.
func (svc *Service) Count(ctx context.Context) (int64, error) {
	return svc.store.CountBots(ctx, ListOpts{})
}

// CountEnabled returns the number of enabled bots.
func (svc *Service) CountEnabled(ctx context.Context) (int64, error) {
	return svc.store.CountBots(ctx, EnabledOnly())
}

// Exists reports whether a bot with username is stored. It reads the
// store directly.
func (svc *Service) Exists(ctx context.Context, username string) (bool, error) {
	_, err := svc.store.GetBotByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ExistsAndEnabled reports whether username names an enabled bot. It reads
// through the cache and is used to gate inbound updates.
func (svc *Service) ExistsAndEnabled(ctx context.Context, username string) (bool, error) {
	b, err := svc.GetByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return b.Enabled, nil
}

// EvictAll drops this instance's cached records.
func (svc *Service) EvictAll(ctx context.Context) {
	svc.cache.EvictAll()
	n, err := svc.store.CountBots(ctx, ListOpts{})
	if err != nil {
		svc.logger.InfoContext(ctx, "bot cache cleared")
		return
	}
	svc.logger.InfoContext(ctx, "bot cache cleared", "bots", n)
}

func validateUsername(username string) error {
	if username == "" {
		return &ValidationError{Field: "username", Message: "required"}
	}
	if !usernamePattern.MatchString(username) {
		return &ValidationError{Field: "username", Message: "must be 5-32 letters, digits or underscores"}
	}
	return nil
}
