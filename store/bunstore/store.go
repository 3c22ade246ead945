// Package bunstore implements the bot store on the Bun ORM. SQLite and
// PostgreSQL are supported through Open.
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/xraph/botrelay/bot"
	"github.com/xraph/botrelay/id"
	botstore "github.com/xraph/botrelay/store"
)

// compile-time interface check
var _ botstore.Store = (*Store)(nil)

// Store implements store.Store using the Bun ORM.
type Store struct {
	db *bun.DB
}

// New creates a new Bun-backed store.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying Bun database for direct access.
func (s *Store) DB() *bun.DB { return s.db }

// Migrate creates the bots table and its indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*botModel)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("botrelay/bunstore: create table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_botrelay_bots_enabled ON botrelay_bots (enabled)",
		"CREATE INDEX IF NOT EXISTS idx_botrelay_bots_created ON botrelay_bots (created_at)",
	}
	for _, ddl := range indexes {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("botrelay/bunstore: create index: %w", err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateBot(ctx context.Context, b *bot.Bot) error {
	_, err := s.db.NewInsert().Model(toBotModel(b)).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return bot.ErrUsernameTaken
		}
		return err
	}
	return nil
}

func (s *Store) GetBot(ctx context.Context, botID id.ID) (*bot.Bot, error) {
	return s.getBy(ctx, "id = ?", botID.String())
}

func (s *Store) GetBotByUsername(ctx context.Context, username string) (*bot.Bot, error) {
	return s.getBy(ctx, "username = ?", username)
}

func (s *Store) getBy(ctx context.Context, where string, arg any) (*bot.Bot, error) {
	m := new(botModel)
	err := s.db.NewSelect().
		Model(m).
		Where(where, arg).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bot.ErrNotFound
		}
		return nil, err
	}
	return fromBotModel(m)
}

func (s *Store) UpdateBot(ctx context.Context, b *bot.Bot) error {
	m := toBotModel(b)
	res, err := s.db.NewUpdate().
		Model(m).
		Column("username", "token", "enabled", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return bot.ErrUsernameTaken
		}
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return bot.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteBot(ctx context.Context, botID id.ID) error {
	res, err := s.db.NewDelete().
		Model((*botModel)(nil)).
		Where("id = ?", botID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return bot.ErrNotFound
	}
	return nil
}

func (s *Store) ListBots(ctx context.Context, opts bot.ListOpts) ([]*bot.Bot, error) {
	var models []botModel
	q := s.db.NewSelect().Model(&models)
	if opts.Enabled != nil {
		q = q.Where("enabled = ?", *opts.Enabled)
	}
	switch {
	case opts.Limit > 0:
		q = q.Limit(opts.Limit)
	case opts.Offset > 0 && s.db.Dialect().Name() == dialect.SQLite:
		// SQLite rejects OFFSET without LIMIT.
		q = q.Limit(-1)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.Order("created_at ASC", "id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*bot.Bot, len(models))
	for i := range models {
		b, err := fromBotModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = b
	}
	return result, nil
}

func (s *Store) CountBots(ctx context.Context, opts bot.ListOpts) (int64, error) {
	q := s.db.NewSelect().Model((*botModel)(nil))
	if opts.Enabled != nil {
		q = q.Where("enabled = ?", *opts.Enabled)
	}
	n, err := q.Count(ctx)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}
