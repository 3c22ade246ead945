package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/botrelay/bot"
	"github.com/xraph/botrelay/id"
	"github.com/xraph/botrelay/internal/entity"
)

// botModel is the JSON representation stored in Redis.
type botModel struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toBotModel(b *bot.Bot) *botModel {
	return &botModel{
		ID:        b.ID.String(),
		Username:  b.Username,
		Token:     b.Token,
		Enabled:   b.Enabled,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func fromBotModel(m *botModel) (*bot.Bot, error) {
	botID, err := id.ParseBotID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse bot ID %q: %w", m.ID, err)
	}
	return &bot.Bot{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:       botID,
		Username: m.Username,
		Token:    m.Token,
		Enabled:  m.Enabled,
	}, nil
}

func (s *Store) CreateBot(ctx context.Context, b *bot.Bot) error {
	m := toBotModel(b)

	// The username index doubles as the uniqueness lock.
	ok, err := s.rdb.SetNX(ctx, uniqueBotUsername+m.Username, m.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("botrelay/redis: reserve username: %w", err)
	}
	if !ok {
		return bot.ErrUsernameTaken
	}

	raw, err := marshalEntity(m)
	if err != nil {
		s.rdb.Del(ctx, uniqueBotUsername+m.Username)
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, entityKey(prefixBot, m.ID), raw, 0)
	pipe.ZAdd(ctx, zBotAll, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	if m.Enabled {
		pipe.SAdd(ctx, sBotEnabled, m.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.rdb.Del(ctx, uniqueBotUsername+m.Username)
		return fmt.Errorf("botrelay/redis: create bot: %w", err)
	}
	return nil
}

func (s *Store) GetBot(ctx context.Context, botID id.ID) (*bot.Bot, error) {
	var m botModel
	if err := s.getEntity(ctx, entityKey(prefixBot, botID.String()), &m); err != nil {
		if isRedisNil(err) {
			return nil, bot.ErrNotFound
		}
		return nil, fmt.Errorf("botrelay/redis: get bot: %w", err)
	}
	return fromBotModel(&m)
}

func (s *Store) GetBotByUsername(ctx context.Context, username string) (*bot.Bot, error) {
	botID, err := s.rdb.Get(ctx, uniqueBotUsername+username).Result()
	if err != nil {
		if isRedisNil(err) {
			return nil, bot.ErrNotFound
		}
		return nil, fmt.Errorf("botrelay/redis: get bot by username: %w", err)
	}

	var m botModel
	if err := s.getEntity(ctx, entityKey(prefixBot, botID), &m); err != nil {
		if isRedisNil(err) {
			return nil, bot.ErrNotFound
		}
		return nil, fmt.Errorf("botrelay/redis: get bot by username: %w", err)
	}
	return fromBotModel(&m)
}

func (s *Store) UpdateBot(ctx context.Context, b *bot.Bot) error {
	key := entityKey(prefixBot, b.ID.String())

	var existing botModel
	if err := s.getEntity(ctx, key, &existing); err != nil {
		if isRedisNil(err) {
			return bot.ErrNotFound
		}
		return fmt.Errorf("botrelay/redis: update bot get: %w", err)
	}

	m := toBotModel(b)
	renamed := existing.Username != m.Username
	if renamed {
		ok, err := s.rdb.SetNX(ctx, uniqueBotUsername+m.Username, m.ID, 0).Result()
		if err != nil {
			return fmt.Errorf("botrelay/redis: reserve username: %w", err)
		}
		if !ok {
			return bot.ErrUsernameTaken
		}
	}

	raw, err := marshalEntity(m)
	if err != nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, key, raw, 0)
	if renamed {
		pipe.Del(ctx, uniqueBotUsername+existing.Username)
	}
	if m.Enabled {
		pipe.SAdd(ctx, sBotEnabled, m.ID)
	} else {
		pipe.SRem(ctx, sBotEnabled, m.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("botrelay/redis: update bot: %w", err)
	}
	return nil
}

func (s *Store) DeleteBot(ctx context.Context, botID id.ID) error {
	key := entityKey(prefixBot, botID.String())

	var existing botModel
	if err := s.getEntity(ctx, key, &existing); err != nil {
		if isRedisNil(err) {
			return bot.ErrNotFound
		}
		return fmt.Errorf("botrelay/redis: delete bot get: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key, uniqueBotUsername+existing.Username)
	pipe.ZRem(ctx, zBotAll, existing.ID)
	pipe.SRem(ctx, sBotEnabled, existing.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("botrelay/redis: delete bot: %w", err)
	}
	return nil
}

func (s *Store) ListBots(ctx context.Context, opts bot.ListOpts) ([]*bot.Bot, error) {
	ids, err := s.rdb.ZRange(ctx, zBotAll, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("botrelay/redis: list bots: %w", err)
	}

	result := make([]*bot.Bot, 0, len(ids))
	for _, botID := range ids {
		var m botModel
		if err := s.getEntity(ctx, entityKey(prefixBot, botID), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, fmt.Errorf("botrelay/redis: list bots: %w", err)
		}
		if opts.Enabled != nil && m.Enabled != *opts.Enabled {
			continue
		}
		b, err := fromBotModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return applyPagination(result, opts.Offset, opts.Limit), nil
}

func (s *Store) CountBots(ctx context.Context, opts bot.ListOpts) (int64, error) {
	total, err := s.rdb.ZCard(ctx, zBotAll).Result()
	if err != nil {
		return 0, fmt.Errorf("botrelay/redis: count bots: %w", err)
	}
	if opts.Enabled == nil {
		return total, nil
	}
	enabled, err := s.rdb.SCard(ctx, sBotEnabled).Result()
	if err != nil {
		return 0, fmt.Errorf("botrelay/redis: count bots: %w", err)
	}
	if *opts.Enabled {
		return enabled, nil
	}
	return total - enabled, nil
}
