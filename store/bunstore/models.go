package bunstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/botrelay/bot"
	"github.com/xraph/botrelay/id"
	"github.com/xraph/botrelay/internal/entity"
)

type botModel struct {
	bun.BaseModel `bun:"table:botrelay_bots,alias:b"`

	ID        string    `bun:"id,pk"`
	Username  string    `bun:"username,notnull,unique"`
	Token     string    `bun:"token,notnull"`
	Enabled   bool      `bun:"enabled,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
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
		return nil, err
	}
	return &bot.Bot{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		ID:       botID,
		Username: m.Username,
		Token:    m.Token,
		Enabled:  m.Enabled,
	}, nil
}
