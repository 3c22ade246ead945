package mongo

import (
	"time"

	"github.com/xraph/botrelay/bot"
	"github.com/xraph/botrelay/id"
	"github.com/xraph/botrelay/internal/entity"
)

type botModel struct {
	ID        string    `bson:"_id"`
	Username  string    `bson:"username"`
	Token     string    `bson:"token"`
	Enabled   bool      `bson:"enabled"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
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
