package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/botrelay/bot"
	"github.com/xraph/botrelay/id"
)

// CreateBot persists a new bot.
func (s *Store) CreateBot(ctx context.Context, b *bot.Bot) error {
	_, err := s.bots().InsertOne(ctx, toBotModel(b))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return bot.ErrUsernameTaken
		}

		return fmt.Errorf("botrelay/mongo: create bot: %w", err)
	}

	return nil
}

// GetBot returns a bot by ID.
func (s *Store) GetBot(ctx context.Context, botID id.ID) (*bot.Bot, error) {
	return s.findOne(ctx, bson.M{"_id": botID.String()})
}

// GetBotByUsername returns a bot by username.
func (s *Store) GetBotByUsername(ctx context.Context, username string) (*bot.Bot, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*bot.Bot, error) {
	var m botModel

	if err := s.bots().FindOne(ctx, filter).Decode(&m); err != nil {
		if isNoDocuments(err) {
			return nil, bot.ErrNotFound
		}

		return nil, fmt.Errorf("botrelay/mongo: get bot: %w", err)
	}

	return fromBotModel(&m)
}

// UpdateBot replaces an existing bot.
func (s *Store) UpdateBot(ctx context.Context, b *bot.Bot) error {
	m := toBotModel(b)

	res, err := s.bots().ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return bot.ErrUsernameTaken
		}

		return fmt.Errorf("botrelay/mongo: update bot: %w", err)
	}

	if res.MatchedCount == 0 {
		return bot.ErrNotFound
	}

	return nil
}

// DeleteBot removes a bot.
func (s *Store) DeleteBot(ctx context.Context, botID id.ID) error {
	res, err := s.bots().DeleteOne(ctx, bson.M{"_id": botID.String()})
	if err != nil {
		return fmt.Errorf("botrelay/mongo: delete bot: %w", err)
	}

	if res.DeletedCount == 0 {
		return bot.ErrNotFound
	}

	return nil
}

// ListBots returns bots in creation order.
func (s *Store) ListBots(ctx context.Context, opts bot.ListOpts) ([]*bot.Bot, error) {
	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	cur, err := s.bots().Find(ctx, enabledFilter(opts), findOpts)
	if err != nil {
		return nil, fmt.Errorf("botrelay/mongo: list bots: %w", err)
	}

	var models []botModel
	if err := cur.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("botrelay/mongo: list bots: %w", err)
	}

	result := make([]*bot.Bot, 0, len(models))

	for i := range models {
		b, err := fromBotModel(&models[i])
		if err != nil {
			return nil, err
		}

		result = append(result, b)
	}

	return result, nil
}

// CountBots counts bots matching opts.Enabled.
func (s *Store) CountBots(ctx context.Context, opts bot.ListOpts) (int64, error) {
	n, err := s.bots().CountDocuments(ctx, enabledFilter(opts))
	if err != nil {
		return 0, fmt.Errorf("botrelay/mongo: count bots: %w", err)
	}

	return n, nil
}

func enabledFilter(opts bot.ListOpts) bson.M {
	filter := bson.M{}
	if opts.Enabled != nil {
		filter["enabled"] = *opts.Enabled
	}

	return filter
}
