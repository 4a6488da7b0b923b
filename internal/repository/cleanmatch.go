package repository

import (
	"context"
	"fmt"

	"rift-tracker/internal/database"
	"rift-tracker/internal/domain"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CleanMatchRepository struct {
	col    *mongo.Collection
	logger zerolog.Logger
}

func NewCleanMatchRepository(db *mongo.Database, logger zerolog.Logger) *CleanMatchRepository {
	return &CleanMatchRepository{col: db.Collection(database.CollectionCleanMatches), logger: logger}
}

func (r *CleanMatchRepository) Insert(ctx context.Context, m *domain.CleanMatch) error {
	_, err := r.col.InsertOne(ctx, m)
	if mongo.IsDuplicateKeyError(err) {
		r.logger.Debug().Str("match_id", m.MatchID).Str("puuid", m.PUUID).Msg("clean match already stored")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to insert clean match %s: %w", m.MatchID, err)
	}
	return nil
}

// ListRecent returns a player's clean matches, newest first.
func (r *CleanMatchRepository) ListRecent(ctx context.Context, puuid string, limit int) ([]domain.CleanMatch, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "game_timestamp", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.col.Find(ctx, bson.M{"puuid": puuid}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list clean matches for %s: %w", puuid, err)
	}

	var matches []domain.CleanMatch
	if err := cursor.All(ctx, &matches); err != nil {
		return nil, fmt.Errorf("failed to decode clean matches: %w", err)
	}
	return matches, nil
}

func (r *CleanMatchRepository) DeleteByPUUID(ctx context.Context, puuid string) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"puuid": puuid})
	if err != nil {
		return 0, fmt.Errorf("failed to delete clean matches for %s: %w", puuid, err)
	}
	return res.DeletedCount, nil
}

func (r *CleanMatchRepository) DeleteOrphans(ctx context.Context, validPUUIDs []string) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"puuid": bson.M{"$nin": validPUUIDs}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphan clean matches: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *CleanMatchRepository) TrimHistory(ctx context.Context, puuid string, keep int) (int64, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "game_timestamp", Value: -1}}).
		SetSkip(int64(keep)).
		SetProjection(bson.M{"matchId": 1})

	cursor, err := r.col.Find(ctx, bson.M{"puuid": puuid}, opts)
	if err != nil {
		return 0, fmt.Errorf("failed to find excess clean matches for %s: %w", puuid, err)
	}

	var excess []struct {
		MatchID string `bson:"matchId"`
	}
	if err := cursor.All(ctx, &excess); err != nil {
		return 0, fmt.Errorf("failed to decode excess clean matches: %w", err)
	}
	if len(excess) == 0 {
		return 0, nil
	}

	ids := make([]string, len(excess))
	for i, doc := range excess {
		ids[i] = doc.MatchID
	}

	res, err := r.col.DeleteMany(ctx, bson.M{"puuid": puuid, "matchId": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("failed to trim clean matches for %s: %w", puuid, err)
	}
	return res.DeletedCount, nil
}
