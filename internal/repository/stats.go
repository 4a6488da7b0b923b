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

type StatsRepository struct {
	col    *mongo.Collection
	logger zerolog.Logger
}

func NewStatsRepository(db *mongo.Database, logger zerolog.Logger) *StatsRepository {
	return &StatsRepository{col: db.Collection(database.CollectionStats), logger: logger}
}

// Increment applies one match's contribution to the (puuid, champion) total
// as a single atomic upsert. Never recomputed from scratch.
func (r *StatsRepository) Increment(ctx context.Context, puuid, champion string, win bool, kda float64) error {
	wins := 0
	if win {
		wins = 1
	}

	update := bson.M{
		"$inc": bson.M{
			"games":   1,
			"wins":    wins,
			"kda_sum": kda,
		},
		"$setOnInsert": bson.M{
			"puuid":    puuid,
			"champion": champion,
		},
	}

	opts := options.Update().SetUpsert(true)
	if _, err := r.col.UpdateOne(ctx, bson.M{"puuid": puuid, "champion": champion}, update, opts); err != nil {
		return fmt.Errorf("failed to increment stats for %s/%s: %w", puuid, champion, err)
	}
	return nil
}

func (r *StatsRepository) ListByPUUID(ctx context.Context, puuid string) ([]domain.AggregatedStat, error) {
	opts := options.Find().SetSort(bson.D{{Key: "games", Value: -1}})
	cursor, err := r.col.Find(ctx, bson.M{"puuid": puuid}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list stats for %s: %w", puuid, err)
	}

	var stats []domain.AggregatedStat
	if err := cursor.All(ctx, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode stats: %w", err)
	}
	return stats, nil
}

func (r *StatsRepository) DeleteByPUUID(ctx context.Context, puuid string) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"puuid": puuid})
	if err != nil {
		return 0, fmt.Errorf("failed to delete stats for %s: %w", puuid, err)
	}
	return res.DeletedCount, nil
}
