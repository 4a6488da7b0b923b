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

type RawMatchRepository struct {
	col    *mongo.Collection
	logger zerolog.Logger
}

func NewRawMatchRepository(db *mongo.Database, logger zerolog.Logger) *RawMatchRepository {
	return &RawMatchRepository{col: db.Collection(database.CollectionRawMatches), logger: logger}
}

// Insert persists a raw match. A duplicate-key rejection from a concurrent
// worker is swallowed: second sight of a match is expected, not an error.
func (r *RawMatchRepository) Insert(ctx context.Context, m *domain.RawMatch) (bool, error) {
	_, err := r.col.InsertOne(ctx, m)
	if mongo.IsDuplicateKeyError(err) {
		r.logger.Debug().Str("match_id", m.MatchID).Msg("raw match already stored, skipping")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert raw match %s: %w", m.MatchID, err)
	}
	return true, nil
}

func (r *RawMatchRepository) Exists(ctx context.Context, matchID string) (bool, error) {
	count, err := r.col.CountDocuments(ctx, bson.M{"matchId": matchID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check raw match %s: %w", matchID, err)
	}
	return count > 0, nil
}

func (r *RawMatchRepository) ListUnprocessed(ctx context.Context, limit int) ([]domain.RawMatch, error) {
	opts := options.Find().SetLimit(int64(limit)).SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cursor, err := r.col.Find(ctx, bson.M{"processed": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed matches: %w", err)
	}

	var matches []domain.RawMatch
	if err := cursor.All(ctx, &matches); err != nil {
		return nil, fmt.Errorf("failed to decode unprocessed matches: %w", err)
	}
	return matches, nil
}

// MarkProcessed flips processed false→true as a compare-and-set. The false
// return means someone else already claimed the record; callers must not
// apply aggregate increments in that case.
func (r *RawMatchRepository) MarkProcessed(ctx context.Context, matchID string) (bool, error) {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"matchId": matchID, "processed": false},
		bson.M{"$set": bson.M{"processed": true}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark match %s processed: %w", matchID, err)
	}
	return res.ModifiedCount == 1, nil
}

func (r *RawMatchRepository) DeleteByPUUID(ctx context.Context, puuid string) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"puuid": puuid})
	if err != nil {
		return 0, fmt.Errorf("failed to delete raw matches for %s: %w", puuid, err)
	}
	return res.DeletedCount, nil
}

// DeleteOrphans removes raw matches owned by players no longer tracked.
func (r *RawMatchRepository) DeleteOrphans(ctx context.Context, validPUUIDs []string) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"puuid": bson.M{"$nin": validPUUIDs}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphan raw matches: %w", err)
	}
	return res.DeletedCount, nil
}

// TrimHistory deletes everything beyond the newest `keep` raw matches for a
// player.
func (r *RawMatchRepository) TrimHistory(ctx context.Context, puuid string, keep int) (int64, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetSkip(int64(keep)).
		SetProjection(bson.M{"matchId": 1})

	cursor, err := r.col.Find(ctx, bson.M{"puuid": puuid}, opts)
	if err != nil {
		return 0, fmt.Errorf("failed to find excess raw matches for %s: %w", puuid, err)
	}

	var excess []struct {
		MatchID string `bson:"matchId"`
	}
	if err := cursor.All(ctx, &excess); err != nil {
		return 0, fmt.Errorf("failed to decode excess raw matches: %w", err)
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
		return 0, fmt.Errorf("failed to trim raw matches for %s: %w", puuid, err)
	}
	return res.DeletedCount, nil
}

// RemoveDuplicates deletes all but one raw record per matchId. The unique
// index prevents new duplicates; this cleans up collections that predate it.
func (r *RawMatchRepository) RemoveDuplicates(ctx context.Context) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   "$matchId",
			"ids":   bson.M{"$push": "$_id"},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$match", Value: bson.M{"count": bson.M{"$gt": 1}}}},
	}

	cursor, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("failed to find duplicate raw matches: %w", err)
	}

	var groups []struct {
		IDs []interface{} `bson:"ids"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return 0, fmt.Errorf("failed to decode duplicate groups: %w", err)
	}

	var deleted int64
	for _, group := range groups {
		res, err := r.col.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": group.IDs[1:]}})
		if err != nil {
			return deleted, fmt.Errorf("failed to delete duplicate raw matches: %w", err)
		}
		deleted += res.DeletedCount
	}
	return deleted, nil
}
