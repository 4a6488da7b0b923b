package database

import (
	"context"
	"fmt"

	"rift-tracker/internal/config"
	"rift-tracker/internal/constants"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionPlayers      = "summoners"
	CollectionRawMatches   = "matches_raw"
	CollectionCleanMatches = "matches_clean"
	CollectionStats        = "aggregated_stats"
)

func NewClient(cfg *config.Config, logger zerolog.Logger) (*mongo.Client, error) {
	logger.Info().Str("uri", cfg.MongoURI).Msg("connecting to database")

	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		logger.Error().Err(err).Msg("database ping failed")
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info().Msg("database connection established")
	return client, nil
}

func NewDatabase(client *mongo.Client, cfg *config.Config, logger zerolog.Logger) (*mongo.Database, error) {
	db := client.Database(cfg.MongoDB)
	if err := ensureIndexes(db, logger); err != nil {
		logger.Error().Err(err).Msg("failed to ensure indexes")
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}
	return db, nil
}

// ensureIndexes creates the uniqueness constraints the pipeline relies on:
// duplicate-insert races on matchId must be rejected by the store, and
// aggregate increments must land on exactly one (puuid, champion) document.
func ensureIndexes(db *mongo.Database, logger zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()

	unique := options.Index().SetUnique(true)

	indexes := []struct {
		collection string
		keys       bson.D
		opts       *options.IndexOptions
	}{
		{CollectionPlayers, bson.D{{Key: "puuid", Value: 1}}, unique},
		{CollectionRawMatches, bson.D{{Key: "matchId", Value: 1}}, unique},
		{CollectionRawMatches, bson.D{{Key: "puuid", Value: 1}, {Key: "processed", Value: 1}}, nil},
		{CollectionCleanMatches, bson.D{{Key: "matchId", Value: 1}, {Key: "puuid", Value: 1}}, unique},
		{CollectionCleanMatches, bson.D{{Key: "puuid", Value: 1}, {Key: "game_timestamp", Value: -1}}, nil},
		{CollectionStats, bson.D{{Key: "puuid", Value: 1}, {Key: "champion", Value: 1}}, unique},
	}

	for _, idx := range indexes {
		model := mongo.IndexModel{Keys: idx.keys, Options: idx.opts}
		if _, err := db.Collection(idx.collection).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", idx.collection, err)
		}
		logger.Debug().Str("collection", idx.collection).Interface("keys", idx.keys).Msg("index ensured")
	}

	return nil
}
