package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"rift-tracker/internal/database"
	"rift-tracker/internal/domain"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrPlayerNotFound is returned when no tracked player matches the lookup.
var ErrPlayerNotFound = errors.New("player not tracked")

type PlayerRepository struct {
	col    *mongo.Collection
	logger zerolog.Logger
}

func NewPlayerRepository(db *mongo.Database, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{col: db.Collection(database.CollectionPlayers), logger: logger}
}

func (r *PlayerRepository) Upsert(ctx context.Context, player *domain.TrackedPlayer) error {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"summonerName": player.SummonerName,
			"platform":     player.Platform,
			"region":       player.Region,
			"updatedAt":    now,
		},
		"$setOnInsert": bson.M{
			"puuid":     player.PUUID,
			"createdAt": now,
		},
	}

	opts := options.Update().SetUpsert(true)
	if _, err := r.col.UpdateOne(ctx, bson.M{"puuid": player.PUUID}, update, opts); err != nil {
		return fmt.Errorf("failed to upsert player %s: %w", player.PUUID, err)
	}
	return nil
}

func (r *PlayerRepository) GetByPUUID(ctx context.Context, puuid string) (*domain.TrackedPlayer, error) {
	var player domain.TrackedPlayer
	err := r.col.FindOne(ctx, bson.M{"puuid": puuid}).Decode(&player)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player %s: %w", puuid, err)
	}
	return &player, nil
}

// GetByName looks a player up by "Name#Tag", case-insensitive and tolerant of
// stray whitespace around either part.
func (r *PlayerRepository) GetByName(ctx context.Context, nameTag string) (*domain.TrackedPlayer, error) {
	search := strings.ReplaceAll(nameTag, " ", "")
	if name, tag, ok := strings.Cut(nameTag, "#"); ok {
		search = strings.TrimSpace(name) + "#" + strings.TrimSpace(tag)
	}

	filter := bson.M{"summonerName": bson.M{
		"$regex":   "^" + regexp.QuoteMeta(search) + "$",
		"$options": "i",
	}}

	var player domain.TrackedPlayer
	err := r.col.FindOne(ctx, filter).Decode(&player)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player %q: %w", nameTag, err)
	}
	return &player, nil
}

func (r *PlayerRepository) ListAll(ctx context.Context) ([]domain.TrackedPlayer, error) {
	cursor, err := r.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}

	var players []domain.TrackedPlayer
	if err := cursor.All(ctx, &players); err != nil {
		return nil, fmt.Errorf("failed to decode players: %w", err)
	}
	return players, nil
}

func (r *PlayerRepository) Delete(ctx context.Context, puuid string) error {
	if _, err := r.col.DeleteOne(ctx, bson.M{"puuid": puuid}); err != nil {
		return fmt.Errorf("failed to delete player %s: %w", puuid, err)
	}
	return nil
}

// UpdateRouting persists a rediscovered platform so subsequent lookups skip
// the probe walk.
func (r *PlayerRepository) UpdateRouting(ctx context.Context, puuid, platform, region string) error {
	update := bson.M{"$set": bson.M{
		"platform":  platform,
		"region":    region,
		"updatedAt": time.Now(),
	}}
	if _, err := r.col.UpdateOne(ctx, bson.M{"puuid": puuid}, update); err != nil {
		return fmt.Errorf("failed to update routing for %s: %w", puuid, err)
	}

	r.logger.Info().
		Str("puuid", puuid).
		Str("platform", platform).
		Str("region", region).
		Msg("player routing updated")
	return nil
}

func (r *PlayerRepository) UpdateProfile(ctx context.Context, puuid, summonerID string, iconID, level int) error {
	update := bson.M{"$set": bson.M{
		"summonerId":    summonerID,
		"profileIconId": iconID,
		"summonerLevel": level,
		"updatedAt":     time.Now(),
	}}
	if _, err := r.col.UpdateOne(ctx, bson.M{"puuid": puuid}, update); err != nil {
		return fmt.Errorf("failed to update profile for %s: %w", puuid, err)
	}
	return nil
}

func (r *PlayerRepository) UpdateRank(ctx context.Context, puuid string, entry *domain.RankSnapshot) error {
	update := bson.M{"$set": bson.M{
		"solo_tier":   entry.Tier,
		"solo_rank":   entry.Rank,
		"solo_lp":     entry.LeaguePoints,
		"solo_wins":   entry.Wins,
		"solo_losses": entry.Losses,
		"updatedAt":   time.Now(),
	}}
	if _, err := r.col.UpdateOne(ctx, bson.M{"puuid": puuid}, update); err != nil {
		return fmt.Errorf("failed to update rank for %s: %w", puuid, err)
	}
	return nil
}

func (r *PlayerRepository) SetLastFetchAt(ctx context.Context, puuid string, at time.Time) error {
	update := bson.M{"$set": bson.M{"lastFetchAt": at, "updatedAt": time.Now()}}
	if _, err := r.col.UpdateOne(ctx, bson.M{"puuid": puuid}, update); err != nil {
		return fmt.Errorf("failed to set last fetch at for %s: %w", puuid, err)
	}
	return nil
}
