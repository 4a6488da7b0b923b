// Package resolver maps a tracked player to upstream routing parameters and
// repairs identifier mismatches between the stored identifier and the one
// valid for the currently active upstream credential.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rift-tracker/internal/api"
	"rift-tracker/internal/config"
	"rift-tracker/internal/constants"
	"rift-tracker/internal/domain"
	"rift-tracker/internal/repository"

	"github.com/rs/zerolog"
)

// ErrNoRegion means every known platform was probed without a hit. Terminal
// for the current batch; the next scheduled cycle starts over.
var ErrNoRegion = errors.New("player not found in any region")

type upstream interface {
	AccountByRiotID(ctx context.Context, regional, name, tag string) (*api.Account, error)
	SummonerByPUUID(ctx context.Context, platform, puuid string) (*api.Summoner, error)
}

type playerStore interface {
	UpdateRouting(ctx context.Context, puuid, platform, region string) error
}

type Resolver struct {
	riot         upstream
	players      playerStore
	homePlatform string
	probeDelay   time.Duration
	logger       zerolog.Logger
}

func New(riot *api.RiotClient, players *repository.PlayerRepository, cfg *config.Config, logger zerolog.Logger) *Resolver {
	return &Resolver{
		riot:         riot,
		players:      players,
		homePlatform: cfg.HomePlatform,
		probeDelay:   constants.ProbeDelay,
		logger:       logger,
	}
}

// Routing returns the platform shard and regional routing host for a player,
// preferring a previously discovered platform over the configured home.
func (r *Resolver) Routing(player *domain.TrackedPlayer) (platform, regional string) {
	platform = player.Platform
	if platform == "" {
		platform = r.homePlatform
	}
	regional, ok := constants.PlatformRouting[platform]
	if !ok {
		platform = r.homePlatform
		regional = constants.PlatformRouting[platform]
	}
	return platform, regional
}

// RoutingForTag guesses routing for a not-yet-tracked player from the tag
// line. Only a hint; rediscovery corrects wrong guesses later.
func (r *Resolver) RoutingForTag(tag string) (platform, regional string) {
	switch strings.ToUpper(tag) {
	case "KR1":
		return "kr", "asia"
	case "NA1":
		return "na1", "americas"
	default:
		return r.homePlatform, constants.PlatformRouting[r.homePlatform]
	}
}

// ReResolve derives a working identifier from the player's stored display
// name. The result is used for the current batch's upstream calls only;
// persisted records keep the original puuid as the foreign key.
func (r *Resolver) ReResolve(ctx context.Context, player *domain.TrackedPlayer) (string, error) {
	name, tag, ok := strings.Cut(player.SummonerName, "#")
	if !ok {
		return "", fmt.Errorf("stored name %q has no tag", player.SummonerName)
	}

	_, regional := r.Routing(player)
	account, err := r.riot.AccountByRiotID(ctx, regional, strings.TrimSpace(name), strings.TrimSpace(tag))
	if err != nil {
		return "", fmt.Errorf("failed to re-resolve %q: %w", player.SummonerName, err)
	}

	r.logger.Info().
		Str("puuid", player.PUUID).
		Str("name", player.SummonerName).
		Msg("re-resolved working identifier for active credential")
	return account.PUUID, nil
}

// Rediscover probes every other known platform after a platform-scoped 404,
// persisting the first one that answers. Probes are sequential with a small
// delay between them.
func (r *Resolver) Rediscover(ctx context.Context, player *domain.TrackedPlayer, workingPUUID string) (platform, regional string, err error) {
	current, _ := r.Routing(player)

	for _, candidate := range constants.Platforms {
		if candidate == current {
			continue
		}

		if _, err := r.riot.SummonerByPUUID(ctx, candidate, workingPUUID); err != nil {
			if !errors.Is(err, api.ErrNotFound) {
				r.logger.Warn().Err(err).Str("platform", candidate).Str("puuid", player.PUUID).Msg("platform probe failed")
			}
			select {
			case <-time.After(r.probeDelay):
			case <-ctx.Done():
				return "", "", ctx.Err()
			}
			continue
		}

		regional = constants.PlatformRouting[candidate]
		if err := r.players.UpdateRouting(ctx, player.PUUID, candidate, regional); err != nil {
			return "", "", err
		}
		player.Platform = candidate
		player.Region = regional

		r.logger.Info().
			Str("puuid", player.PUUID).
			Str("platform", candidate).
			Msg("player rediscovered on another platform")
		return candidate, regional, nil
	}

	return "", "", ErrNoRegion
}
