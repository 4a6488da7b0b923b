package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rift-tracker/internal/api"
	"rift-tracker/internal/constants"
	"rift-tracker/internal/domain"
	"rift-tracker/internal/metrics"
	"rift-tracker/internal/repository"
	"rift-tracker/internal/resolver"

	"github.com/rs/zerolog"
)

type riotAPI interface {
	AccountByRiotID(ctx context.Context, regional, name, tag string) (*api.Account, error)
	SummonerByPUUID(ctx context.Context, platform, puuid string) (*api.Summoner, error)
	LeagueEntriesBySummoner(ctx context.Context, platform, summonerID string) ([]api.LeagueEntry, error)
	LeagueEntriesByTier(ctx context.Context, platform, queue, tier, division string, page int) ([]api.LeagueEntry, error)
	MatchIDsByPUUID(ctx context.Context, regional, puuid string, start, count int) ([]string, error)
	MatchByID(ctx context.Context, regional, matchID string) (json.RawMessage, error)
}

type identityResolver interface {
	Routing(player *domain.TrackedPlayer) (platform, regional string)
	ReResolve(ctx context.Context, player *domain.TrackedPlayer) (string, error)
	Rediscover(ctx context.Context, player *domain.TrackedPlayer, workingPUUID string) (platform, regional string, err error)
}

type fetchPlayerStore interface {
	GetByPUUID(ctx context.Context, puuid string) (*domain.TrackedPlayer, error)
	UpdateProfile(ctx context.Context, puuid, summonerID string, iconID, level int) error
	UpdateRank(ctx context.Context, puuid string, entry *domain.RankSnapshot) error
	SetLastFetchAt(ctx context.Context, puuid string, at time.Time) error
}

type rawMatchStore interface {
	Exists(ctx context.Context, matchID string) (bool, error)
	Insert(ctx context.Context, m *domain.RawMatch) (bool, error)
}

// FetchService pulls one pagination window of a player's match history from
// the upstream API into raw storage.
type FetchService struct {
	riot     riotAPI
	resolver identityResolver
	players  fetchPlayerStore
	raw      rawMatchStore
	logger   zerolog.Logger
}

func NewFetchService(riot *api.RiotClient, res *resolver.Resolver, players *repository.PlayerRepository, raw *repository.RawMatchRepository, logger zerolog.Logger) *FetchService {
	return &FetchService{riot: riot, resolver: res, players: players, raw: raw, logger: logger}
}

// FetchBatch executes one extract_batch task. All upstream failures are
// handled here; nothing propagates to a user-facing surface.
func (s *FetchService) FetchBatch(ctx context.Context, task *domain.Task) error {
	player, err := s.players.GetByPUUID(ctx, task.PUUID)
	if err != nil {
		return fmt.Errorf("failed to load player for task: %w", err)
	}

	platform, regional := s.resolver.Routing(player)

	// The working identifier is what we send upstream; persisted records
	// always keep the original puuid so credential rotations never break
	// foreign keys.
	working := player.PUUID
	reresolved := false

	s.logger.Info().
		Str("puuid", player.PUUID).
		Str("name", player.SummonerName).
		Int("start", task.Start).
		Int("count", task.Count).
		Bool("update_profile", task.UpdateProfile).
		Msg("fetching batch")

	if task.UpdateProfile {
		working, platform, regional, err = s.updateProfile(ctx, player, working, platform, regional, &reresolved)
		if errors.Is(err, resolver.ErrNoRegion) {
			return err
		}
		if err != nil {
			// Profile refresh is best effort; the next cycle retries it.
			s.logger.Warn().Err(err).Str("puuid", player.PUUID).Msg("profile update failed, continuing with matches")
		}
	}

	newMatches := 0
	for offset := task.Start; offset < task.Start+task.Count; {
		page := task.Start + task.Count - offset
		if page > constants.MaxIDsPerPage {
			page = constants.MaxIDsPerPage
		}

		ids, err := s.riot.MatchIDsByPUUID(ctx, regional, working, offset, page)
		if errors.Is(err, api.ErrIdentityMismatch) && !reresolved {
			if working, err = s.resolver.ReResolve(ctx, player); err != nil {
				return fmt.Errorf("failed to recover from identity mismatch: %w", err)
			}
			reresolved = true
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to fetch match ids at offset %d: %w", offset, err)
		}

		for _, matchID := range ids {
			inserted, err := s.fetchMatch(ctx, player, regional, matchID)
			if errors.Is(err, api.ErrIdentityMismatch) && !reresolved {
				if working, err = s.resolver.ReResolve(ctx, player); err != nil {
					return fmt.Errorf("failed to recover from identity mismatch: %w", err)
				}
				reresolved = true
				inserted, err = s.fetchMatch(ctx, player, regional, matchID)
			}
			if err != nil {
				s.logger.Warn().Err(err).Str("match_id", matchID).Msg("skipping match")
				continue
			}
			if inserted {
				newMatches++
			}
		}

		offset += page
		if len(ids) < page {
			// Upstream history exhausted before the requested window.
			break
		}
	}

	if err := s.players.SetLastFetchAt(ctx, player.PUUID, time.Now()); err != nil {
		s.logger.Warn().Err(err).Str("puuid", player.PUUID).Msg("failed to set last fetch at")
	}

	s.logger.Info().
		Str("puuid", player.PUUID).
		Int("new_matches", newMatches).
		Msg("batch fetched")
	return nil
}

// fetchMatch stores one raw match unless it is already present. A 404 from
// upstream skips the match permanently.
func (s *FetchService) fetchMatch(ctx context.Context, player *domain.TrackedPlayer, regional, matchID string) (bool, error) {
	exists, err := s.raw.Exists(ctx, matchID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	payload, err := s.riot.MatchByID(ctx, regional, matchID)
	if errors.Is(err, api.ErrNotFound) {
		s.logger.Debug().Str("match_id", matchID).Msg("match not found upstream, skipping permanently")
		return false, nil
	}
	if err != nil {
		return false, err
	}

	inserted, err := s.raw.Insert(ctx, &domain.RawMatch{
		MatchID:   matchID,
		PUUID:     player.PUUID,
		Raw:       payload,
		Processed: false,
		FetchedAt: time.Now(),
	})
	if err != nil {
		return false, err
	}
	if inserted {
		metrics.MatchesIngested.Inc()
	}
	return inserted, nil
}

// updateProfile refreshes the profile snapshot and ranked standing. On a 404
// it walks the other platforms; on an identity mismatch it re-resolves the
// working identifier once.
func (s *FetchService) updateProfile(ctx context.Context, player *domain.TrackedPlayer, working, platform, regional string, reresolved *bool) (string, string, string, error) {
	summoner, err := s.riot.SummonerByPUUID(ctx, platform, working)
	if errors.Is(err, api.ErrIdentityMismatch) && !*reresolved {
		if working, err = s.resolver.ReResolve(ctx, player); err != nil {
			return working, platform, regional, err
		}
		*reresolved = true
		summoner, err = s.riot.SummonerByPUUID(ctx, platform, working)
	}
	if errors.Is(err, api.ErrNotFound) {
		platform, regional, err = s.resolver.Rediscover(ctx, player, working)
		if err != nil {
			return working, platform, regional, err
		}
		summoner, err = s.riot.SummonerByPUUID(ctx, platform, working)
	}
	if err != nil {
		return working, platform, regional, fmt.Errorf("failed to fetch summoner: %w", err)
	}

	if err := s.players.UpdateProfile(ctx, player.PUUID, summoner.ID, summoner.ProfileIconID, summoner.SummonerLevel); err != nil {
		return working, platform, regional, err
	}

	rank := s.lookupRank(ctx, platform, summoner.ID, working)
	if err := s.players.UpdateRank(ctx, player.PUUID, rank); err != nil {
		return working, platform, regional, err
	}

	s.logger.Debug().
		Str("puuid", player.PUUID).
		Str("tier", rank.Tier).
		Int("level", summoner.SummonerLevel).
		Msg("profile updated")
	return working, platform, regional, nil
}

// lookupRank resolves the ranked-solo standing. Fast path: league entries
// keyed by the summoner id. Fallback: scan the apex-tier leaderboards for the
// working identifier. Defaults to unranked.
func (s *FetchService) lookupRank(ctx context.Context, platform, summonerID, working string) *domain.RankSnapshot {
	if summonerID != "" {
		entries, err := s.riot.LeagueEntriesBySummoner(ctx, platform, summonerID)
		if err != nil {
			s.logger.Debug().Err(err).Str("summoner_id", summonerID).Msg("summoner-keyed rank lookup failed, trying leaderboards")
		} else {
			for _, entry := range entries {
				if entry.QueueType == constants.RankedSoloQueue {
					return &domain.RankSnapshot{
						Tier:         entry.Tier,
						Rank:         entry.Rank,
						LeaguePoints: entry.LeaguePoints,
						Wins:         entry.Wins,
						Losses:       entry.Losses,
					}
				}
			}
			return domain.Unranked()
		}
	}

	for _, tier := range constants.ApexTiers {
		entries, err := s.riot.LeagueEntriesByTier(ctx, platform, constants.RankedSoloQueue, tier, "I", 1)
		if err != nil {
			s.logger.Debug().Err(err).Str("tier", tier).Msg("leaderboard scan failed")
			continue
		}
		for _, entry := range entries {
			if entry.PUUID == working {
				return &domain.RankSnapshot{
					Tier:         entry.Tier,
					Rank:         entry.Rank,
					LeaguePoints: entry.LeaguePoints,
					Wins:         entry.Wins,
					Losses:       entry.Losses,
				}
			}
		}
	}

	return domain.Unranked()
}
