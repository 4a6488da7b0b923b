package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"rift-tracker/internal/api"
	"rift-tracker/internal/constants"
	"rift-tracker/internal/domain"
	"rift-tracker/internal/repository"
	"rift-tracker/internal/resolver"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidNameTag is surfaced to the caller when the add-player input is
// not in "Name#Tag" form.
var ErrInvalidNameTag = errors.New("expected Name#Tag format")

type trackedPlayerStore interface {
	Upsert(ctx context.Context, player *domain.TrackedPlayer) error
	GetByName(ctx context.Context, nameTag string) (*domain.TrackedPlayer, error)
	ListAll(ctx context.Context) ([]domain.TrackedPlayer, error)
	Delete(ctx context.Context, puuid string) error
}

type rawMatchPurger interface {
	DeleteByPUUID(ctx context.Context, puuid string) (int64, error)
}

type cleanMatchReader interface {
	ListRecent(ctx context.Context, puuid string, limit int) ([]domain.CleanMatch, error)
	DeleteByPUUID(ctx context.Context, puuid string) (int64, error)
}

type statsReader interface {
	ListByPUUID(ctx context.Context, puuid string) ([]domain.AggregatedStat, error)
	DeleteByPUUID(ctx context.Context, puuid string) (int64, error)
}

// PlayerService is the synchronous command surface: the only path whose
// errors reach a caller. Everything it triggers downstream is asynchronous.
type PlayerService struct {
	riot     riotAPI
	resolver *resolver.Resolver
	dispatch *DispatchService
	players  trackedPlayerStore
	raw      rawMatchPurger
	clean    cleanMatchReader
	stats    statsReader
	logger   zerolog.Logger
}

func NewPlayerService(riot *api.RiotClient, res *resolver.Resolver, dispatch *DispatchService, players *repository.PlayerRepository, raw *repository.RawMatchRepository, clean *repository.CleanMatchRepository, stats *repository.StatsRepository, logger zerolog.Logger) *PlayerService {
	return &PlayerService{
		riot:     riot,
		resolver: res,
		dispatch: dispatch,
		players:  players,
		raw:      raw,
		clean:    clean,
		stats:    stats,
		logger:   logger,
	}
}

// AddPlayer validates identity upstream, upserts the tracked player and
// dispatches the initial extraction window. Upstream validation errors
// (not found, rate limited, bad format) propagate to the caller.
func (s *PlayerService) AddPlayer(ctx context.Context, nameTag string) (*domain.TrackedPlayer, error) {
	name, tag, ok := strings.Cut(nameTag, "#")
	if !ok {
		return nil, ErrInvalidNameTag
	}
	name = strings.TrimSpace(name)
	tag = strings.TrimSpace(tag)
	if name == "" || tag == "" {
		return nil, ErrInvalidNameTag
	}

	platform, regional := s.resolver.RoutingForTag(tag)

	account, err := s.riot.AccountByRiotID(ctx, regional, name, tag)
	if err != nil {
		return nil, fmt.Errorf("failed to validate %q upstream: %w", nameTag, err)
	}

	player := &domain.TrackedPlayer{
		PUUID:        account.PUUID,
		SummonerName: account.GameName + "#" + account.TagLine,
		Platform:     platform,
		Region:       regional,
	}
	if err := s.players.Upsert(ctx, player); err != nil {
		return nil, err
	}

	if _, err := s.dispatch.Dispatch(ctx, player.PUUID, constants.InitialFetchLimit); err != nil {
		// The player is tracked; periodic ingestion will pick them up even
		// if the initial dispatch failed.
		s.logger.Warn().Err(err).Str("puuid", player.PUUID).Msg("initial dispatch failed")
	}

	s.logger.Info().
		Str("puuid", player.PUUID).
		Str("name", player.SummonerName).
		Msg("player added")
	return player, nil
}

// DeletePlayer removes a player and cascades across raw matches, clean
// matches and aggregated stats.
func (s *PlayerService) DeletePlayer(ctx context.Context, nameTag string) (string, error) {
	player, err := s.players.GetByName(ctx, nameTag)
	if err != nil {
		return "", err
	}

	if err := s.players.Delete(ctx, player.PUUID); err != nil {
		return "", err
	}

	// Cascade failures are non-fatal: the player is already untracked and
	// the retention pass removes anything orphaned here. Log them so the
	// orphan window is visible.
	rawDeleted, err := s.raw.DeleteByPUUID(ctx, player.PUUID)
	if err != nil {
		s.logger.Warn().Err(err).Str("puuid", player.PUUID).Msg("failed to cascade delete raw matches")
	}
	cleanDeleted, err := s.clean.DeleteByPUUID(ctx, player.PUUID)
	if err != nil {
		s.logger.Warn().Err(err).Str("puuid", player.PUUID).Msg("failed to cascade delete clean matches")
	}
	statsDeleted, err := s.stats.DeleteByPUUID(ctx, player.PUUID)
	if err != nil {
		s.logger.Warn().Err(err).Str("puuid", player.PUUID).Msg("failed to cascade delete aggregated stats")
	}

	s.logger.Info().
		Str("puuid", player.PUUID).
		Str("name", player.SummonerName).
		Int64("raw_deleted", rawDeleted).
		Int64("clean_deleted", cleanDeleted).
		Int64("stats_deleted", statsDeleted).
		Msg("player deleted")
	return player.SummonerName, nil
}

// ListNames returns the sorted tracked-player display names.
func (s *PlayerService) ListNames(ctx context.Context) ([]string, error) {
	players, err := s.players.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(players))
	for i := range players {
		names[i] = players[i].SummonerName
	}
	sort.Strings(names)
	return names, nil
}

// ChampionRow is one aggregated line of the stats view, with winrate and
// average KDA computed on read.
type ChampionRow struct {
	Champion string  `json:"champion"`
	Games    int     `json:"games"`
	Wins     int     `json:"wins"`
	Winrate  float64 `json:"winrate"`
	AvgKDA   float64 `json:"avg_kda"`
}

type PlayerStats struct {
	Player     *domain.TrackedPlayer `json:"player"`
	Matches    []domain.CleanMatch   `json:"matches"`
	Aggregated []ChampionRow         `json:"aggregated"`
}

// Stats assembles the dashboard view for one player. Read-only; no pipeline
// interaction.
func (s *PlayerService) Stats(ctx context.Context, nameTag string) (*PlayerStats, error) {
	player, err := s.players.GetByName(ctx, nameTag)
	if err != nil {
		return nil, err
	}

	var (
		matches []domain.CleanMatch
		stats   []domain.AggregatedStat
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		matches, err = s.clean.ListRecent(gCtx, player.PUUID, constants.RecentMatchesLimit)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = s.stats.ListByPUUID(gCtx, player.PUUID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rows := make([]ChampionRow, len(stats))
	for i, stat := range stats {
		row := ChampionRow{
			Champion: stat.Champion,
			Games:    stat.Games,
			Wins:     stat.Wins,
		}
		if stat.Games > 0 {
			row.Winrate = round2(float64(stat.Wins) / float64(stat.Games) * 100)
			row.AvgKDA = round2(stat.KDASum / float64(stat.Games))
		}
		rows[i] = row
	}

	return &PlayerStats{Player: player, Matches: matches, Aggregated: rows}, nil
}
