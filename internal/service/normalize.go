package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"rift-tracker/internal/api"
	"rift-tracker/internal/constants"
	"rift-tracker/internal/domain"
	"rift-tracker/internal/metrics"
	"rift-tracker/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type rawMatchQueue interface {
	ListUnprocessed(ctx context.Context, limit int) ([]domain.RawMatch, error)
	MarkProcessed(ctx context.Context, matchID string) (bool, error)
}

type cleanMatchStore interface {
	Insert(ctx context.Context, m *domain.CleanMatch) error
}

type statsStore interface {
	Increment(ctx context.Context, puuid, champion string, win bool, kda float64) error
}

type playerDirectory interface {
	GetByPUUID(ctx context.Context, puuid string) (*domain.TrackedPlayer, error)
}

// NormalizeService turns raw match payloads into flat per-player records and
// keeps the per-champion aggregates current. It runs on its own schedule; the
// raw store is the durable handoff buffer between ingestion and it.
type NormalizeService struct {
	raw     rawMatchQueue
	clean   cleanMatchStore
	stats   statsStore
	players playerDirectory
	logger  zerolog.Logger
}

func NewNormalizeService(raw *repository.RawMatchRepository, clean *repository.CleanMatchRepository, stats *repository.StatsRepository, players *repository.PlayerRepository, logger zerolog.Logger) *NormalizeService {
	return &NormalizeService{raw: raw, clean: clean, stats: stats, players: players, logger: logger}
}

// ProcessUnprocessed drains the current set of unprocessed raw matches and
// returns how many produced clean records. The processed-flag flip is a
// compare-and-set and gates the clean insert plus the aggregate increment, so
// concurrent passes never double-count a match.
func (s *NormalizeService) ProcessUnprocessed(ctx context.Context) (int, error) {
	raws, err := s.raw.ListUnprocessed(ctx, constants.NormalizeBatchLimit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range raws {
		raw := &raws[i]

		select {
		case <-ctx.Done():
			return processed, ctx.Err()
		default:
		}

		participant, info, err := s.resolveParticipant(ctx, raw)
		if err != nil {
			// Transient store failure; leave the record unprocessed so the
			// next pass retries it.
			s.logger.Warn().Err(err).Str("match_id", raw.MatchID).Msg("participant resolution failed, will retry")
			continue
		}
		if participant == nil {
			// Malformed or unattributable payloads are claimed and never
			// retried.
			if _, err := s.raw.MarkProcessed(ctx, raw.MatchID); err != nil {
				s.logger.Error().Err(err).Str("match_id", raw.MatchID).Msg("failed to mark skipped match processed")
			}
			continue
		}

		claimed, err := s.raw.MarkProcessed(ctx, raw.MatchID)
		if err != nil {
			s.logger.Error().Err(err).Str("match_id", raw.MatchID).Msg("failed to claim raw match")
			continue
		}
		if !claimed {
			continue
		}

		clean := buildCleanMatch(raw, info, participant)
		if err := s.clean.Insert(ctx, clean); err != nil {
			s.logger.Error().Err(err).Str("match_id", raw.MatchID).Msg("failed to insert clean match")
			continue
		}

		if err := s.stats.Increment(ctx, raw.PUUID, clean.Champion, clean.Win, clean.KDA); err != nil {
			s.logger.Error().Err(err).Str("match_id", raw.MatchID).Msg("failed to increment aggregated stats")
			continue
		}

		metrics.MatchesNormalized.Inc()
		processed++
	}

	if processed > 0 {
		s.logger.Info().Int("processed", processed).Msg("normalization pass completed")
	}
	return processed, nil
}

// resolveParticipant parses the payload and locates the tracked player's
// entry in the roster: exact identifier first, then normalized display name.
// A nil participant with a nil error means the record is permanently
// unusable (malformed or unattributable) and should be claimed; a non-nil
// error means the lookup itself failed and the record must stay unprocessed.
func (s *NormalizeService) resolveParticipant(ctx context.Context, raw *domain.RawMatch) (*api.MatchParticipant, *api.MatchInfo, error) {
	var payload api.MatchPayload
	if err := json.Unmarshal(raw.Raw, &payload); err != nil || payload.Info == nil || len(payload.Info.Participants) == 0 {
		s.logger.Warn().Str("match_id", raw.MatchID).Msg("malformed match payload, skipping")
		return nil, nil, nil
	}

	participants := payload.Info.Participants
	for i := range participants {
		if participants[i].PUUID == raw.PUUID {
			return &participants[i], payload.Info, nil
		}
	}

	// Credential-mismatch scenario: the roster carries identifiers issued
	// for a different credential, so fall back to the stored display name.
	player, err := s.players.GetByPUUID(ctx, raw.PUUID)
	if errors.Is(err, repository.ErrPlayerNotFound) {
		s.logger.Warn().Str("match_id", raw.MatchID).Str("puuid", raw.PUUID).Msg("owner no longer tracked, skipping")
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up match owner %s: %w", raw.PUUID, err)
	}

	if p := matchByName(participants, player.SummonerName); p != nil {
		return p, payload.Info, nil
	}

	names := make([]string, len(participants))
	for i := range participants {
		names[i] = participants[i].DisplayName()
	}
	metrics.MatchesUnattributed.Inc()
	s.logger.Warn().
		Str("match_id", raw.MatchID).
		Str("puuid", raw.PUUID).
		Str("player_name", player.SummonerName).
		Strs("roster", names).
		Msg("no participant matched the tracked player")
	return nil, nil, nil
}

// matchByName tries an exact name#tag match first, then name only, both under
// display-name normalization.
func matchByName(participants []api.MatchParticipant, storedName string) *api.MatchParticipant {
	target := normalizeDisplayName(storedName)
	targetNameOnly := target
	if name, _, ok := strings.Cut(storedName, "#"); ok {
		targetNameOnly = normalizeDisplayName(name)
	}

	for i := range participants {
		if normalizeDisplayName(participants[i].DisplayName()) == target {
			return &participants[i]
		}
	}
	for i := range participants {
		p := &participants[i]
		candidate := p.RiotIDGameName
		if candidate == "" {
			candidate = p.SummonerName
		}
		if normalizeDisplayName(candidate) == targetNameOnly {
			return p
		}
	}
	return nil
}

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeDisplayName case-folds, strips accents and removes all whitespace,
// so "Férro iLlautó" and "ferroillauto" compare equal.
func normalizeDisplayName(s string) string {
	stripped, _, err := transform.String(accentStripper, s)
	if err != nil {
		stripped = s
	}
	return strings.ToLower(strings.Join(strings.Fields(stripped), ""))
}

func buildCleanMatch(raw *domain.RawMatch, info *api.MatchInfo, p *api.MatchParticipant) *domain.CleanMatch {
	cs := p.TotalMinionsKilled + p.NeutralMinions
	kda := computeKDA(p.Kills, p.Deaths, p.Assists)
	csMin := computeCSPerMinute(cs, info.GameDuration)

	roster := make([]domain.Participant, len(info.Participants))
	for i := range info.Participants {
		rp := &info.Participants[i]
		roster[i] = domain.Participant{
			SummonerName: rp.DisplayName(),
			Champion:     rp.ChampionName,
			TeamID:       rp.TeamID,
			Kills:        rp.Kills,
			Deaths:       rp.Deaths,
			Assists:      rp.Assists,
			Damage:       rp.DamageToChampions,
			Items:        rp.Items(),
		}
	}

	return &domain.CleanMatch{
		MatchID:       raw.MatchID,
		PUUID:         raw.PUUID,
		Champion:      p.ChampionName,
		Win:           p.Win,
		Kills:         p.Kills,
		Deaths:        p.Deaths,
		Assists:       p.Assists,
		KDA:           kda,
		CS:            cs,
		CSMin:         csMin,
		Damage:        p.DamageToChampions,
		Gold:          p.GoldEarned,
		Items:         p.Items(),
		QueueID:       info.QueueID,
		GameTimestamp: info.GameEndTimestamp,
		Participants:  roster,
		CreatedAt:     time.Now(),
	}
}

// computeKDA is (kills+assists)/max(1,deaths), rounded to two decimals.
func computeKDA(kills, deaths, assists int) float64 {
	d := deaths
	if d < 1 {
		d = 1
	}
	return round2(float64(kills+assists) / float64(d))
}

// computeCSPerMinute normalizes creep score by game duration in minutes.
// A non-positive duration yields 0 rather than a nonsense rate.
func computeCSPerMinute(cs int, durationSeconds int64) float64 {
	if durationSeconds <= 0 {
		return 0
	}
	return round2(float64(cs) / (float64(durationSeconds) / 60.0))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
