package service

import (
	"context"

	"rift-tracker/internal/constants"
	"rift-tracker/internal/repository"

	"github.com/rs/zerolog"
)

// CleanupReport summarizes one maintenance pass.
type CleanupReport struct {
	DeletedOrphans    int64 `json:"deleted_orphans"`
	DeletedDuplicates int64 `json:"deleted_duplicates"`
	TrimmedExcess     int64 `json:"trimmed_excess"`
}

// MaintenanceService enforces the retention policy: orphan removal, duplicate
// cleanup and bounded per-player history.
type MaintenanceService struct {
	players *repository.PlayerRepository
	raw     *repository.RawMatchRepository
	clean   *repository.CleanMatchRepository
	logger  zerolog.Logger
}

func NewMaintenanceService(players *repository.PlayerRepository, raw *repository.RawMatchRepository, clean *repository.CleanMatchRepository, logger zerolog.Logger) *MaintenanceService {
	return &MaintenanceService{players: players, raw: raw, clean: clean, logger: logger}
}

func (s *MaintenanceService) Cleanup(ctx context.Context) (*CleanupReport, error) {
	players, err := s.players.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	valid := make([]string, len(players))
	for i := range players {
		valid[i] = players[i].PUUID
	}

	report := &CleanupReport{}

	rawOrphans, err := s.raw.DeleteOrphans(ctx, valid)
	if err != nil {
		return report, err
	}
	cleanOrphans, err := s.clean.DeleteOrphans(ctx, valid)
	if err != nil {
		return report, err
	}
	report.DeletedOrphans = rawOrphans + cleanOrphans

	if report.DeletedDuplicates, err = s.raw.RemoveDuplicates(ctx); err != nil {
		return report, err
	}

	for _, puuid := range valid {
		trimmed, err := s.raw.TrimHistory(ctx, puuid, constants.HistoryLimit)
		if err != nil {
			return report, err
		}
		report.TrimmedExcess += trimmed

		if _, err := s.clean.TrimHistory(ctx, puuid, constants.HistoryLimit); err != nil {
			return report, err
		}
	}

	s.logger.Info().
		Int64("deleted_orphans", report.DeletedOrphans).
		Int64("deleted_duplicates", report.DeletedDuplicates).
		Int64("trimmed_excess", report.TrimmedExcess).
		Msg("maintenance pass completed")
	return report, nil
}
