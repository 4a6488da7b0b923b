package worker

import (
	"context"
	"sync"
	"time"

	"rift-tracker/internal/constants"
	"rift-tracker/internal/service"

	"github.com/rs/zerolog"
)

// Scheduler owns the interval jobs: periodic re-ingestion, the normalization
// pass and retention cleanup. The passes poll shared state independently and
// never assume mutual exclusion with the worker pool.
type Scheduler struct {
	dispatch    *service.DispatchService
	normalize   *service.NormalizeService
	maintenance *service.MaintenanceService
	logger      zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(dispatch *service.DispatchService, normalize *service.NormalizeService, maintenance *service.MaintenanceService, logger zerolog.Logger) *Scheduler {
	return &Scheduler{dispatch: dispatch, normalize: normalize, maintenance: maintenance, logger: logger}
}

func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.every(ctx, constants.IngestInterval, "ingest", func(ctx context.Context) {
		if _, err := s.dispatch.DispatchAll(ctx, constants.RefreshLimit); err != nil {
			s.logger.Error().Err(err).Msg("periodic dispatch failed")
		}
	})

	s.every(ctx, constants.NormalizeInterval, "normalize", func(ctx context.Context) {
		if _, err := s.normalize.ProcessUnprocessed(ctx); err != nil {
			s.logger.Error().Err(err).Msg("normalization pass failed")
		}
	})

	s.every(ctx, constants.RetentionInterval, "retention", func(ctx context.Context) {
		if _, err := s.maintenance.Cleanup(ctx); err != nil {
			s.logger.Error().Err(err).Msg("retention pass failed")
		}
	})

	s.logger.Info().
		Dur("ingest_interval", constants.IngestInterval).
		Dur("normalize_interval", constants.NormalizeInterval).
		Dur("retention_interval", constants.RetentionInterval).
		Msg("schedulers started")
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.logger.Info().Msg("schedulers stopped")
}

func (s *Scheduler) every(ctx context.Context, interval time.Duration, name string, job func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.logger.Debug().Str("job", name).Msg("interval job firing")
				job(ctx)
			}
		}
	}()
}
