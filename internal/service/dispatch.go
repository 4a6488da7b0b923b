package service

import (
	"context"
	"fmt"

	"rift-tracker/internal/constants"
	"rift-tracker/internal/domain"
	"rift-tracker/internal/queue"
	"rift-tracker/internal/repository"

	"github.com/rs/zerolog"
)

type taskEnqueuer interface {
	Enqueue(ctx context.Context, task domain.Task) error
}

type playerLister interface {
	ListAll(ctx context.Context) ([]domain.TrackedPlayer, error)
}

// DispatchService decomposes "refresh N matches for player P" into bounded
// batch tasks and hands them to the queue. Fire-and-forget past this point.
type DispatchService struct {
	queue   taskEnqueuer
	players playerLister
	logger  zerolog.Logger
}

func NewDispatchService(q *queue.Queue, players *repository.PlayerRepository, logger zerolog.Logger) *DispatchService {
	return &DispatchService{queue: q, players: players, logger: logger}
}

// Dispatch splits totalLimit into fixed-size batches at offsets 0, 50, 100...
// Only the offset-0 task carries the profile refresh, so it happens once per
// dispatch cycle rather than once per batch.
func (s *DispatchService) Dispatch(ctx context.Context, puuid string, totalLimit int) (int, error) {
	enqueued := 0
	for start := 0; start < totalLimit; start += constants.BatchSize {
		count := constants.BatchSize
		if start+count > totalLimit {
			count = totalLimit - start
		}

		task := domain.Task{
			Action:        domain.ActionExtractBatch,
			PUUID:         puuid,
			Start:         start,
			Count:         count,
			UpdateProfile: start == 0,
		}
		if err := s.queue.Enqueue(ctx, task); err != nil {
			return enqueued, fmt.Errorf("failed to enqueue batch at offset %d: %w", start, err)
		}
		enqueued++
	}

	s.logger.Info().
		Str("puuid", puuid).
		Int("total_limit", totalLimit).
		Int("batches", enqueued).
		Msg("batches dispatched")
	return enqueued, nil
}

// DispatchAll queues a refresh window for every tracked player.
func (s *DispatchService) DispatchAll(ctx context.Context, totalLimit int) (int, error) {
	players, err := s.players.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for i := range players {
		n, err := s.Dispatch(ctx, players[i].PUUID, totalLimit)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
