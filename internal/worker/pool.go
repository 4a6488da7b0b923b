// Package worker hosts the asynchronous half of the pipeline: the task-queue
// consumer pool and the interval schedulers.
package worker

import (
	"context"
	"sync"

	"rift-tracker/internal/config"
	"rift-tracker/internal/constants"
	"rift-tracker/internal/domain"
	"rift-tracker/internal/metrics"
	"rift-tracker/internal/queue"
	"rift-tracker/internal/service"

	"github.com/rs/zerolog"
)

// Pool consumes extraction tasks from the shared queue. Delivery is
// at-least-once with no ordering guarantee across players; batch tasks are
// independent, so workers run them in parallel.
type Pool struct {
	queue   *queue.Queue
	fetch   *service.FetchService
	workers int
	logger  zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPool(q *queue.Queue, fetch *service.FetchService, cfg *config.Config, logger zerolog.Logger) *Pool {
	return &Pool{queue: q, fetch: fetch, workers: cfg.WorkerCount, logger: logger}
}

func (p *Pool) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	p.logger.Info().Int("workers", p.workers).Msg("worker pool started")
}

func (p *Pool) Stop() {
	p.logger.Info().Msg("stopping worker pool")
	p.cancel()
	p.wg.Wait()
	p.logger.Info().Msg("worker pool stopped")
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	log := p.logger.With().Int("worker", id).Logger()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := p.queue.Dequeue(ctx, constants.DequeueBlock)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("failed to dequeue task")
			continue
		}
		if task == nil {
			if depth, err := p.queue.Depth(ctx); err == nil {
				metrics.QueueDepth.Set(float64(depth))
			}
			continue
		}

		p.handle(ctx, log, task)
	}
}

// handle runs one task under its own deadline so a stuck batch cannot occupy
// a worker slot forever.
func (p *Pool) handle(ctx context.Context, log zerolog.Logger, task *domain.Task) {
	taskCtx, cancel := context.WithTimeout(ctx, constants.TaskTimeout)
	defer cancel()

	switch task.Action {
	case domain.ActionExtractBatch:
		if err := p.fetch.FetchBatch(taskCtx, task); err != nil {
			metrics.TasksFailed.Inc()
			log.Error().
				Err(err).
				Str("puuid", task.PUUID).
				Int("start", task.Start).
				Msg("task failed")
			return
		}
		metrics.TasksProcessed.Inc()
	default:
		// Unreachable: the queue rejects unknown actions at decode time.
		metrics.TasksDropped.Inc()
		log.Warn().Str("action", string(task.Action)).Msg("dropping task with unhandled action")
	}
}
