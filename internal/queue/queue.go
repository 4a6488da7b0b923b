package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rift-tracker/internal/config"
	"rift-tracker/internal/constants"
	"rift-tracker/internal/domain"
	"rift-tracker/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func NewRedisClient(cfg *config.Config, logger zerolog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect to redis")
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("redis connection established")
	return client, nil
}

// Queue is the single named extraction queue: a Redis list carrying JSON task
// messages with at-least-once delivery.
type Queue struct {
	client *redis.Client
	key    string
	logger zerolog.Logger
}

func New(client *redis.Client, logger zerolog.Logger) *Queue {
	return &Queue{client: client, key: constants.ExtractionQueueKey, logger: logger}
}

func (q *Queue) Enqueue(ctx context.Context, task domain.Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}

	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	q.logger.Debug().
		Str("puuid", task.PUUID).
		Int("start", task.Start).
		Int("count", task.Count).
		Bool("update_profile", task.UpdateProfile).
		Msg("task enqueued")
	return nil
}

// Dequeue blocks up to the given timeout for the next task. Returns nil with
// no error when the timeout elapses with an empty queue. Messages that fail
// to decode are counted and dropped rather than redelivered forever.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*domain.Task, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue task: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply length %d", len(res))
	}

	task, err := domain.UnmarshalTask([]byte(res[1]))
	if err != nil {
		metrics.TasksDropped.Inc()
		q.logger.Warn().Err(err).Str("payload", res[1]).Msg("dropping undecodable task")
		return nil, nil
	}
	return task, nil
}

func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
