package service

import (
	"context"
	"errors"
	"testing"

	"rift-tracker/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	tasks  []domain.Task
	failAt int
	enqErr error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, task domain.Task) error {
	if f.enqErr != nil && len(f.tasks) == f.failAt {
		return f.enqErr
	}
	f.tasks = append(f.tasks, task)
	return nil
}

type fakeLister struct {
	players []domain.TrackedPlayer
	err     error
}

func (f *fakeLister) ListAll(ctx context.Context) ([]domain.TrackedPlayer, error) {
	return f.players, f.err
}

func TestDispatchSplitsIntoFixedBatches(t *testing.T) {
	q := &fakeEnqueuer{}
	s := &DispatchService{queue: q, players: &fakeLister{}, logger: zerolog.Nop()}

	n, err := s.Dispatch(context.Background(), "p1", 250)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.Len(t, q.tasks, 5)

	for i, task := range q.tasks {
		assert.Equal(t, domain.ActionExtractBatch, task.Action)
		assert.Equal(t, "p1", task.PUUID)
		assert.Equal(t, i*50, task.Start)
		assert.Equal(t, 50, task.Count)
	}
}

func TestDispatchOnlyFirstBatchUpdatesProfile(t *testing.T) {
	q := &fakeEnqueuer{}
	s := &DispatchService{queue: q, players: &fakeLister{}, logger: zerolog.Nop()}

	_, err := s.Dispatch(context.Background(), "p1", 200)
	require.NoError(t, err)
	require.Len(t, q.tasks, 4)

	assert.True(t, q.tasks[0].UpdateProfile)
	for _, task := range q.tasks[1:] {
		assert.False(t, task.UpdateProfile)
	}
}

func TestDispatchTruncatesLastBatch(t *testing.T) {
	q := &fakeEnqueuer{}
	s := &DispatchService{queue: q, players: &fakeLister{}, logger: zerolog.Nop()}

	n, err := s.Dispatch(context.Background(), "p1", 120)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 50, q.tasks[0].Count)
	assert.Equal(t, 50, q.tasks[1].Count)
	assert.Equal(t, 20, q.tasks[2].Count)
}

func TestDispatchZeroLimitQueuesNothing(t *testing.T) {
	q := &fakeEnqueuer{}
	s := &DispatchService{queue: q, players: &fakeLister{}, logger: zerolog.Nop()}

	n, err := s.Dispatch(context.Background(), "p1", 0)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, q.tasks)
}

func TestDispatchSurfacesEnqueueFailure(t *testing.T) {
	q := &fakeEnqueuer{failAt: 2, enqErr: errors.New("queue down")}
	s := &DispatchService{queue: q, players: &fakeLister{}, logger: zerolog.Nop()}

	n, err := s.Dispatch(context.Background(), "p1", 200)
	require.Error(t, err)
	assert.Equal(t, 2, n)
}

func TestDispatchAllCoversEveryPlayer(t *testing.T) {
	q := &fakeEnqueuer{}
	lister := &fakeLister{players: []domain.TrackedPlayer{{PUUID: "p1"}, {PUUID: "p2"}}}
	s := &DispatchService{queue: q, players: lister, logger: zerolog.Nop()}

	n, err := s.DispatchAll(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	puuids := map[string]int{}
	for _, task := range q.tasks {
		puuids[task.PUUID]++
	}
	assert.Equal(t, map[string]int{"p1": 2, "p2": 2}, puuids)
}
