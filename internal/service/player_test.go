package service

import (
	"context"
	"errors"
	"testing"

	"rift-tracker/internal/domain"
	"rift-tracker/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlayerAdmin struct {
	player  *domain.TrackedPlayer
	players []domain.TrackedPlayer
	deleted []string
}

func (f *fakePlayerAdmin) Upsert(ctx context.Context, player *domain.TrackedPlayer) error {
	f.player = player
	return nil
}

func (f *fakePlayerAdmin) GetByName(ctx context.Context, nameTag string) (*domain.TrackedPlayer, error) {
	if f.player == nil {
		return nil, repository.ErrPlayerNotFound
	}
	return f.player, nil
}

func (f *fakePlayerAdmin) ListAll(ctx context.Context) ([]domain.TrackedPlayer, error) {
	return f.players, nil
}

func (f *fakePlayerAdmin) Delete(ctx context.Context, puuid string) error {
	f.deleted = append(f.deleted, puuid)
	return nil
}

type fakePurger struct {
	deleted []string
	err     error
}

func (f *fakePurger) DeleteByPUUID(ctx context.Context, puuid string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.deleted = append(f.deleted, puuid)
	return 1, nil
}

type fakeCleanData struct {
	fakePurger
	matches []domain.CleanMatch
}

func (f *fakeCleanData) ListRecent(ctx context.Context, puuid string, limit int) ([]domain.CleanMatch, error) {
	return f.matches, nil
}

type fakeStatsData struct {
	fakePurger
	stats []domain.AggregatedStat
}

func (f *fakeStatsData) ListByPUUID(ctx context.Context, puuid string) ([]domain.AggregatedStat, error) {
	return f.stats, nil
}

func TestAddPlayerRejectsMalformedNameTag(t *testing.T) {
	s := &PlayerService{}

	for _, input := range []string{"", "NoTagHere", "#EUW", "Name#", "  #  ", "#"} {
		_, err := s.AddPlayer(context.Background(), input)
		require.ErrorIs(t, err, ErrInvalidNameTag, "input %q", input)
	}
}

func TestDeletePlayerCascades(t *testing.T) {
	players := &fakePlayerAdmin{player: &domain.TrackedPlayer{PUUID: "p1", SummonerName: "Name#TAG"}}
	raw := &fakePurger{}
	clean := &fakeCleanData{}
	stats := &fakeStatsData{}
	s := &PlayerService{players: players, raw: raw, clean: clean, stats: stats, logger: zerolog.Nop()}

	name, err := s.DeletePlayer(context.Background(), "name#tag")
	require.NoError(t, err)
	assert.Equal(t, "Name#TAG", name)
	assert.Equal(t, []string{"p1"}, players.deleted)
	assert.Equal(t, []string{"p1"}, raw.deleted)
	assert.Equal(t, []string{"p1"}, clean.deleted)
	assert.Equal(t, []string{"p1"}, stats.deleted)
}

func TestDeletePlayerCascadeFailureIsNotFatal(t *testing.T) {
	players := &fakePlayerAdmin{player: &domain.TrackedPlayer{PUUID: "p1", SummonerName: "Name#TAG"}}
	raw := &fakePurger{err: errors.New("connection reset by peer")}
	clean := &fakeCleanData{}
	stats := &fakeStatsData{}
	s := &PlayerService{players: players, raw: raw, clean: clean, stats: stats, logger: zerolog.Nop()}

	// The player is untracked either way; remaining cascades still run and
	// retention backstops whatever was left behind.
	name, err := s.DeletePlayer(context.Background(), "name#tag")
	require.NoError(t, err)
	assert.Equal(t, "Name#TAG", name)
	assert.Equal(t, []string{"p1"}, clean.deleted)
	assert.Equal(t, []string{"p1"}, stats.deleted)
}

func TestDeletePlayerUnknownName(t *testing.T) {
	s := &PlayerService{players: &fakePlayerAdmin{}, logger: zerolog.Nop()}

	_, err := s.DeletePlayer(context.Background(), "ghost#euw")
	require.ErrorIs(t, err, repository.ErrPlayerNotFound)
}

func TestListNamesSorted(t *testing.T) {
	players := &fakePlayerAdmin{players: []domain.TrackedPlayer{
		{SummonerName: "Zoe#EUW"},
		{SummonerName: "Ahri#EUW"},
		{SummonerName: "Milio#EUW"},
	}}
	s := &PlayerService{players: players, logger: zerolog.Nop()}

	names, err := s.ListNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Ahri#EUW", "Milio#EUW", "Zoe#EUW"}, names)
}

func TestStatsComputesWinrateAndAvgKDA(t *testing.T) {
	players := &fakePlayerAdmin{player: &domain.TrackedPlayer{PUUID: "p1", SummonerName: "Name#TAG"}}
	clean := &fakeCleanData{matches: []domain.CleanMatch{{MatchID: "EUW1_1", Champion: "Jinx"}}}
	stats := &fakeStatsData{stats: []domain.AggregatedStat{
		{PUUID: "p1", Champion: "Jinx", Games: 4, Wins: 3, KDASum: 10},
		{PUUID: "p1", Champion: "Thresh", Games: 3, Wins: 1, KDASum: 7},
	}}
	s := &PlayerService{players: players, clean: clean, stats: stats, logger: zerolog.Nop()}

	view, err := s.Stats(context.Background(), "name#tag")
	require.NoError(t, err)
	assert.Equal(t, "p1", view.Player.PUUID)
	require.Len(t, view.Matches, 1)

	require.Len(t, view.Aggregated, 2)
	assert.Equal(t, ChampionRow{Champion: "Jinx", Games: 4, Wins: 3, Winrate: 75, AvgKDA: 2.5}, view.Aggregated[0])
	assert.Equal(t, ChampionRow{Champion: "Thresh", Games: 3, Wins: 1, Winrate: 33.33, AvgKDA: 2.33}, view.Aggregated[1])
}
