package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"rift-tracker/internal/api"
	"rift-tracker/internal/domain"
	"rift-tracker/internal/resolver"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type idsCall struct {
	puuid string
	start int
	count int
}

type fakeRiot struct {
	accountFn  func(regional, name, tag string) (*api.Account, error)
	summonerFn func(platform, puuid string) (*api.Summoner, error)
	leagueFn   func(platform, summonerID string) ([]api.LeagueEntry, error)
	tierFn     func(platform, queue, tier, division string, page int) ([]api.LeagueEntry, error)
	idsFn      func(regional, puuid string, start, count int) ([]string, error)
	matchFn    func(regional, matchID string) (json.RawMessage, error)

	idsCalls []idsCall
}

func (f *fakeRiot) AccountByRiotID(ctx context.Context, regional, name, tag string) (*api.Account, error) {
	return f.accountFn(regional, name, tag)
}

func (f *fakeRiot) SummonerByPUUID(ctx context.Context, platform, puuid string) (*api.Summoner, error) {
	return f.summonerFn(platform, puuid)
}

func (f *fakeRiot) LeagueEntriesBySummoner(ctx context.Context, platform, summonerID string) ([]api.LeagueEntry, error) {
	return f.leagueFn(platform, summonerID)
}

func (f *fakeRiot) LeagueEntriesByTier(ctx context.Context, platform, queue, tier, division string, page int) ([]api.LeagueEntry, error) {
	return f.tierFn(platform, queue, tier, division, page)
}

func (f *fakeRiot) MatchIDsByPUUID(ctx context.Context, regional, puuid string, start, count int) ([]string, error) {
	f.idsCalls = append(f.idsCalls, idsCall{puuid: puuid, start: start, count: count})
	return f.idsFn(regional, puuid, start, count)
}

func (f *fakeRiot) MatchByID(ctx context.Context, regional, matchID string) (json.RawMessage, error) {
	return f.matchFn(regional, matchID)
}

type fakeIdentity struct {
	reresolveTo   string
	reresolveErr  error
	rediscoverTo  string
	rediscoverErr error

	reresolves  int
	rediscovers int
}

func (f *fakeIdentity) Routing(player *domain.TrackedPlayer) (string, string) {
	return "euw1", "europe"
}

func (f *fakeIdentity) ReResolve(ctx context.Context, player *domain.TrackedPlayer) (string, error) {
	f.reresolves++
	return f.reresolveTo, f.reresolveErr
}

func (f *fakeIdentity) Rediscover(ctx context.Context, player *domain.TrackedPlayer, workingPUUID string) (string, string, error) {
	f.rediscovers++
	if f.rediscoverErr != nil {
		return "", "", f.rediscoverErr
	}
	return f.rediscoverTo, "asia", nil
}

type fakeFetchPlayers struct {
	player *domain.TrackedPlayer

	profileSummonerID string
	rank              *domain.RankSnapshot
	lastFetchAt       time.Time
}

func (f *fakeFetchPlayers) GetByPUUID(ctx context.Context, puuid string) (*domain.TrackedPlayer, error) {
	return f.player, nil
}

func (f *fakeFetchPlayers) UpdateProfile(ctx context.Context, puuid, summonerID string, iconID, level int) error {
	f.profileSummonerID = summonerID
	return nil
}

func (f *fakeFetchPlayers) UpdateRank(ctx context.Context, puuid string, entry *domain.RankSnapshot) error {
	f.rank = entry
	return nil
}

func (f *fakeFetchPlayers) SetLastFetchAt(ctx context.Context, puuid string, at time.Time) error {
	f.lastFetchAt = at
	return nil
}

type fakeRawStore struct {
	existing map[string]bool
	inserted []domain.RawMatch
}

func (f *fakeRawStore) Exists(ctx context.Context, matchID string) (bool, error) {
	return f.existing[matchID], nil
}

func (f *fakeRawStore) Insert(ctx context.Context, m *domain.RawMatch) (bool, error) {
	if f.existing[m.MatchID] {
		return false, nil
	}
	if f.existing == nil {
		f.existing = map[string]bool{}
	}
	f.existing[m.MatchID] = true
	f.inserted = append(f.inserted, *m)
	return true, nil
}

func newTestFetcher(riot *fakeRiot, res *fakeIdentity, players *fakeFetchPlayers, raw *fakeRawStore) *FetchService {
	return &FetchService{riot: riot, resolver: res, players: players, raw: raw, logger: zerolog.Nop()}
}

func TestFetchBatchStoresNewMatches(t *testing.T) {
	riot := &fakeRiot{
		idsFn: func(regional, puuid string, start, count int) ([]string, error) {
			return []string{"A", "B", "C"}, nil
		},
		matchFn: func(regional, matchID string) (json.RawMessage, error) {
			return json.RawMessage(`{"metadata":{"matchId":"` + matchID + `"}}`), nil
		},
	}
	players := &fakeFetchPlayers{player: &domain.TrackedPlayer{PUUID: "p1", SummonerName: "Name#TAG"}}
	raw := &fakeRawStore{existing: map[string]bool{"B": true}}
	s := newTestFetcher(riot, &fakeIdentity{}, players, raw)

	err := s.FetchBatch(context.Background(), &domain.Task{Action: domain.ActionExtractBatch, PUUID: "p1", Start: 0, Count: 50})
	require.NoError(t, err)

	require.Len(t, raw.inserted, 2)
	assert.Equal(t, "A", raw.inserted[0].MatchID)
	assert.Equal(t, "C", raw.inserted[1].MatchID)
	assert.Equal(t, "p1", raw.inserted[0].PUUID)
	assert.False(t, raw.inserted[0].Processed)
	assert.False(t, players.lastFetchAt.IsZero())
}

func TestFetchBatchChunksWindowIntoPages(t *testing.T) {
	riot := &fakeRiot{
		idsFn: func(regional, puuid string, start, count int) ([]string, error) {
			ids := make([]string, count)
			for i := range ids {
				ids[i] = fmt.Sprintf("M%d", start+i)
			}
			return ids, nil
		},
		matchFn: func(regional, matchID string) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		},
	}
	players := &fakeFetchPlayers{player: &domain.TrackedPlayer{PUUID: "p1"}}
	raw := &fakeRawStore{}
	s := newTestFetcher(riot, &fakeIdentity{}, players, raw)

	err := s.FetchBatch(context.Background(), &domain.Task{Action: domain.ActionExtractBatch, PUUID: "p1", Start: 0, Count: 250})
	require.NoError(t, err)

	assert.Equal(t, []idsCall{
		{puuid: "p1", start: 0, count: 100},
		{puuid: "p1", start: 100, count: 100},
		{puuid: "p1", start: 200, count: 50},
	}, riot.idsCalls)
	assert.Len(t, raw.inserted, 250)
}

func TestFetchBatchStopsOnShortPage(t *testing.T) {
	riot := &fakeRiot{
		idsFn: func(regional, puuid string, start, count int) ([]string, error) {
			if start == 0 {
				return []string{"A", "B"}, nil
			}
			return nil, nil
		},
		matchFn: func(regional, matchID string) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		},
	}
	players := &fakeFetchPlayers{player: &domain.TrackedPlayer{PUUID: "p1"}}
	raw := &fakeRawStore{}
	s := newTestFetcher(riot, &fakeIdentity{}, players, raw)

	err := s.FetchBatch(context.Background(), &domain.Task{Action: domain.ActionExtractBatch, PUUID: "p1", Start: 0, Count: 250})
	require.NoError(t, err)

	require.Len(t, riot.idsCalls, 1)
	assert.Len(t, raw.inserted, 2)
}

func TestFetchBatchRecoversFromIdentityMismatch(t *testing.T) {
	riot := &fakeRiot{
		idsFn: func(regional, puuid string, start, count int) ([]string, error) {
			if puuid == "stale" {
				return nil, api.ErrIdentityMismatch
			}
			return []string{"A"}, nil
		},
		matchFn: func(regional, matchID string) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		},
	}
	res := &fakeIdentity{reresolveTo: "fresh"}
	players := &fakeFetchPlayers{player: &domain.TrackedPlayer{PUUID: "stale", SummonerName: "Name#TAG"}}
	raw := &fakeRawStore{}
	s := newTestFetcher(riot, res, players, raw)

	err := s.FetchBatch(context.Background(), &domain.Task{Action: domain.ActionExtractBatch, PUUID: "stale", Start: 0, Count: 50})
	require.NoError(t, err)

	assert.Equal(t, 1, res.reresolves)
	require.Len(t, riot.idsCalls, 2)
	assert.Equal(t, "stale", riot.idsCalls[0].puuid)
	assert.Equal(t, "fresh", riot.idsCalls[1].puuid)

	// Persisted records keep the original identifier as the foreign key.
	require.Len(t, raw.inserted, 1)
	assert.Equal(t, "stale", raw.inserted[0].PUUID)
}

func TestFetchBatchSkipsMatchGoneUpstream(t *testing.T) {
	riot := &fakeRiot{
		idsFn: func(regional, puuid string, start, count int) ([]string, error) {
			return []string{"GONE", "OK"}, nil
		},
		matchFn: func(regional, matchID string) (json.RawMessage, error) {
			if matchID == "GONE" {
				return nil, api.ErrNotFound
			}
			return json.RawMessage(`{}`), nil
		},
	}
	players := &fakeFetchPlayers{player: &domain.TrackedPlayer{PUUID: "p1"}}
	raw := &fakeRawStore{}
	s := newTestFetcher(riot, &fakeIdentity{}, players, raw)

	err := s.FetchBatch(context.Background(), &domain.Task{Action: domain.ActionExtractBatch, PUUID: "p1", Start: 0, Count: 50})
	require.NoError(t, err)

	require.Len(t, raw.inserted, 1)
	assert.Equal(t, "OK", raw.inserted[0].MatchID)
}

func TestFetchBatchUpdateProfileRediscoversPlatform(t *testing.T) {
	riot := &fakeRiot{
		summonerFn: func(platform, puuid string) (*api.Summoner, error) {
			if platform == "euw1" {
				return nil, api.ErrNotFound
			}
			return &api.Summoner{ID: "sid", PUUID: puuid, SummonerLevel: 300}, nil
		},
		leagueFn: func(platform, summonerID string) ([]api.LeagueEntry, error) {
			return []api.LeagueEntry{{QueueType: "RANKED_SOLO_5x5", Tier: "GOLD", Rank: "II", LeaguePoints: 40}}, nil
		},
		idsFn: func(regional, puuid string, start, count int) ([]string, error) {
			return nil, nil
		},
	}
	res := &fakeIdentity{rediscoverTo: "kr"}
	players := &fakeFetchPlayers{player: &domain.TrackedPlayer{PUUID: "p1", Platform: "euw1"}}
	s := newTestFetcher(riot, res, players, &fakeRawStore{})

	err := s.FetchBatch(context.Background(), &domain.Task{Action: domain.ActionExtractBatch, PUUID: "p1", Start: 0, Count: 50, UpdateProfile: true})
	require.NoError(t, err)

	assert.Equal(t, 1, res.rediscovers)
	assert.Equal(t, "sid", players.profileSummonerID)
	require.NotNil(t, players.rank)
	assert.Equal(t, "GOLD", players.rank.Tier)
}

func TestFetchBatchNoRegionIsTerminal(t *testing.T) {
	riot := &fakeRiot{
		summonerFn: func(platform, puuid string) (*api.Summoner, error) {
			return nil, api.ErrNotFound
		},
	}
	res := &fakeIdentity{rediscoverErr: resolver.ErrNoRegion}
	players := &fakeFetchPlayers{player: &domain.TrackedPlayer{PUUID: "p1"}}
	s := newTestFetcher(riot, res, players, &fakeRawStore{})

	err := s.FetchBatch(context.Background(), &domain.Task{Action: domain.ActionExtractBatch, PUUID: "p1", Start: 0, Count: 50, UpdateProfile: true})
	require.ErrorIs(t, err, resolver.ErrNoRegion)
	assert.Empty(t, riot.idsCalls)
}

func TestFetchBatchProfileFailureIsNotTerminal(t *testing.T) {
	riot := &fakeRiot{
		summonerFn: func(platform, puuid string) (*api.Summoner, error) {
			return nil, errors.New("upstream status 500")
		},
		idsFn: func(regional, puuid string, start, count int) ([]string, error) {
			return []string{"A"}, nil
		},
		matchFn: func(regional, matchID string) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		},
	}
	players := &fakeFetchPlayers{player: &domain.TrackedPlayer{PUUID: "p1"}}
	raw := &fakeRawStore{}
	s := newTestFetcher(riot, &fakeIdentity{}, players, raw)

	err := s.FetchBatch(context.Background(), &domain.Task{Action: domain.ActionExtractBatch, PUUID: "p1", Start: 0, Count: 50, UpdateProfile: true})
	require.NoError(t, err)
	assert.Len(t, raw.inserted, 1)
}

func TestLookupRankFallsBackToApexScan(t *testing.T) {
	riot := &fakeRiot{
		leagueFn: func(platform, summonerID string) ([]api.LeagueEntry, error) {
			return nil, errors.New("endpoint deprecated")
		},
		tierFn: func(platform, queue, tier, division string, page int) ([]api.LeagueEntry, error) {
			if tier == "GRANDMASTER" {
				return []api.LeagueEntry{{PUUID: "p1", Tier: "GRANDMASTER", Rank: "I", LeaguePoints: 650}}, nil
			}
			return nil, nil
		},
	}
	s := newTestFetcher(riot, &fakeIdentity{}, &fakeFetchPlayers{}, &fakeRawStore{})

	rank := s.lookupRank(context.Background(), "euw1", "sid", "p1")
	assert.Equal(t, "GRANDMASTER", rank.Tier)
	assert.Equal(t, 650, rank.LeaguePoints)
}

func TestLookupRankDefaultsToUnranked(t *testing.T) {
	riot := &fakeRiot{
		leagueFn: func(platform, summonerID string) ([]api.LeagueEntry, error) {
			return []api.LeagueEntry{{QueueType: "RANKED_FLEX_SR", Tier: "SILVER"}}, nil
		},
	}
	s := newTestFetcher(riot, &fakeIdentity{}, &fakeFetchPlayers{}, &fakeRawStore{})

	rank := s.lookupRank(context.Background(), "euw1", "sid", "p1")
	assert.Equal(t, "UNRANKED", rank.Tier)
}
