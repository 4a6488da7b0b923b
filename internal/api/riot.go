package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"rift-tracker/internal/config"
	"rift-tracker/internal/constants"
	"rift-tracker/internal/metrics"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// Upstream error taxonomy. Callers branch on these with errors.Is; anything
// else is a soft failure that the pipeline logs and skips.
var (
	// ErrRateLimited means the bounded 429 retry budget was exhausted.
	ErrRateLimited = errors.New("upstream rate limited")

	// ErrIdentityMismatch means the stored identifier was issued for a
	// different upstream credential than the one currently configured.
	ErrIdentityMismatch = errors.New("identifier not valid for active credential")

	ErrNotFound = errors.New("not found upstream")
)

type RiotClient struct {
	apiKey string
	client *fasthttp.Client
	logger zerolog.Logger

	// base builds the URL prefix for a routing host ("europe", "euw1", ...).
	// Overridable in tests.
	base func(host string) string

	cooldown   time.Duration
	maxRetries int
}

func NewRiotClient(cfg *config.Config, logger zerolog.Logger) *RiotClient {
	return &RiotClient{
		apiKey: cfg.RiotAPIKey,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         constants.ExternalAPITimeout,
			WriteTimeout:        constants.ExternalAPITimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		logger: logger,
		base: func(host string) string {
			return fmt.Sprintf("https://%s.api.riotgames.com", host)
		},
		cooldown:   constants.RateLimitCooldown,
		maxRetries: constants.RateLimitMaxRetries,
	}
}

type Account struct {
	PUUID    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

type Summoner struct {
	ID            string `json:"id"`
	PUUID         string `json:"puuid"`
	ProfileIconID int    `json:"profileIconId"`
	SummonerLevel int    `json:"summonerLevel"`
}

type LeagueEntry struct {
	SummonerID   string `json:"summonerId"`
	PUUID        string `json:"puuid"`
	QueueType    string `json:"queueType"`
	Tier         string `json:"tier"`
	Rank         string `json:"rank"`
	LeaguePoints int    `json:"leaguePoints"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
}

// AccountByRiotID resolves a display name to its stable identifier.
func (c *RiotClient) AccountByRiotID(ctx context.Context, regional, name, tag string) (*Account, error) {
	u := fmt.Sprintf("%s/riot/account/v1/accounts/by-riot-id/%s/%s",
		c.base(regional), url.PathEscape(name), url.PathEscape(tag))
	return doRequest[Account](ctx, c, u)
}

func (c *RiotClient) SummonerByPUUID(ctx context.Context, platform, puuid string) (*Summoner, error) {
	u := fmt.Sprintf("%s/lol/summoner/v4/summoners/by-puuid/%s", c.base(platform), puuid)
	return doRequest[Summoner](ctx, c, u)
}

func (c *RiotClient) LeagueEntriesBySummoner(ctx context.Context, platform, summonerID string) ([]LeagueEntry, error) {
	u := fmt.Sprintf("%s/lol/league/v4/entries/by-summoner/%s", c.base(platform), summonerID)
	entries, err := doRequest[[]LeagueEntry](ctx, c, u)
	if err != nil {
		return nil, err
	}
	return *entries, nil
}

// LeagueEntriesByTier pages a tier leaderboard; the ranked fallback scans the
// apex tiers with it.
func (c *RiotClient) LeagueEntriesByTier(ctx context.Context, platform, queue, tier, division string, page int) ([]LeagueEntry, error) {
	u := fmt.Sprintf("%s/lol/league-exp/v4/entries/%s/%s/%s?page=%d",
		c.base(platform), queue, tier, division, page)
	entries, err := doRequest[[]LeagueEntry](ctx, c, u)
	if err != nil {
		return nil, err
	}
	return *entries, nil
}

// MatchIDsByPUUID returns one page of match IDs, zero-based offset. The
// upstream caps count at 100; callers chunk larger requests.
func (c *RiotClient) MatchIDsByPUUID(ctx context.Context, regional, puuid string, start, count int) ([]string, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids?start=%d&count=%d",
		c.base(regional), puuid, start, count)
	ids, err := doRequest[[]string](ctx, c, u)
	if err != nil {
		return nil, err
	}
	return *ids, nil
}

// MatchByID returns the full untouched match payload.
func (c *RiotClient) MatchByID(ctx context.Context, regional, matchID string) (json.RawMessage, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/%s", c.base(regional), matchID)
	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func doRequest[T any](ctx context.Context, c *RiotClient, url string) (*T, error) {
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	var result T
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode upstream response: %w", err)
	}
	return &result, nil
}

// get issues one authenticated GET, classifies the status, and retries 429s
// a bounded number of times so a task can never park a worker forever.
func (c *RiotClient) get(ctx context.Context, url string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		status, body, err := c.do(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("upstream request failed: %w", err)
		}

		switch {
		case status == fasthttp.StatusOK:
			return body, nil

		case status == fasthttp.StatusTooManyRequests:
			metrics.RateLimitHits.Inc()
			if attempt >= c.maxRetries {
				c.logger.Warn().Str("url", url).Int("attempts", attempt+1).Msg("rate limit retry budget exhausted")
				return nil, ErrRateLimited
			}
			c.logger.Debug().Str("url", url).Dur("cooldown", c.cooldown).Msg("rate limited, cooling down")
			select {
			case <-time.After(c.cooldown):
			case <-ctx.Done():
				return nil, ctx.Err()
			}

		case status == fasthttp.StatusBadRequest && bytes.Contains(body, []byte("decrypt")):
			return nil, ErrIdentityMismatch

		case status == fasthttp.StatusNotFound:
			return nil, ErrNotFound

		default:
			c.logger.Warn().Str("url", url).Int("status", status).Msg("unexpected upstream status")
			return nil, fmt.Errorf("upstream status %d", status)
		}
	}
}

func (c *RiotClient) do(ctx context.Context, url string) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("X-Riot-Token", c.apiKey)

	if deadline, ok := ctx.Deadline(); ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			return 0, nil, err
		}
	} else {
		if err := c.client.Do(req, resp); err != nil {
			return 0, nil, err
		}
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return resp.StatusCode(), body, nil
}
