package domain

import (
	"time"
)

// TrackedPlayer is a summoner we keep match history for. The puuid is the
// stable key across all collections; summonerName ("Name#Tag") is only used
// for case-insensitive lookup and for identity re-resolution.
type TrackedPlayer struct {
	PUUID         string    `bson:"puuid"`
	SummonerName  string    `bson:"summonerName"`
	Platform      string    `bson:"platform"`
	Region        string    `bson:"region"`
	SummonerID    string    `bson:"summonerId,omitempty"`
	ProfileIconID int       `bson:"profileIconId"`
	SummonerLevel int       `bson:"summonerLevel"`
	Tier          string    `bson:"solo_tier"`
	Rank          string    `bson:"solo_rank"`
	LeaguePoints  int       `bson:"solo_lp"`
	Wins          int       `bson:"solo_wins"`
	Losses        int       `bson:"solo_losses"`
	LastFetchAt   time.Time `bson:"lastFetchAt"`
	CreatedAt     time.Time `bson:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt"`
}

// RankSnapshot is the ranked-queue standing persisted onto the player record
// during a profile refresh. A zero value other than Tier "UNRANKED" is never
// written.
type RankSnapshot struct {
	Tier         string
	Rank         string
	LeaguePoints int
	Wins         int
	Losses       int
}

// Unranked is the fallback standing when the player appears in no ranked
// source.
func Unranked() *RankSnapshot {
	return &RankSnapshot{Tier: "UNRANKED"}
}

// RawMatch holds the untouched upstream payload. Unique on matchId: the same
// match can be seen from several tracked players' queries but is stored once,
// keyed to whichever player's batch fetched it first.
type RawMatch struct {
	MatchID   string    `bson:"matchId"`
	PUUID     string    `bson:"puuid"`
	Raw       []byte    `bson:"raw"`
	Processed bool      `bson:"processed"`
	FetchedAt time.Time `bson:"timestamp"`
}

// CleanMatch is the flat per-player record produced by the normalizer.
// Immutable once written.
type CleanMatch struct {
	MatchID       string        `bson:"matchId"`
	PUUID         string        `bson:"puuid"`
	Champion      string        `bson:"champion"`
	Win           bool          `bson:"win"`
	Kills         int           `bson:"kills"`
	Deaths        int           `bson:"deaths"`
	Assists       int           `bson:"assists"`
	KDA           float64       `bson:"kda"`
	CS            int           `bson:"cs"`
	CSMin         float64       `bson:"cs_min"`
	Damage        int           `bson:"damage"`
	Gold          int           `bson:"gold"`
	Items         []int         `bson:"items"`
	QueueID       int           `bson:"queue_id"`
	GameTimestamp int64         `bson:"game_timestamp"`
	Participants  []Participant `bson:"participants"`
	CreatedAt     time.Time     `bson:"timestamp"`
}

// Participant is the denormalized roster snapshot kept on every clean match
// for the detail view.
type Participant struct {
	SummonerName string `bson:"summonerName"`
	Champion     string `bson:"champion"`
	TeamID       int    `bson:"teamId"`
	Kills        int    `bson:"kills"`
	Deaths       int    `bson:"deaths"`
	Assists      int    `bson:"assists"`
	Damage       int    `bson:"damage"`
	Items        []int  `bson:"items"`
}

// AggregatedStat is the running per-(player, champion) total, maintained by
// atomic increments as matches are normalized.
type AggregatedStat struct {
	PUUID    string  `bson:"puuid"`
	Champion string  `bson:"champion"`
	Games    int     `bson:"games"`
	Wins     int     `bson:"wins"`
	KDASum   float64 `bson:"kda_sum"`
}
