package constants

import "time"

const (
	// BatchSize is the per-task match-ID page size. Dispatch splits larger
	// requests into offsets 0, 50, 100, ...
	BatchSize         = 50
	InitialFetchLimit = 200
	RefreshLimit      = 100
	MaxIDsPerPage     = 100

	// HistoryLimit bounds per-player raw and clean history; retention trims
	// anything older.
	HistoryLimit       = 200
	RecentMatchesLimit = 300

	// NormalizeBatchLimit caps one normalization pass; leftovers wait for
	// the next tick.
	NormalizeBatchLimit = 500
)

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
	TaskTimeout        = 2 * time.Minute
	ShutdownTimeout    = 5 * time.Second
)

const (
	RateLimitCooldown   = 10 * time.Second
	RateLimitMaxRetries = 5
	ProbeDelay          = 500 * time.Millisecond
	DequeueBlock        = 5 * time.Second
)

const (
	IngestInterval    = 30 * time.Minute
	NormalizeInterval = 1 * time.Minute
	RetentionInterval = 6 * time.Hour
)

const (
	ExtractionQueueKey = "extraction_queue"
	RankedSoloQueue    = "RANKED_SOLO_5x5"
)

// Platforms is the bounded probe set for region rediscovery, walked
// sequentially when a platform-scoped lookup 404s.
var Platforms = []string{"euw1", "eun1", "na1", "kr", "br1", "jp1"}

// PlatformRouting maps a platform shard to its regional routing host.
var PlatformRouting = map[string]string{
	"euw1": "europe",
	"eun1": "europe",
	"na1":  "americas",
	"br1":  "americas",
	"kr":   "asia",
	"jp1":  "asia",
}

// ApexTiers are the leaderboard tiers scanned by the ranked fallback when a
// summoner-keyed ranked lookup is unavailable.
var ApexTiers = []string{"CHALLENGER", "GRANDMASTER", "MASTER"}
