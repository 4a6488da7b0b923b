package api

// MatchPayload is the subset of the match-detail payload the normalizer
// reads. The raw bytes are persisted untouched; this shape is only applied
// when a record is processed.
type MatchPayload struct {
	Metadata struct {
		MatchID string `json:"matchId"`
	} `json:"metadata"`
	Info *MatchInfo `json:"info"`
}

type MatchInfo struct {
	GameDuration     int64              `json:"gameDuration"`
	GameEndTimestamp int64              `json:"gameEndTimestamp"`
	QueueID          int                `json:"queueId"`
	Participants     []MatchParticipant `json:"participants"`
}

type MatchParticipant struct {
	PUUID              string `json:"puuid"`
	RiotIDGameName     string `json:"riotIdGameName"`
	RiotIDTagline      string `json:"riotIdTagline"`
	SummonerName       string `json:"summonerName"`
	ChampionName       string `json:"championName"`
	TeamID             int    `json:"teamId"`
	Win                bool   `json:"win"`
	Kills              int    `json:"kills"`
	Deaths             int    `json:"deaths"`
	Assists            int    `json:"assists"`
	TotalMinionsKilled int    `json:"totalMinionsKilled"`
	NeutralMinions     int    `json:"neutralMinionsKilled"`
	DamageToChampions  int    `json:"totalDamageDealtToChampions"`
	GoldEarned         int    `json:"goldEarned"`
	Item0              int    `json:"item0"`
	Item1              int    `json:"item1"`
	Item2              int    `json:"item2"`
	Item3              int    `json:"item3"`
	Item4              int    `json:"item4"`
	Item5              int    `json:"item5"`
	Item6              int    `json:"item6"`
}

// Items collects the seven item slots in display order.
func (p *MatchParticipant) Items() []int {
	return []int{p.Item0, p.Item1, p.Item2, p.Item3, p.Item4, p.Item5, p.Item6}
}

// DisplayName prefers the riot-id form over the legacy summoner name.
func (p *MatchParticipant) DisplayName() string {
	if p.RiotIDGameName != "" {
		return p.RiotIDGameName + "#" + p.RiotIDTagline
	}
	return p.SummonerName
}
