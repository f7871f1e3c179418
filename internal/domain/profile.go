package domain

import "time"

// LeaderboardScope selects which pair of counters a ranked view is built from.
type LeaderboardScope string

const (
	ScopeAllTime LeaderboardScope = "all_time"
	ScopeMonthly LeaderboardScope = "monthly"
)

// ParseScope normalizes a scope string, defaulting to the all-time view.
func ParseScope(s string) LeaderboardScope {
	if LeaderboardScope(s) == ScopeMonthly {
		return ScopeMonthly
	}
	return ScopeAllTime
}

// Profile is the per-user gamification record. Monthly counters belong to
// CurrentMonth and are zeroed when the profile rolls into a new month;
// all-time counters are never reset.
type Profile struct {
	UserID           string    `json:"user_id"`
	Username         string    `json:"username"`
	Score            int64     `json:"score"`
	MonthlyScore     int64     `json:"monthly_score"`
	FragCount        int64     `json:"frag_count"`
	MonthlyFragCount int64     `json:"monthly_frag_count"`
	Rank             string    `json:"rank"`
	Level            int       `json:"level"`
	CurrentMonth     string    `json:"current_month"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ScoreField returns the score counter for the given scope.
func (p *Profile) ScoreField(scope LeaderboardScope) int64 {
	if scope == ScopeMonthly {
		return p.MonthlyScore
	}
	return p.Score
}

// FragField returns the frag counter for the given scope.
func (p *Profile) FragField(scope LeaderboardScope) int64 {
	if scope == ScopeMonthly {
		return p.MonthlyFragCount
	}
	return p.FragCount
}

// ScoreEvent is one discrete scoring action ("whack") emitted by an external
// moderation source. OccurredAt determines which month the event counts
// toward; a zero timestamp means "now".
type ScoreEvent struct {
	EventID    string    `json:"event_id,omitempty"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	EventKind  string    `json:"event_kind"`
	OccurredAt time.Time `json:"occurred_at"`
}

// BatchScoreEvents wraps multiple scoring events for batch ingestion.
type BatchScoreEvents struct {
	Events []ScoreEvent `json:"events"`
}

// ScoreDelta is the evaluated effect of a single scoring event.
type ScoreDelta struct {
	Points        int64 `json:"points"`
	FragIncrement int64 `json:"frag_increment"`
}

// RankedEntry is one row of a leaderboard view. Positions start at 1 and are
// dense: tied profiles receive consecutive positions in tie-break order.
type RankedEntry struct {
	Position int `json:"position"`
	Profile
}

// PlayerPosition reports where a single player sits in a scoped leaderboard.
type PlayerPosition struct {
	UserID   string           `json:"user_id"`
	Scope    LeaderboardScope `json:"scope"`
	Position int64            `json:"position"`
	Score    int64            `json:"score"`
}

// LedgerStats contains aggregate statistics about the ledger.
type LedgerStats struct {
	TotalPlayers int64 `json:"total_players"`
	TopScore     int64 `json:"top_score,omitempty"`
}
