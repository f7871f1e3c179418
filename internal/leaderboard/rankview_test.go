package leaderboard

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/whackboard/internal/domain"
)

func TestRankViewOrdersByScoreDescending(t *testing.T) {
	profiles := []domain.Profile{
		{UserID: "low", Score: 10},
		{UserID: "high", Score: 300},
		{UserID: "mid", Score: 200},
	}

	entries := RankView(profiles, domain.ScopeAllTime, 0)
	require.Len(t, entries, 3)
	require.Equal(t, "high", entries[0].UserID)
	require.Equal(t, "mid", entries[1].UserID)
	require.Equal(t, "low", entries[2].UserID)
}

func TestRankViewPositionsAreDense(t *testing.T) {
	profiles := []domain.Profile{
		{UserID: "a", Score: 100},
		{UserID: "b", Score: 100},
		{UserID: "c", Score: 100},
		{UserID: "d", Score: 50},
	}

	entries := RankView(profiles, domain.ScopeAllTime, 0)
	for i, e := range entries {
		require.Equal(t, i+1, e.Position, "positions must be dense with no gaps or duplicates")
	}
}

func TestRankViewMonthlyTieBreakByFrags(t *testing.T) {
	// Two profiles tie on monthly score; more monthly frags wins.
	profiles := []domain.Profile{
		{UserID: "three-frags", MonthlyScore: 50, MonthlyFragCount: 3},
		{UserID: "five-frags", MonthlyScore: 50, MonthlyFragCount: 5},
	}

	entries := RankView(profiles, domain.ScopeMonthly, 0)
	require.Equal(t, "five-frags", entries[0].UserID)
	require.Equal(t, 1, entries[0].Position)
	require.Equal(t, "three-frags", entries[1].UserID)
	require.Equal(t, 2, entries[1].Position)
}

func TestRankViewFullTieBreaksByUserID(t *testing.T) {
	profiles := []domain.Profile{
		{UserID: "zed", Score: 50, FragCount: 5},
		{UserID: "amy", Score: 50, FragCount: 5},
	}

	entries := RankView(profiles, domain.ScopeAllTime, 0)
	require.Equal(t, "amy", entries[0].UserID)
	require.Equal(t, "zed", entries[1].UserID)

	// Deterministic: a second view over the same data is identical.
	again := RankView(profiles, domain.ScopeAllTime, 0)
	require.Equal(t, entries, again)
}

func TestRankViewLimit(t *testing.T) {
	profiles := []domain.Profile{
		{UserID: "a", Score: 1},
		{UserID: "b", Score: 2},
		{UserID: "c", Score: 3},
	}

	entries := RankView(profiles, domain.ScopeAllTime, 2)
	require.Len(t, entries, 2)
	require.Equal(t, "c", entries[0].UserID)
	require.Equal(t, "b", entries[1].UserID)
}

func TestRankViewScopeSelectsCounters(t *testing.T) {
	profiles := []domain.Profile{
		{UserID: "monthly-champ", Score: 10, MonthlyScore: 100},
		{UserID: "alltime-champ", Score: 500, MonthlyScore: 5},
	}

	allTime := RankView(profiles, domain.ScopeAllTime, 0)
	require.Equal(t, "alltime-champ", allTime[0].UserID)

	monthly := RankView(profiles, domain.ScopeMonthly, 0)
	require.Equal(t, "monthly-champ", monthly[0].UserID)
}

func TestRankViewDoesNotMutateInput(t *testing.T) {
	profiles := []domain.Profile{
		{UserID: "b", Score: 1},
		{UserID: "a", Score: 2},
	}

	RankView(profiles, domain.ScopeAllTime, 0)
	require.Equal(t, "b", profiles[0].UserID)
}
