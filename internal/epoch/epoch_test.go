package epoch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/whackboard/internal/domain"
)

func TestMonthToken(t *testing.T) {
	ts := time.Date(2025, time.November, 14, 9, 30, 0, 0, time.UTC)
	require.Equal(t, "2025-11", MonthToken(ts))

	// Tokens are computed in UTC regardless of the input zone.
	loc := time.FixedZone("UTC+13", 13*3600)
	late := time.Date(2025, time.December, 1, 3, 0, 0, 0, loc)
	require.Equal(t, "2025-11", MonthToken(late))
}

func TestMonthTokenZeroTimeIsNow(t *testing.T) {
	require.Equal(t, MonthToken(time.Now()), MonthToken(time.Time{}))
}

func TestValidToken(t *testing.T) {
	require.True(t, ValidToken("2025-11"))
	require.False(t, ValidToken("2025-13"))
	require.False(t, ValidToken("november"))
	require.False(t, ValidToken(""))
}

func TestMaybeRolloverResetsMonthlyOnly(t *testing.T) {
	p := &domain.Profile{
		UserID:           "alice",
		Score:            300,
		MonthlyScore:     120,
		FragCount:        30,
		MonthlyFragCount: 12,
		Rank:             "Corporal",
		Level:            3,
		CurrentMonth:     "2025-11",
	}

	rolled := MaybeRollover(p, "2025-12")
	require.True(t, rolled)
	require.Equal(t, int64(0), p.MonthlyScore)
	require.Equal(t, int64(0), p.MonthlyFragCount)
	require.Equal(t, "2025-12", p.CurrentMonth)

	// All-time fields and derived fields are untouched.
	require.Equal(t, int64(300), p.Score)
	require.Equal(t, int64(30), p.FragCount)
	require.Equal(t, "Corporal", p.Rank)
	require.Equal(t, 3, p.Level)
}

func TestMaybeRolloverSameMonthNoOp(t *testing.T) {
	p := &domain.Profile{MonthlyScore: 50, MonthlyFragCount: 5, CurrentMonth: "2025-11"}

	rolled := MaybeRollover(p, "2025-11")
	require.False(t, rolled)
	require.Equal(t, int64(50), p.MonthlyScore)
	require.Equal(t, int64(5), p.MonthlyFragCount)
}

func TestMaybeRolloverMultiMonthGapSingleStep(t *testing.T) {
	p := &domain.Profile{MonthlyScore: 80, MonthlyFragCount: 8, CurrentMonth: "2025-03"}

	rolled := MaybeRollover(p, "2025-11")
	require.True(t, rolled)
	require.Equal(t, "2025-11", p.CurrentMonth)
	require.Equal(t, int64(0), p.MonthlyScore)
	require.Equal(t, int64(0), p.MonthlyFragCount)
}

func TestNextBoundary(t *testing.T) {
	next, err := NextBoundary("2025-12")
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), next)

	_, err = NextBoundary("bogus")
	require.Error(t, err)
}
