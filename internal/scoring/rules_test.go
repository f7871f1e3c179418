package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/whackboard/internal/domain"
)

func testRules(t *testing.T) *Rules {
	t.Helper()
	rules, err := NewRules(
		map[string]int64{"whack": 10, "ban": 25, "freebie": 0},
		[]RankBand{
			{MinScore: 0, Label: "Grunt"},
			{MinScore: 100, Label: "Private"},
			{MinScore: 250, Label: "Corporal"},
			{MinScore: 10000, Label: "Warlord"},
		},
		[]int64{50, 150, 300, 500},
	)
	require.NoError(t, err)
	return rules
}

func TestEvaluateKnownKind(t *testing.T) {
	rules := testRules(t)

	delta, err := rules.Evaluate(domain.ScoreEvent{UserID: "u1", EventKind: "whack"})
	require.NoError(t, err)
	require.Equal(t, int64(10), delta.Points)
	require.Equal(t, int64(1), delta.FragIncrement)

	delta, err = rules.Evaluate(domain.ScoreEvent{UserID: "u1", EventKind: "ban"})
	require.NoError(t, err)
	require.Equal(t, int64(25), delta.Points)
}

func TestEvaluateZeroPointKindStillCountsAsFrag(t *testing.T) {
	rules := testRules(t)

	delta, err := rules.Evaluate(domain.ScoreEvent{UserID: "u1", EventKind: "freebie"})
	require.NoError(t, err)
	require.Equal(t, int64(0), delta.Points)
	require.Equal(t, int64(1), delta.FragIncrement)
}

func TestEvaluateUnknownKind(t *testing.T) {
	rules := testRules(t)

	_, err := rules.Evaluate(domain.ScoreEvent{UserID: "u1", EventKind: "unknown_kind"})
	require.ErrorIs(t, err, domain.ErrUnknownEventKind)
}

func TestDeriveRankBoundaries(t *testing.T) {
	rules := testRules(t)

	require.Equal(t, "Grunt", rules.DeriveRank(0))
	require.Equal(t, "Grunt", rules.DeriveRank(99))
	// An exact threshold belongs to the higher band.
	require.Equal(t, "Private", rules.DeriveRank(100))
	require.Equal(t, "Private", rules.DeriveRank(249))
	require.Equal(t, "Corporal", rules.DeriveRank(250))
	require.Equal(t, "Warlord", rules.DeriveRank(10000))
	require.Equal(t, "Warlord", rules.DeriveRank(999999))
}

func TestDeriveLevelBoundaries(t *testing.T) {
	rules := testRules(t)

	require.Equal(t, 0, rules.DeriveLevel(0))
	require.Equal(t, 0, rules.DeriveLevel(49))
	require.Equal(t, 1, rules.DeriveLevel(50))
	require.Equal(t, 2, rules.DeriveLevel(150))
	require.Equal(t, 4, rules.DeriveLevel(500))
	require.Equal(t, 4, rules.DeriveLevel(1_000_000))
}

func TestDerivationIdempotentAndMonotonic(t *testing.T) {
	rules := testRules(t)

	prevLevel := -1
	prevRankIdx := -1
	rankOrder := map[string]int{"Grunt": 0, "Private": 1, "Corporal": 2, "Warlord": 3}

	for score := int64(0); score <= 11000; score += 7 {
		rank := rules.DeriveRank(score)
		level := rules.DeriveLevel(score)

		// Idempotent: same input, same output.
		require.Equal(t, rank, rules.DeriveRank(score))
		require.Equal(t, level, rules.DeriveLevel(score))

		// Monotonic non-decreasing in score.
		require.GreaterOrEqual(t, level, prevLevel, "level regressed at score %d", score)
		require.GreaterOrEqual(t, rankOrder[rank], prevRankIdx, "rank regressed at score %d", score)
		prevLevel = level
		prevRankIdx = rankOrder[rank]
	}
}

func TestNewRulesValidation(t *testing.T) {
	points := map[string]int64{"whack": 10}
	ranks := []RankBand{{MinScore: 0, Label: "Grunt"}}
	levels := []int64{50}

	_, err := NewRules(nil, ranks, levels)
	require.Error(t, err)

	_, err = NewRules(points, nil, levels)
	require.Error(t, err)

	_, err = NewRules(points, []RankBand{{MinScore: 10, Label: "Grunt"}}, levels)
	require.Error(t, err, "rank table must start at 0")

	_, err = NewRules(points, ranks, []int64{100, 100})
	require.Error(t, err, "level curve must be strictly ascending")

	_, err = NewRules(map[string]int64{"whack": -1}, ranks, levels)
	require.Error(t, err, "negative points rejected")
}

func TestKinds(t *testing.T) {
	rules := testRules(t)
	require.Equal(t, []string{"ban", "freebie", "whack"}, rules.Kinds())
}
