// Package leaderboard produces deterministic ranked views of profiles.
package leaderboard

import (
	"sort"
	"strings"

	"github.com/whackboard/internal/domain"
)

// Compare orders two profiles for the given scope: scoped score descending,
// then scoped frag count descending, then user id ascending. The final key
// makes the order total, so repeated views over the same data are identical.
func Compare(a, b *domain.Profile, scope domain.LeaderboardScope) int {
	if as, bs := a.ScoreField(scope), b.ScoreField(scope); as != bs {
		if as > bs {
			return -1
		}
		return 1
	}
	if af, bf := a.FragField(scope), b.FragField(scope); af != bf {
		if af > bf {
			return -1
		}
		return 1
	}
	return strings.Compare(a.UserID, b.UserID)
}

// RankView sorts profiles for the given scope and assigns dense 1-based
// positions: tied entries receive consecutive positions in tie-break order,
// never shared ranks. At most n entries are returned; n <= 0 means all.
func RankView(profiles []domain.Profile, scope domain.LeaderboardScope, n int) []domain.RankedEntry {
	sorted := make([]domain.Profile, len(profiles))
	copy(sorted, profiles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return Compare(&sorted[i], &sorted[j], scope) < 0
	})

	if n > 0 && n < len(sorted) {
		sorted = sorted[:n]
	}

	entries := make([]domain.RankedEntry, len(sorted))
	for i, p := range sorted {
		entries[i] = domain.RankedEntry{Position: i + 1, Profile: p}
	}
	return entries
}
