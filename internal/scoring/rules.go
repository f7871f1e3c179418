// Package scoring maps raw scoring events to point deltas and derives the
// rank label and level tier from a cumulative score.
package scoring

import (
	"fmt"
	"sort"

	"github.com/whackboard/internal/domain"
)

// RankBand is one row of the rank threshold table. A score belongs to the
// band with the highest MinScore <= score (boundaries are inclusive of the
// higher band).
type RankBand struct {
	MinScore int64
	Label    string
}

// Rules is the configured scoring table: a fixed point value per event kind,
// plus the rank and level threshold tables. Rules are immutable after
// construction and safe for concurrent use.
type Rules struct {
	points map[string]int64
	ranks  []RankBand
	levels []int64
}

// NewRules builds a Rules set. The rank table must be non-empty with a band
// at score 0; both threshold tables must be strictly ascending.
func NewRules(points map[string]int64, ranks []RankBand, levels []int64) (*Rules, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("scoring rules: no event kinds configured")
	}
	for kind, pts := range points {
		if pts < 0 {
			return nil, fmt.Errorf("scoring rules: negative points for event kind %q", kind)
		}
	}
	if len(ranks) == 0 {
		return nil, fmt.Errorf("scoring rules: empty rank table")
	}
	sorted := make([]RankBand, len(ranks))
	copy(sorted, ranks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinScore < sorted[j].MinScore })
	if sorted[0].MinScore != 0 {
		return nil, fmt.Errorf("scoring rules: rank table must start at score 0, got %d", sorted[0].MinScore)
	}
	for i := 1; i < len(sorted); i++ {
		if sorted[i].MinScore == sorted[i-1].MinScore {
			return nil, fmt.Errorf("scoring rules: duplicate rank threshold %d", sorted[i].MinScore)
		}
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("scoring rules: empty level curve")
	}
	lv := make([]int64, len(levels))
	copy(lv, levels)
	for i := 1; i < len(lv); i++ {
		if lv[i] <= lv[i-1] {
			return nil, fmt.Errorf("scoring rules: level curve not ascending at index %d", i)
		}
	}
	pts := make(map[string]int64, len(points))
	for k, v := range points {
		pts[k] = v
	}
	return &Rules{points: pts, ranks: sorted, levels: lv}, nil
}

// Evaluate turns a scoring event into its point delta. An event kind absent
// from the configured table is rejected with ErrUnknownEventKind; the caller
// drops the event without mutation.
func (r *Rules) Evaluate(event domain.ScoreEvent) (domain.ScoreDelta, error) {
	pts, ok := r.points[event.EventKind]
	if !ok {
		return domain.ScoreDelta{}, fmt.Errorf("%w: %q", domain.ErrUnknownEventKind, event.EventKind)
	}
	return domain.ScoreDelta{Points: pts, FragIncrement: 1}, nil
}

// DeriveRank returns the rank label for a cumulative score.
func (r *Rules) DeriveRank(score int64) string {
	// Highest band whose threshold is <= score.
	idx := sort.Search(len(r.ranks), func(i int) bool { return r.ranks[i].MinScore > score })
	return r.ranks[idx-1].Label
}

// DeriveLevel returns the level tier for a cumulative score: the number of
// level thresholds at or below it.
func (r *Rules) DeriveLevel(score int64) int {
	return sort.Search(len(r.levels), func(i int) bool { return r.levels[i] > score })
}

// Kinds returns the configured event kinds.
func (r *Rules) Kinds() []string {
	kinds := make([]string, 0, len(r.points))
	for k := range r.points {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
