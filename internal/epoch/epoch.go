// Package epoch owns the monthly boundary: month tokens and the rollover of
// period-scoped counters.
package epoch

import (
	"fmt"
	"time"

	"github.com/whackboard/internal/domain"
)

// TokenLayout is the wire format of a month token.
const TokenLayout = "2006-01"

// MonthToken returns the month token ("YYYY-MM", UTC) for a point in time.
// A zero time maps to the current wall-clock month.
func MonthToken(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(TokenLayout)
}

// ValidToken reports whether s is a well-formed month token.
func ValidToken(s string) bool {
	_, err := time.Parse(TokenLayout, s)
	return err == nil
}

// MaybeRollover resets the profile's monthly counters if it belongs to a
// different month than token, leaving all-time counters, rank and level
// untouched. A profile dormant for several months rolls forward in one step.
// Returns true if a rollover occurred.
//
// Callers must invoke this before applying the delta of the current event, so
// the event that crosses the boundary counts toward the new month.
func MaybeRollover(p *domain.Profile, token string) bool {
	if p.CurrentMonth == token {
		return false
	}
	p.MonthlyScore = 0
	p.MonthlyFragCount = 0
	p.CurrentMonth = token
	return true
}

// NextBoundary returns the instant the given month token's epoch ends.
func NextBoundary(token string) (time.Time, error) {
	t, err := time.Parse(TokenLayout, token)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing month token: %w", err)
	}
	return t.AddDate(0, 1, 0), nil
}
