// Package store provides durable keyed persistence of player profiles. All
// mutation goes through ApplyUpdate, which serializes the read-compute-write
// cycle per user so concurrent events on the same user cannot interleave.
package store

import (
	"context"

	"github.com/whackboard/internal/domain"
)

// ProfileStore is the persistence boundary of the scoring pipeline.
//
// ApplyUpdate holds a per-user critical section for the duration of the
// mutation: at most one in-flight mutation per user id, while updates to
// different users proceed independently. The mutation is atomic with respect
// to the profile's fields; on any error no partial update is visible.
type ProfileStore interface {
	// GetOrCreate returns the profile for userID, creating a zeroed one on
	// first sight. Never fails for a well-formed (non-empty) user id short of
	// a store outage.
	GetOrCreate(ctx context.Context, userID, username string) (*domain.Profile, error)

	// Get returns the profile for userID, or ErrProfileNotFound.
	Get(ctx context.Context, userID string) (*domain.Profile, error)

	// ApplyUpdate atomically applies mutate to the profile for userID,
	// creating it first if absent, and returns the post-mutation profile.
	// An error returned by mutate aborts the update and is passed through.
	ApplyUpdate(ctx context.Context, userID, username string, mutate func(*domain.Profile) error) (*domain.Profile, error)

	// ListTop returns at most n profiles ordered by the scoped score
	// descending, frag count descending, user id ascending. For the monthly
	// scope, profiles whose current_month lags monthToken are read as zero.
	ListTop(ctx context.Context, scope domain.LeaderboardScope, monthToken string, n int) ([]domain.Profile, error)

	// ListStale returns up to limit user ids whose current_month is behind
	// monthToken, for the background rollover sweep.
	ListStale(ctx context.Context, monthToken string, limit int) ([]string, error)

	// ListAll returns every profile; used for cache rebuilds.
	ListAll(ctx context.Context) ([]domain.Profile, error)

	// Count returns the total number of profiles.
	Count(ctx context.Context) (int64, error)

	// RecordEvent appends a scoring event with its evaluated delta to the
	// audit log. Best-effort from the pipeline's point of view.
	RecordEvent(ctx context.Context, event domain.ScoreEvent, delta domain.ScoreDelta) error

	// Close releases the store's resources.
	Close()
}
