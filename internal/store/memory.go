package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/whackboard/internal/domain"
	"github.com/whackboard/internal/leaderboard"
)

// Memory is an in-process ProfileStore for development and tests. It honors
// the same per-user serialization contract as the Postgres store.
type Memory struct {
	mu       sync.RWMutex
	profiles map[string]*domain.Profile
	locks    *keyedMutex
}

// NewMemory creates an empty in-memory profile store.
func NewMemory() *Memory {
	return &Memory{
		profiles: make(map[string]*domain.Profile),
		locks:    newKeyedMutex(),
	}
}

// Close releases nothing; it exists to satisfy ProfileStore.
func (s *Memory) Close() {}

func (s *Memory) snapshot(userID string) (domain.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return domain.Profile{}, false
	}
	return *p, true
}

// GetOrCreate returns the profile for userID, creating a zeroed one if absent.
func (s *Memory) GetOrCreate(ctx context.Context, userID, username string) (*domain.Profile, error) {
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}

	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	if p, ok := s.snapshot(userID); ok {
		return &p, nil
	}

	now := time.Now()
	p := domain.Profile{
		UserID:    userID,
		Username:  username,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.profiles[userID] = &p
	s.mu.Unlock()

	out := p
	return &out, nil
}

// Get returns the profile for userID.
func (s *Memory) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}
	p, ok := s.snapshot(userID)
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return &p, nil
}

// ApplyUpdate atomically applies mutate to the profile for userID.
func (s *Memory) ApplyUpdate(ctx context.Context, userID, username string, mutate func(*domain.Profile) error) (*domain.Profile, error) {
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}

	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	now := time.Now()
	p, ok := s.snapshot(userID)
	if !ok {
		p = domain.Profile{
			UserID:    userID,
			Username:  username,
			CreatedAt: now,
		}
	}
	if username != "" {
		p.Username = username
	}

	// Mutate a copy; the stored profile is untouched until commit, so an
	// error from mutate leaves no partial update behind.
	if err := mutate(&p); err != nil {
		return nil, err
	}
	p.UpdatedAt = now

	stored := p
	s.mu.Lock()
	s.profiles[userID] = &stored
	s.mu.Unlock()

	out := p
	return &out, nil
}

// ListTop returns the top n profiles for the scope. Monthly reads normalize
// profiles with a lagging current_month to zero before ranking.
func (s *Memory) ListTop(ctx context.Context, scope domain.LeaderboardScope, monthToken string, n int) ([]domain.Profile, error) {
	all, _ := s.ListAll(ctx)
	if scope == domain.ScopeMonthly {
		for i := range all {
			if all[i].CurrentMonth != monthToken {
				all[i].MonthlyScore = 0
				all[i].MonthlyFragCount = 0
				all[i].CurrentMonth = monthToken
			}
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return leaderboard.Compare(&all[i], &all[j], scope) < 0
	})
	if n > 0 && n < len(all) {
		all = all[:n]
	}
	return all, nil
}

// ListStale returns user ids whose current_month lags monthToken.
func (s *Memory) ListStale(ctx context.Context, monthToken string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, p := range s.profiles {
		if p.CurrentMonth != monthToken && (p.MonthlyScore > 0 || p.MonthlyFragCount > 0) {
			ids = append(ids, id)
			if limit > 0 && len(ids) >= limit {
				break
			}
		}
	}
	return ids, nil
}

// ListAll returns every profile.
func (s *Memory) ListAll(ctx context.Context) ([]domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]domain.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		all = append(all, *p)
	}
	return all, nil
}

// Count returns the total number of profiles.
func (s *Memory) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.profiles)), nil
}

// RecordEvent is a no-op; the memory store keeps no audit log.
func (s *Memory) RecordEvent(ctx context.Context, event domain.ScoreEvent, delta domain.ScoreDelta) error {
	return nil
}
