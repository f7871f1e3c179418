package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/whackboard/internal/domain"
)

func TestMemoryGetOrCreate(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	p, err := s.GetOrCreate(ctx, "alice", "Alice")
	require.NoError(t, err)
	require.Equal(t, "alice", p.UserID)
	require.Equal(t, "Alice", p.Username)
	require.Zero(t, p.Score)
	require.Zero(t, p.FragCount)

	// Second call returns the existing record.
	again, err := s.GetOrCreate(ctx, "alice", "SomeoneElse")
	require.NoError(t, err)
	require.Equal(t, "Alice", again.Username)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestMemoryRejectsEmptyUserID(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_, err := s.GetOrCreate(ctx, "", "x")
	require.ErrorIs(t, err, domain.ErrInvalidUserID)

	_, err = s.Get(ctx, "")
	require.ErrorIs(t, err, domain.ErrInvalidUserID)

	_, err = s.ApplyUpdate(ctx, "", "x", func(p *domain.Profile) error { return nil })
	require.ErrorIs(t, err, domain.ErrInvalidUserID)
}

func TestMemoryGetMissing(t *testing.T) {
	s := NewMemory()

	_, err := s.Get(context.Background(), "nobody")
	require.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestMemoryApplyUpdateCreatesLazily(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	p, err := s.ApplyUpdate(ctx, "bob", "Bob", func(p *domain.Profile) error {
		p.Score += 10
		p.FragCount++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, int64(10), p.Score)
	require.Equal(t, int64(1), p.FragCount)
	require.Equal(t, "Bob", p.Username)
}

func TestMemoryApplyUpdateErrorLeavesNoTrace(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	boom := domain.ErrUnknownEventKind
	_, err := s.ApplyUpdate(ctx, "carol", "Carol", func(p *domain.Profile) error {
		p.Score = 999
		return boom
	})
	require.ErrorIs(t, err, boom)

	// The failed mutation never became visible, not even the creation.
	_, err = s.Get(ctx, "carol")
	require.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestMemoryApplyUpdateErrorPreservesExisting(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_, err := s.ApplyUpdate(ctx, "dave", "Dave", func(p *domain.Profile) error {
		p.Score = 100
		return nil
	})
	require.NoError(t, err)

	_, err = s.ApplyUpdate(ctx, "dave", "", func(p *domain.Profile) error {
		p.Score = 0
		return domain.ErrUnknownEventKind
	})
	require.Error(t, err)

	p, err := s.Get(ctx, "dave")
	require.NoError(t, err)
	require.Equal(t, int64(100), p.Score)
}

func TestMemoryConcurrentApplyUpdateNoLostUpdates(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	const goroutines = 50
	const perGoroutine = 20

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				_, err := s.ApplyUpdate(ctx, "contended", "", func(p *domain.Profile) error {
					p.Score += 10
					p.FragCount++
					return nil
				})
				require.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	p, err := s.Get(ctx, "contended")
	require.NoError(t, err)
	require.Equal(t, int64(goroutines*perGoroutine*10), p.Score, "sum of deltas must equal final score")
	require.Equal(t, int64(goroutines*perGoroutine), p.FragCount)
}

func TestMemoryConcurrentDistinctUsers(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	users := []string{"u1", "u2", "u3", "u4", "u5"}
	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_, err := s.ApplyUpdate(ctx, userID, "", func(p *domain.Profile) error {
					p.Score++
					return nil
				})
				require.NoError(t, err)
			}
		}(u)
	}
	wg.Wait()

	for _, u := range users {
		p, err := s.Get(ctx, u)
		require.NoError(t, err)
		require.Equal(t, int64(100), p.Score)
	}
}

func TestMemoryListTopScoping(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	seed := func(id string, score, monthly int64, month string) {
		_, err := s.ApplyUpdate(ctx, id, id, func(p *domain.Profile) error {
			p.Score = score
			p.MonthlyScore = monthly
			p.CurrentMonth = month
			return nil
		})
		require.NoError(t, err)
	}

	seed("fresh", 100, 80, "2025-12")
	seed("dormant", 500, 400, "2025-10")

	// All-time ranking ignores months.
	top, err := s.ListTop(ctx, domain.ScopeAllTime, "2025-12", 10)
	require.NoError(t, err)
	require.Equal(t, "dormant", top[0].UserID)

	// Monthly ranking reads the dormant profile's stale counters as zero.
	top, err = s.ListTop(ctx, domain.ScopeMonthly, "2025-12", 10)
	require.NoError(t, err)
	require.Equal(t, "fresh", top[0].UserID)
	require.Equal(t, int64(80), top[0].MonthlyScore)
	require.Equal(t, "dormant", top[1].UserID)
	require.Zero(t, top[1].MonthlyScore)
}

func TestMemoryListStale(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_, err := s.ApplyUpdate(ctx, "old", "", func(p *domain.Profile) error {
		p.MonthlyScore = 50
		p.CurrentMonth = "2025-01"
		return nil
	})
	require.NoError(t, err)
	_, err = s.ApplyUpdate(ctx, "current", "", func(p *domain.Profile) error {
		p.MonthlyScore = 50
		p.CurrentMonth = "2025-12"
		return nil
	})
	require.NoError(t, err)

	stale, err := s.ListStale(ctx, "2025-12", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"old"}, stale)
}

func TestMemoryListStaleZeroPointFrags(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	// Zero-point event kinds leave monthly_score at 0 while still counting
	// frags; the sweep must not skip such a profile.
	_, err := s.ApplyUpdate(ctx, "freebie", "", func(p *domain.Profile) error {
		p.MonthlyFragCount = 3
		p.CurrentMonth = "2025-01"
		return nil
	})
	require.NoError(t, err)

	stale, err := s.ListStale(ctx, "2025-12", 10)
	require.NoError(t, err)
	require.Equal(t, []string{"freebie"}, stale)
}
