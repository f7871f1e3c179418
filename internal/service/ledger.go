// Package service wires the scoring pipeline: rule evaluation, epoch
// rollover, atomic profile mutation, cache mirroring and live broadcast.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/whackboard/internal/cache"
	"github.com/whackboard/internal/config"
	"github.com/whackboard/internal/domain"
	"github.com/whackboard/internal/epoch"
	"github.com/whackboard/internal/leaderboard"
	"github.com/whackboard/internal/scoring"
	"github.com/whackboard/internal/store"
	"github.com/whackboard/internal/websocket"
)

// How many entries go out in a live leaderboard push.
const broadcastTopN = 10

// Ledger provides the business logic of the scoring ledger.
type Ledger struct {
	store  store.ProfileStore
	rules  *scoring.Rules
	cache  *cache.Cache
	hub    *websocket.Hub
	config *config.LeaderboardConfig
	logger *slog.Logger
}

// NewLedger creates a new ledger service. cache may be nil when the Redis
// mirror is disabled.
func NewLedger(
	profiles store.ProfileStore,
	rules *scoring.Rules,
	scoreCache *cache.Cache,
	cfg *config.LeaderboardConfig,
	logger *slog.Logger,
) *Ledger {
	return &Ledger{
		store:  profiles,
		rules:  rules,
		cache:  scoreCache,
		config: cfg,
		logger: logger,
	}
}

// SetHub attaches the websocket hub used for live pushes.
func (l *Ledger) SetHub(hub *websocket.Hub) {
	l.hub = hub
}

// RecordEvent runs one scoring event through the pipeline and returns the
// post-mutation profile.
//
// Rejections (ErrInvalidUserID, ErrUnknownEventKind) happen before any store
// access and leave no trace; a store failure surfaces as ErrStoreUnavailable
// with no partial mutation visible. Events for the same user apply in
// invocation order.
func (l *Ledger) RecordEvent(ctx context.Context, event domain.ScoreEvent) (*domain.Profile, error) {
	if event.UserID == "" {
		return nil, domain.ErrInvalidUserID
	}

	delta, err := l.rules.Evaluate(event)
	if err != nil {
		return nil, err
	}

	// The event's own timestamp decides which month it counts toward, which
	// keeps the boundary behavior testable without touching the wall clock.
	token := epoch.MonthToken(event.OccurredAt)

	profile, err := l.store.ApplyUpdate(ctx, event.UserID, event.Username, func(p *domain.Profile) error {
		// Rollover runs before the delta so the event that crosses the
		// boundary counts toward the new month.
		epoch.MaybeRollover(p, token)
		p.Score += delta.Points
		p.MonthlyScore += delta.Points
		p.FragCount += delta.FragIncrement
		p.MonthlyFragCount += delta.FragIncrement
		p.Rank = l.rules.DeriveRank(p.Score)
		p.Level = l.rules.DeriveLevel(p.Score)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Audit log and cache mirror are best-effort; the mutation already
	// committed.
	if err := l.store.RecordEvent(ctx, event, delta); err != nil {
		l.logger.Warn("failed to record score event", "error", err)
	}
	if l.cache != nil {
		if err := l.cache.RecordProfile(ctx, profile); err != nil {
			l.logger.Warn("failed to mirror profile to cache", "error", err)
		}
	}

	l.notify(ctx, profile)
	return profile, nil
}

// RecordEventBatch runs multiple events through the pipeline. Rejected or
// failed events are logged and skipped; the rest of the batch proceeds.
func (l *Ledger) RecordEventBatch(ctx context.Context, batch domain.BatchScoreEvents) error {
	for _, event := range batch.Events {
		if _, err := l.RecordEvent(ctx, event); err != nil {
			if domain.IsRejection(err) {
				l.logger.Warn("dropping rejected event",
					"user_id", event.UserID,
					"event_kind", event.EventKind,
					"error", err,
				)
				continue
			}
			l.logger.Error("failed to record event in batch",
				"user_id", event.UserID,
				"event_kind", event.EventKind,
				"error", err,
			)
		}
	}
	return nil
}

// Leaderboard returns the top n ranked entries for a scope.
func (l *Ledger) Leaderboard(ctx context.Context, scope domain.LeaderboardScope, n int) ([]domain.RankedEntry, error) {
	if n <= 0 {
		n = l.config.DefaultLimit
	}
	if n > l.config.MaxLimit {
		n = l.config.MaxLimit
	}

	token := epoch.MonthToken(time.Now())
	profiles, err := l.store.ListTop(ctx, scope, token, n)
	if err != nil {
		return nil, err
	}
	return leaderboard.RankView(profiles, scope, n), nil
}

// GetProfile returns a player's profile read-model.
func (l *Ledger) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	p, err := l.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	// A profile created but never scored carries no derived fields yet.
	if p.Rank == "" {
		p.Rank = l.rules.DeriveRank(p.Score)
		p.Level = l.rules.DeriveLevel(p.Score)
	}
	return p, nil
}

// GetPosition returns a player's leaderboard position for a scope, served
// from the Redis mirror when available.
func (l *Ledger) GetPosition(ctx context.Context, scope domain.LeaderboardScope, userID string) (*domain.PlayerPosition, error) {
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}
	token := epoch.MonthToken(time.Now())

	if l.cache != nil {
		pos, err := l.cache.Position(ctx, scope, token, userID)
		if err == nil {
			return pos, nil
		}
		if err != domain.ErrProfileNotFound {
			l.logger.Warn("cache position lookup failed, falling back to store", "error", err)
		}
	}

	profiles, err := l.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	// ListAll returns raw rows; monthly ranking must treat profiles whose
	// current_month lags the token as zero, same as ListTop.
	if scope == domain.ScopeMonthly {
		for i := range profiles {
			epoch.MaybeRollover(&profiles[i], token)
		}
	}
	for _, entry := range leaderboard.RankView(profiles, scope, 0) {
		if entry.UserID == userID {
			return &domain.PlayerPosition{
				UserID:   userID,
				Scope:    scope,
				Position: int64(entry.Position),
				Score:    entry.ScoreField(scope),
			}, nil
		}
	}
	return nil, domain.ErrProfileNotFound
}

// Stats returns aggregate ledger statistics.
func (l *Ledger) Stats(ctx context.Context) (*domain.LedgerStats, error) {
	count, err := l.store.Count(ctx)
	if err != nil {
		return nil, err
	}

	stats := &domain.LedgerStats{TotalPlayers: count}

	token := epoch.MonthToken(time.Now())
	top, err := l.store.ListTop(ctx, domain.ScopeAllTime, token, 1)
	if err == nil && len(top) > 0 {
		stats.TopScore = top[0].Score
	}
	return stats, nil
}

// notify pushes the mutated profile and fresh leaderboard snapshots to
// websocket subscribers.
func (l *Ledger) notify(ctx context.Context, profile *domain.Profile) {
	if l.hub == nil {
		return
	}

	l.hub.BroadcastProfileUpdate(profile)

	token := epoch.MonthToken(time.Now())
	for _, scope := range []domain.LeaderboardScope{domain.ScopeAllTime, domain.ScopeMonthly} {
		if l.hub.GetSubscriberCount(string(scope)) == 0 {
			continue
		}
		profiles, err := l.store.ListTop(ctx, scope, token, broadcastTopN)
		if err != nil {
			l.logger.Warn("failed to load leaderboard for broadcast", "scope", scope, "error", err)
			continue
		}
		count, err := l.store.Count(ctx)
		if err != nil {
			count = int64(len(profiles))
		}
		entries := leaderboard.RankView(profiles, scope, broadcastTopN)
		month := ""
		if scope == domain.ScopeMonthly {
			month = token
		}
		l.hub.BroadcastLeaderboardUpdate(scope, month, entries, count)
	}
}
