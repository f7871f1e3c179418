// Package cache mirrors profile scores into Redis sorted sets for cheap
// position lookups. Postgres stays the source of truth; the mirror is
// best-effort and rebuilt by the background worker.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/whackboard/internal/config"
	"github.com/whackboard/internal/domain"
)

// Monthly sorted sets expire two full epochs after their last write, so old
// months age out without a cleanup job.
const monthlyTTL = 62 * 24 * time.Hour

// Cache is the Redis leaderboard mirror.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// New connects to Redis and returns a leaderboard cache
func New(cfg *config.RedisConfig, logger *slog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Cache{client: client, logger: logger}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

func allTimeKey() string {
	return "whackboard:alltime"
}

func monthlyKey(token string) string {
	return fmt.Sprintf("whackboard:monthly:%s", token)
}

func playerKey(userID string) string {
	return fmt.Sprintf("whackboard:player:%s", userID)
}

// RecordProfile mirrors a freshly mutated profile into both sorted sets and
// the player info hash.
func (c *Cache) RecordProfile(ctx context.Context, p *domain.Profile) error {
	pipe := c.client.Pipeline()
	pipe.ZAdd(ctx, allTimeKey(), redis.Z{Score: float64(p.Score), Member: p.UserID})
	mk := monthlyKey(p.CurrentMonth)
	pipe.ZAdd(ctx, mk, redis.Z{Score: float64(p.MonthlyScore), Member: p.UserID})
	pipe.Expire(ctx, mk, monthlyTTL)
	pipe.HSet(ctx, playerKey(p.UserID),
		"username", p.Username,
		"rank", p.Rank,
		"level", p.Level,
	)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording profile: %w", err)
	}
	return nil
}

// Position returns a player's 1-indexed position and score in the scoped
// sorted set.
//
// The sorted set ranks by score only, so tied scores may order differently
// than the store's full comparison (frag count, then user id). Callers that
// need the exact ordering read from the store instead; the mirror trades
// that precision for an O(log n) lookup.
func (c *Cache) Position(ctx context.Context, scope domain.LeaderboardScope, monthToken, userID string) (*domain.PlayerPosition, error) {
	key := allTimeKey()
	if scope == domain.ScopeMonthly {
		key = monthlyKey(monthToken)
	}

	pipe := c.client.Pipeline()
	rankCmd := pipe.ZRevRank(ctx, key, userID)
	scoreCmd := pipe.ZScore(ctx, key, userID)
	_, err := pipe.Exec(ctx)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("getting position: %w", err)
	}

	rank, err := rankCmd.Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("getting rank result: %w", err)
	}
	score, err := scoreCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("getting score result: %w", err)
	}

	return &domain.PlayerPosition{
		UserID:   userID,
		Scope:    scope,
		Position: rank + 1, // 0-indexed to 1-indexed
		Score:    int64(score),
	}, nil
}

// Count returns the number of players in the scoped sorted set.
func (c *Cache) Count(ctx context.Context, scope domain.LeaderboardScope, monthToken string) (int64, error) {
	key := allTimeKey()
	if scope == domain.ScopeMonthly {
		key = monthlyKey(monthToken)
	}
	count, err := c.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("getting count: %w", err)
	}
	return count, nil
}

// Rebuild replaces both sorted sets from a full profile snapshot. Used on
// startup recovery and by the periodic worker.
func (c *Cache) Rebuild(ctx context.Context, profiles []domain.Profile, monthToken string) error {
	allTime := make([]redis.Z, 0, len(profiles))
	monthly := make([]redis.Z, 0, len(profiles))
	for i := range profiles {
		p := &profiles[i]
		allTime = append(allTime, redis.Z{Score: float64(p.Score), Member: p.UserID})
		if p.CurrentMonth == monthToken {
			monthly = append(monthly, redis.Z{Score: float64(p.MonthlyScore), Member: p.UserID})
		}
	}

	mk := monthlyKey(monthToken)
	pipe := c.client.Pipeline()
	pipe.Del(ctx, allTimeKey(), mk)
	if len(allTime) > 0 {
		pipe.ZAdd(ctx, allTimeKey(), allTime...)
	}
	if len(monthly) > 0 {
		pipe.ZAdd(ctx, mk, monthly...)
		pipe.Expire(ctx, mk, monthlyTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rebuilding cache: %w", err)
	}
	return nil
}
