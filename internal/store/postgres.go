package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/whackboard/internal/config"
	"github.com/whackboard/internal/domain"
)

// Postgres is the durable ProfileStore backed by a pgx connection pool.
type Postgres struct {
	pool   *pgxpool.Pool
	locks  *keyedMutex
	logger *slog.Logger
}

// NewPostgres creates a Postgres-backed profile store
func NewPostgres(cfg *config.PostgresConfig, logger *slog.Logger) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Postgres{
		pool:   pool,
		locks:  newKeyedMutex(),
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (s *Postgres) Close() {
	s.pool.Close()
}

// Pool returns the underlying connection pool
func (s *Postgres) Pool() *pgxpool.Pool {
	return s.pool
}

// unavailable wraps a persistence failure so callers can match it with
// errors.Is(err, domain.ErrStoreUnavailable).
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
}

// RunMigrations executes database migrations
func (s *Postgres) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			user_id VARCHAR(64) PRIMARY KEY,
			username VARCHAR(255) NOT NULL DEFAULT '',
			score BIGINT NOT NULL DEFAULT 0,
			monthly_score BIGINT NOT NULL DEFAULT 0,
			frag_count BIGINT NOT NULL DEFAULT 0,
			monthly_frag_count BIGINT NOT NULL DEFAULT 0,
			rank VARCHAR(64) NOT NULL DEFAULT '',
			level INT NOT NULL DEFAULT 0,
			current_month VARCHAR(7) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS score_events (
			id BIGSERIAL PRIMARY KEY,
			event_id VARCHAR(64),
			user_id VARCHAR(64) NOT NULL,
			event_kind VARCHAR(64) NOT NULL,
			points BIGINT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_score ON profiles(score DESC, frag_count DESC, user_id ASC)`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_month ON profiles(current_month, monthly_score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_score_events_user ON score_events(user_id, occurred_at DESC)`,
	}

	for _, migration := range migrations {
		_, err := s.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	s.logger.Info("database migrations completed")
	return nil
}

const profileColumns = `user_id, username, score, monthly_score, frag_count, monthly_frag_count, rank, level, current_month, created_at, updated_at`

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(
		&p.UserID,
		&p.Username,
		&p.Score,
		&p.MonthlyScore,
		&p.FragCount,
		&p.MonthlyFragCount,
		&p.Rank,
		&p.Level,
		&p.CurrentMonth,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetOrCreate returns the profile for userID, inserting a zeroed row on first
// sight.
func (s *Postgres) GetOrCreate(ctx context.Context, userID, username string) (*domain.Profile, error) {
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}

	query := `
		INSERT INTO profiles (user_id, username, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING ` + profileColumns
	p, err := scanProfile(s.pool.QueryRow(ctx, query, userID, username, time.Now()))
	if err != nil {
		return nil, unavailable("getting or creating profile", err)
	}
	return p, nil
}

// Get returns the profile for userID
func (s *Postgres) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}

	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1`
	p, err := scanProfile(s.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, unavailable("getting profile", err)
	}
	return p, nil
}

// ApplyUpdate atomically applies mutate to the profile for userID. The
// per-user lock plus SELECT FOR UPDATE serialize the read-compute-write cycle
// so concurrent events on the same user never lose an update.
func (s *Postgres) ApplyUpdate(ctx context.Context, userID, username string, mutate func(*domain.Profile) error) (*domain.Profile, error) {
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}

	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, unavailable("beginning update", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1 FOR UPDATE`
	p, err := scanProfile(tx.QueryRow(ctx, query, userID))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, unavailable("reading profile for update", err)
		}
		p = &domain.Profile{
			UserID:    userID,
			Username:  username,
			CreatedAt: now,
		}
	}
	if username != "" {
		p.Username = username
	}

	if err := mutate(p); err != nil {
		return nil, err
	}
	p.UpdatedAt = now

	upsert := `
		INSERT INTO profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO UPDATE SET
			username = $2,
			score = $3,
			monthly_score = $4,
			frag_count = $5,
			monthly_frag_count = $6,
			rank = $7,
			level = $8,
			current_month = $9,
			updated_at = $11
	`
	_, err = tx.Exec(ctx, upsert,
		p.UserID,
		p.Username,
		p.Score,
		p.MonthlyScore,
		p.FragCount,
		p.MonthlyFragCount,
		p.Rank,
		p.Level,
		p.CurrentMonth,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return nil, unavailable("writing profile", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, unavailable("committing update", err)
	}
	return p, nil
}

// ListTop returns the top n profiles by the scoped score. Monthly reads treat
// rows whose current_month lags monthToken as zero, so a dormant profile's
// stale counters never rank.
func (s *Postgres) ListTop(ctx context.Context, scope domain.LeaderboardScope, monthToken string, n int) ([]domain.Profile, error) {
	var query string
	var rows pgx.Rows
	var err error
	if scope == domain.ScopeMonthly {
		query = `
			SELECT ` + profileColumns + `,
				CASE WHEN current_month = $1 THEN monthly_score ELSE 0 END AS scoped_score,
				CASE WHEN current_month = $1 THEN monthly_frag_count ELSE 0 END AS scoped_frags
			FROM profiles
			ORDER BY scoped_score DESC, scoped_frags DESC, user_id ASC
			LIMIT $2
		`
		rows, err = s.pool.Query(ctx, query, monthToken, n)
	} else {
		query = `
			SELECT ` + profileColumns + `, score AS scoped_score, frag_count AS scoped_frags
			FROM profiles
			ORDER BY score DESC, frag_count DESC, user_id ASC
			LIMIT $1
		`
		rows, err = s.pool.Query(ctx, query, n)
	}
	if err != nil {
		return nil, unavailable("listing top profiles", err)
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		var p domain.Profile
		var scopedScore, scopedFrags int64
		err := rows.Scan(
			&p.UserID,
			&p.Username,
			&p.Score,
			&p.MonthlyScore,
			&p.FragCount,
			&p.MonthlyFragCount,
			&p.Rank,
			&p.Level,
			&p.CurrentMonth,
			&p.CreatedAt,
			&p.UpdatedAt,
			&scopedScore,
			&scopedFrags,
		)
		if err != nil {
			return nil, unavailable("scanning profile", err)
		}
		if scope == domain.ScopeMonthly && p.CurrentMonth != monthToken {
			p.MonthlyScore = 0
			p.MonthlyFragCount = 0
			p.CurrentMonth = monthToken
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// ListStale returns user ids whose current_month lags monthToken
func (s *Postgres) ListStale(ctx context.Context, monthToken string, limit int) ([]string, error) {
	query := `
		SELECT user_id FROM profiles
		WHERE current_month <> $1 AND (monthly_score > 0 OR monthly_frag_count > 0)
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, monthToken, limit)
	if err != nil {
		return nil, unavailable("listing stale profiles", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, unavailable("scanning user id", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ListAll returns every profile
func (s *Postgres) ListAll(ctx context.Context) ([]domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, unavailable("listing profiles", err)
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, unavailable("scanning profile", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, nil
}

// Count returns the total number of profiles
func (s *Postgres) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&count)
	if err != nil {
		return 0, unavailable("counting profiles", err)
	}
	return count, nil
}

// RecordEvent appends a scoring event to the audit log
func (s *Postgres) RecordEvent(ctx context.Context, event domain.ScoreEvent, delta domain.ScoreDelta) error {
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	query := `
		INSERT INTO score_events (event_id, user_id, event_kind, points, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.pool.Exec(ctx, query, event.EventID, event.UserID, event.EventKind, delta.Points, occurred)
	if err != nil {
		return unavailable("recording event", err)
	}
	return nil
}
