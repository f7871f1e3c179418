package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, "postgres", cfg.Store.Driver)
	require.Equal(t, 15*time.Minute, cfg.Worker.Interval)
	require.Equal(t, 100, cfg.Leaderboard.DefaultLimit)
	require.Equal(t, 1000, cfg.Leaderboard.MaxLimit)
}

func TestLoadDefaultScoringTables(t *testing.T) {
	path := writeConfig(t, "{}\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, int64(10), cfg.Scoring.EventPoints["whack"])
	require.Equal(t, int64(50), cfg.Scoring.EventPoints["superwhack"])

	require.Equal(t, "Grunt", cfg.Scoring.Ranks[0].Label)
	require.Zero(t, cfg.Scoring.Ranks[0].MinScore)
	last := cfg.Scoring.Ranks[len(cfg.Scoring.Ranks)-1]
	require.Equal(t, "Warlord", last.Label)
	require.Equal(t, int64(10000), last.MinScore)

	require.Len(t, cfg.Scoring.Levels, 20)
	require.Equal(t, int64(50), cfg.Scoring.Levels[0])
	for i := 1; i < len(cfg.Scoring.Levels); i++ {
		require.Greater(t, cfg.Scoring.Levels[i], cfg.Scoring.Levels[i-1])
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("WB_TEST_REDIS_ADDR", "redis.internal:6380")
	path := writeConfig(t, "redis:\n  addr: ${WB_TEST_REDIS_ADDR}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
}

func TestLoadOverridesScoringTable(t *testing.T) {
	path := writeConfig(t, `
scoring:
  event_points:
    boop: 5
  ranks:
    - min_score: 0
      label: Rookie
    - min_score: 50
      label: Veteran
  levels: [10, 30]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"boop": 5}, cfg.Scoring.EventPoints)
	require.Len(t, cfg.Scoring.Ranks, 2)
	require.Equal(t, "Veteran", cfg.Scoring.Ranks[1].Label)
	require.Equal(t, []int64{10, 30}, cfg.Scoring.Levels)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestDefaultConfigEnablesWorkerAndRedis(t *testing.T) {
	cfg := DefaultConfig()
	require.True(t, cfg.Worker.Enabled)
	require.True(t, cfg.Redis.Enabled)
	require.Equal(t, 8080, cfg.Server.Port)
}

func TestPostgresConnectionString(t *testing.T) {
	cfg := PostgresConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "whack",
		Password: "secret",
		Database: "whackboard",
		SSLMode:  "disable",
	}
	require.Contains(t, cfg.ConnectionString(), "host=db.internal")
	require.Contains(t, cfg.ConnectionString(), "port=5433")
	require.Contains(t, cfg.ConnectionString(), "dbname=whackboard")
}

func TestWorkerConfigFromYAML(t *testing.T) {
	path := writeConfig(t, `
worker:
  enabled: true
  batch_size: 250
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.Worker.Enabled)
	require.Equal(t, 15*time.Minute, cfg.Worker.Interval)
	require.Equal(t, 250, cfg.Worker.BatchSize)
}
