package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
redis:
  addr: localhost:6379
snapshots:
  backend: redis
game:
  total_rounds: 5
logging:
  format: console
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, SnapshotBackendRedis, cfg.Snapshots.Backend)
	assert.Equal(t, 5, cfg.Game.TotalRounds)
	assert.Equal(t, 10, cfg.Game.MaxPlayers)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, ContentSourceEmbedded, cfg.Content.Source)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9000"
game:
  total_rounds: 5
`)
	t.Setenv("TOD_SERVER_PORT", "9100")
	t.Setenv("TOD_GAME_TOTAL_ROUNDS", "3")
	t.Setenv("TOD_SNAPSHOTS_BACKEND", "sqlite")
	t.Setenv("TOD_SQLITE_PATH", "/tmp/tod.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, 3, cfg.Game.TotalRounds)
	assert.Equal(t, SnapshotBackendSQLite, cfg.Snapshots.Backend)
	assert.Equal(t, "/tmp/tod.db", cfg.SQLite.Path)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "game: [oops"))
	require.Error(t, err)
}

func TestValidateReportsEveryViolation(t *testing.T) {
	cfg := Default()
	cfg.Content.Source = ContentSourcePostgres
	cfg.Snapshots.Backend = SnapshotBackendRedis
	cfg.Game.TotalRounds = 0
	cfg.Game.MaxPlayers = 1
	cfg.Logging.Level = "loud"
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"postgres.url",
		"redis.addr",
		"game.total_rounds",
		"game.max_players",
		"logging.level",
		"logging.format",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateUnknownBackends(t *testing.T) {
	cfg := Default()
	cfg.Content.Source = "s3"
	cfg.Snapshots.Backend = "etcd"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `content.source must be one of [embedded, postgres], got "s3"`)
	assert.Contains(t, err.Error(), `snapshots.backend must be one of [memory, redis, sqlite], got "etcd"`)
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestTTLDuration(t *testing.T) {
	assert.Equal(t, 30*time.Second, TTLDuration("30s", time.Minute))
	assert.Equal(t, time.Minute, TTLDuration("", time.Minute))
	assert.Equal(t, time.Minute, TTLDuration("soon", time.Minute))
}
