package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "test-token")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-token", cfg.DiscordToken)
	assert.Equal(t, "!", cfg.CommandPrefix)
	assert.Equal(t, "data/kitasan.db", cfg.DatabasePath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 168*time.Hour, cfg.SnapshotRetention)
	assert.Equal(t, 3, cfg.RefreshAttempts)
	assert.Equal(t, 2*time.Second, cfg.RefreshBackoff)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "tok")
	t.Setenv("COMMAND_PREFIX", "?")
	t.Setenv("SNAPSHOT_RETENTION", "24h")
	t.Setenv("REFRESH_ATTEMPTS", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "?", cfg.CommandPrefix)
	assert.Equal(t, 24*time.Hour, cfg.SnapshotRetention)
	assert.Equal(t, 5, cfg.RefreshAttempts)
}

func TestLoadMissingToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsZeroAttempts(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "tok")
	t.Setenv("REFRESH_ATTEMPTS", "0")

	_, err := Load()
	assert.Error(t, err)
}
