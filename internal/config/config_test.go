package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SITECAL_CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sitecal.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, 1200, cfg.MaxExpansionCycles)
	assert.Equal(t, 60*24*time.Hour, cfg.FeedHorizon)
	assert.Equal(t, 30, cfg.FeedRateLimit)
	assert.Equal(t, "*/5 * * * *", cfg.MaintenanceCron)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SITECAL_CONFIG_FILE", "")
	t.Setenv("SITECAL_PORT", "9090")
	t.Setenv("SITECAL_LOG_FORMAT", "JSON")
	t.Setenv("SITECAL_MAX_EXPANSION_CYCLES", "-5")
	t.Setenv("SITECAL_FEED_HORIZON_DAYS", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 1200, cfg.MaxExpansionCycles, "non-positive falls back to default")
	assert.Equal(t, 7*24*time.Hour, cfg.FeedHorizon)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sitecal.yaml")
	content := "port: \"7000\"\ndb_path: /var/lib/sitecal.db\nfeed_rate_limit: 5\nlog_level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("SITECAL_CONFIG_FILE", path)
	t.Setenv("SITECAL_FEED_RATE_LIMIT", "12")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "/var/lib/sitecal.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 12, cfg.FeedRateLimit, "environment wins over the file")
}

func TestLoadMissingConfigFileIgnored(t *testing.T) {
	t.Setenv("SITECAL_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
}

func TestLoadBadTimezone(t *testing.T) {
	t.Setenv("SITECAL_CONFIG_FILE", "")
	t.Setenv("SITECAL_TIMEZONE", "Mars/Olympus_Mons")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadBadMaintenanceCron(t *testing.T) {
	t.Setenv("SITECAL_CONFIG_FILE", "")
	t.Setenv("SITECAL_MAINTENANCE_CRON", "every tuesday")

	_, err := Load()
	assert.Error(t, err)
}
