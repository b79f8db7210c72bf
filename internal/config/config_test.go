package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("CONTINUATION_SECRET", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_PATH", "")
	t.Setenv("AGGREGATE_REFRESH_SECONDS", "")
	t.Setenv("SETTINGS_CACHE_TTL_SECONDS", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "./data/reviews.db", cfg.DatabasePath)
	assert.Equal(t, 900, cfg.AggregateRefreshSeconds)
	assert.Equal(t, 300, cfg.SettingsCacheTTLSeconds)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DISCORD_GUILD_ID", "g1")
	t.Setenv("AGGREGATE_REFRESH_SECONDS", "0")
	t.Setenv("HTTP_ADDR", "127.0.0.1:8080")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "g1", cfg.DiscordGuildID)
	assert.Equal(t, 0, cfg.AggregateRefreshSeconds)
	assert.Equal(t, "127.0.0.1:8080", cfg.HTTPAddr)
	assert.False(t, cfg.HTTPAllowPublic)
}

func TestLoadRequired(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "")
	t.Setenv("CONTINUATION_SECRET", "secret")
	_, err := Load()
	assert.ErrorContains(t, err, "DISCORD_BOT_TOKEN")

	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("CONTINUATION_SECRET", "")
	_, err = Load()
	assert.ErrorContains(t, err, "CONTINUATION_SECRET")
}

func TestLoadInvalidInterval(t *testing.T) {
	setRequired(t)
	t.Setenv("SETTINGS_CACHE_TTL_SECONDS", "soon")
	_, err := Load()
	assert.ErrorContains(t, err, "SETTINGS_CACHE_TTL_SECONDS")

	t.Setenv("SETTINGS_CACHE_TTL_SECONDS", "-5")
	_, err = Load()
	assert.ErrorContains(t, err, "SETTINGS_CACHE_TTL_SECONDS")
}

func TestLoadPublicOpsAddr(t *testing.T) {
	setRequired(t)
	t.Setenv("HTTP_ADDR", ":8080")
	t.Setenv("HTTP_ALLOW_PUBLIC", "")
	_, err := Load()
	assert.ErrorContains(t, err, "HTTP_ALLOW_PUBLIC")

	t.Setenv("HTTP_ALLOW_PUBLIC", "true")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.True(t, cfg.HTTPAllowPublic)
}

func TestIsLoopback(t *testing.T) {
	for _, addr := range []string{"127.0.0.1:8080", "localhost:9000", "[::1]:8080", "127.0.0.2:80"} {
		assert.True(t, IsLoopback(addr), addr)
	}
	for _, addr := range []string{":8080", "0.0.0.0:8080", "10.0.0.5:8080", "[::]:8080", "example.com:80", "127.0.0.1"} {
		assert.False(t, IsLoopback(addr), addr)
	}
}
