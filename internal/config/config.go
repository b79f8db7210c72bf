package config

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the bot
type Config struct {
	// Discord
	DiscordToken string
	// DiscordGuildID registers commands in one guild instead of globally
	DiscordGuildID string

	// Database
	DatabasePath string

	// Background aggregate reconciliation, 0 disables it
	AggregateRefreshSeconds int

	// Guild settings cache lifetime
	SettingsCacheTTLSeconds int

	// ContinuationSecret signs the product choice carried between approval steps
	ContinuationSecret string

	// HTTPAddr enables the read-only ops server when set. The server has no
	// authentication and exposes staff activity, so it must bind to a loopback
	// address unless HTTPAllowPublic is set for a trusted internal network.
	HTTPAddr        string
	HTTPAllowPublic bool

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DiscordToken:       os.Getenv("DISCORD_BOT_TOKEN"),
		DiscordGuildID:     os.Getenv("DISCORD_GUILD_ID"),
		DatabasePath:       getEnvOrDefault("DATABASE_PATH", "./data/reviews.db"),
		ContinuationSecret: os.Getenv("CONTINUATION_SECRET"),
		HTTPAddr:           os.Getenv("HTTP_ADDR"),
		HTTPAllowPublic:    os.Getenv("HTTP_ALLOW_PUBLIC") == "true",
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.AggregateRefreshSeconds, err = getIntOrDefault("AGGREGATE_REFRESH_SECONDS", 900); err != nil {
		return nil, err
	}
	if cfg.SettingsCacheTTLSeconds, err = getIntOrDefault("SETTINGS_CACHE_TTL_SECONDS", 300); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}
	if cfg.ContinuationSecret == "" {
		return nil, fmt.Errorf("CONTINUATION_SECRET is required")
	}
	if cfg.HTTPAddr != "" && !cfg.HTTPAllowPublic && !IsLoopback(cfg.HTTPAddr) {
		return nil, fmt.Errorf("HTTP_ADDR %q is not a loopback address; set HTTP_ALLOW_PUBLIC=true to expose the unauthenticated ops API", cfg.HTTPAddr)
	}

	return cfg, nil
}

// IsLoopback reports whether a listen address only accepts local
// connections. An empty host binds every interface and is not loopback.
func IsLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) (int, error) {
	n, err := strconv.Atoi(getEnvOrDefault(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return n, nil
}
