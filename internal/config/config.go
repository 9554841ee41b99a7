// Package config provides configuration management for the workflow engine.
// It loads configuration from environment variables with sensible defaults and
// validates the result before the application starts.
//
// Environment Variables:
//
// Application settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - TIMER_POLL_INTERVAL: Timer scheduler poll period (default: 15s)
//
// Database configuration:
//   - DATABASE_TYPE: "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./workflow_engine.db)
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_DB, POSTGRES_USER,
//     POSTGRES_PASSWORD, POSTGRES_SSL_MODE: PostgreSQL settings
//
// Redis configuration (optional, used to cache provider app tokens):
//   - REDIS_ADDRESS, REDIS_PASSWORD, REDIS_DB
//
// Provider settings:
//   - TWITCH_CLIENT_ID, TWITCH_CLIENT_SECRET: helix app credentials
//   - TWITCH_WEBHOOK_SECRET: EventSub signing secret
//   - TWITCH_CALLBACK_URL: public EventSub callback endpoint
//   - DISCORD_BOT_TOKEN: bot token for channel messages
//   - DISCORD_BOT_SECRET: shared secret expected on bot event deliveries
//   - FACEIT_API_KEY: server-side data API key
//   - GOOGLE_CLIENT_ID/SECRET, SPOTIFY_CLIENT_ID/SECRET,
//     TWITTER_CLIENT_ID/SECRET: OAuth2 refresh credentials per provider
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the workflow engine.
type Config struct {
	// Application settings
	Port              string
	LogLevel          string
	TimerPollInterval time.Duration

	// Database configuration
	DatabaseType     string
	DatabasePath     string
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	// Redis configuration
	RedisAddress  string
	RedisPassword string
	RedisDB       int

	// Twitch EventSub
	TwitchClientID      string
	TwitchClientSecret  string
	TwitchWebhookSecret string
	TwitchCallbackURL   string

	// Discord
	DiscordBotToken  string
	DiscordBotSecret string

	// Faceit
	FaceitAPIKey string

	// OAuth2 client credentials per provider
	GoogleClientID      string
	GoogleClientSecret  string
	SpotifyClientID     string
	SpotifyClientSecret string
	TwitterClientID     string
	TwitterClientSecret string
}

// Load creates a new Config instance with values loaded from environment
// variables. Call Validate on the result before use.
func Load() *Config {
	return &Config{
		Port:              getEnv("PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		TimerPollInterval: getEnvDuration("TIMER_POLL_INTERVAL", 15*time.Second),

		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./workflow_engine.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", ""),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", ""),
		PostgresUser:     getEnv("POSTGRES_USER", ""),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		TwitchClientID:      getEnv("TWITCH_CLIENT_ID", ""),
		TwitchClientSecret:  getEnv("TWITCH_CLIENT_SECRET", ""),
		TwitchWebhookSecret: getEnv("TWITCH_WEBHOOK_SECRET", ""),
		TwitchCallbackURL:   getEnv("TWITCH_CALLBACK_URL", ""),

		DiscordBotToken:  getEnv("DISCORD_BOT_TOKEN", ""),
		DiscordBotSecret: getEnv("DISCORD_BOT_SECRET", ""),

		FaceitAPIKey: getEnv("FACEIT_API_KEY", ""),

		GoogleClientID:      getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:  getEnv("GOOGLE_CLIENT_SECRET", ""),
		SpotifyClientID:     getEnv("SPOTIFY_CLIENT_ID", ""),
		SpotifyClientSecret: getEnv("SPOTIFY_CLIENT_SECRET", ""),
		TwitterClientID:     getEnv("TWITTER_CLIENT_ID", ""),
		TwitterClientSecret: getEnv("TWITTER_CLIENT_SECRET", ""),
	}
}

// Validate checks that the configuration can safely start the application.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid PORT %q: %w", c.Port, err)
	}

	switch c.DatabaseType {
	case "sqlite":
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required for sqlite")
		}
	case "postgres":
		if c.PostgresHost == "" || c.PostgresDB == "" || c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_HOST, POSTGRES_DB and POSTGRES_USER are required for postgres")
		}
	default:
		return fmt.Errorf("unsupported DATABASE_TYPE %q", c.DatabaseType)
	}

	if c.TimerPollInterval < time.Second {
		return fmt.Errorf("TIMER_POLL_INTERVAL must be at least 1s, got %v", c.TimerPollInterval)
	}

	// Twitch push triggers are unusable half-configured
	if c.TwitchClientID != "" || c.TwitchClientSecret != "" {
		if c.TwitchClientID == "" || c.TwitchClientSecret == "" {
			return fmt.Errorf("TWITCH_CLIENT_ID and TWITCH_CLIENT_SECRET must be set together")
		}
		if c.TwitchCallbackURL == "" {
			return fmt.Errorf("TWITCH_CALLBACK_URL is required when twitch credentials are configured")
		}
		if c.TwitchWebhookSecret == "" {
			return fmt.Errorf("TWITCH_WEBHOOK_SECRET is required when twitch credentials are configured")
		}
	}

	return nil
}

// PostgresDSN builds the connection string for the postgres storage adapter.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresUser, c.PostgresPassword, c.PostgresSSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
