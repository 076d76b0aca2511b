package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/victorivanov/retrostate/internal/timeline"
)

type Config struct {
	SessionToken string
	TokenSecret  string
	DatabaseURL  string
	RedisURL     string
	GatewayURL   string
	ServerAddr   string
	LogLevel     slog.Level
	GroupGap     time.Duration
	Location     *time.Location
}

// Load reads the configuration from the environment. It panics listing every
// required variable that is unset or every value that does not parse.
func Load() *Config {
	cfg := &Config{
		SessionToken: os.Getenv("SESSION_TOKEN"),
		TokenSecret:  os.Getenv("TOKEN_SECRET"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisURL:     envOrDefault("REDIS_URL", "redis://localhost:6379"),
		GatewayURL:   os.Getenv("GATEWAY_URL"),
		ServerAddr:   envOrDefault("SERVER_ADDR", ":8090"),
		LogLevel:     parseLogLevel(os.Getenv("LOG_LEVEL")),
	}

	var missing []string
	if cfg.SessionToken == "" {
		missing = append(missing, "SESSION_TOKEN")
	}
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		panic(fmt.Sprintf("required environment variables not set: %s", strings.Join(missing, ", ")))
	}

	var invalid []string
	gap, err := time.ParseDuration(envOrDefault("GROUP_GAP", timeline.DefaultGap.String()))
	if err != nil || gap <= 0 {
		invalid = append(invalid, "GROUP_GAP")
	}
	cfg.GroupGap = gap

	loc, err := time.LoadLocation(envOrDefault("TIMELINE_TZ", "UTC"))
	if err != nil {
		invalid = append(invalid, "TIMELINE_TZ")
	}
	cfg.Location = loc

	if len(invalid) > 0 {
		panic(fmt.Sprintf("invalid environment variables: %s", strings.Join(invalid, ", ")))
	}
	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
