// Package config validates the environment-variable configuration
// described in spec.md §6, the way the teacher's ValidateEnv collects
// every error before failing instead of bailing on the first one.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds validated environment configuration for one server process.
type Config struct {
	Port           string
	Password       string
	RoomLimit      int
	LobbyLifetime  time.Duration
	GameLifetime   time.Duration

	GoEnv    string
	LogLevel string

	// Ambient wiring, carried regardless of the core's Non-goals.
	RedisAddr     string
	RedisEnabled  bool
	RedisPassword string

	RateLimitRoomCreate string
	RateLimitRoomJoin   string

	AllowedOrigins string
}

// ValidateEnv validates every environment variable this server reads and
// returns one joined error describing all problems at once.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errs []string

	cfg.Port = getEnvOrDefault("PORT", "7468")
	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got %q)", cfg.Port))
	}

	cfg.Password = os.Getenv("PASSWORD") // empty disables auth, per spec.md §6

	roomLimitStr := getEnvOrDefault("ROOM_LIMIT", "100")
	roomLimit, err := strconv.Atoi(roomLimitStr)
	if err != nil || roomLimit < 1 {
		errs = append(errs, fmt.Sprintf("ROOM_LIMIT must be a positive integer (got %q)", roomLimitStr))
	}
	cfg.RoomLimit = roomLimit

	cfg.LobbyLifetime, err = parseMinutes("LOBBY_LIFETIME", "10")
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.GameLifetime, err = parseMinutes("GAME_LIFETIME", "20")
	if err != nil {
		errs = append(errs, err.Error())
	}

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.RedisEnabled = os.Getenv("REDIS_ENABLED") == "true"
	if cfg.RedisEnabled {
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
		if cfg.RedisAddr == "" {
			cfg.RedisAddr = "localhost:6379"
			slog.Warn("REDIS_ADDR not set, using default", "addr", cfg.RedisAddr)
		} else if !isValidHostPort(cfg.RedisAddr) {
			errs = append(errs, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got %q)", cfg.RedisAddr))
		}
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}

	cfg.RateLimitRoomCreate = getEnvOrDefault("RATE_LIMIT_ROOM_CREATE", "20-M")
	cfg.RateLimitRoomJoin = getEnvOrDefault("RATE_LIMIT_ROOM_JOIN", "60-M")
	cfg.AllowedOrigins = getEnvOrDefault("ALLOWED_ORIGINS", "*")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logValidatedConfig(cfg)
	return cfg, nil
}

func parseMinutes(key, def string) (time.Duration, error) {
	raw := getEnvOrDefault(key, def)
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes < 1 {
		return 0, fmt.Errorf("%s must be a positive integer number of minutes (got %q)", key, raw)
	}
	return time.Duration(minutes) * time.Minute, nil
}

func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 || parts[0] == "" {
		return false
	}
	port, err := strconv.Atoi(parts[1])
	return err == nil && port >= 1 && port <= 65535
}

func logValidatedConfig(cfg *Config) {
	slog.Info("environment configuration validated",
		"port", cfg.Port,
		"password_set", cfg.Password != "",
		"password", redactSecret(cfg.Password),
		"room_limit", cfg.RoomLimit,
		"lobby_lifetime", cfg.LobbyLifetime,
		"game_lifetime", cfg.GameLifetime,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"redis_enabled", cfg.RedisEnabled,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// redactSecret shows only the first 4 characters of a secret, or "***" for
// anything short enough that doing so would leak most of it.
func redactSecret(secret string) string {
	if len(secret) <= 4 {
		return "***"
	}
	return secret[:4] + "***"
}
