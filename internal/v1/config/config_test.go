package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func setupTestEnv(t *testing.T) func() {
	keys := []string{
		"PORT", "PASSWORD", "ROOM_LIMIT", "LOBBY_LIFETIME", "GAME_LIFETIME",
		"GO_ENV", "LOG_LEVEL", "REDIS_ENABLED", "REDIS_ADDR", "REDIS_PASSWORD",
		"RATE_LIMIT_ROOM_CREATE", "RATE_LIMIT_ROOM_JOIN", "ALLOWED_ORIGINS",
	}
	orig := make(map[string]string, len(keys))
	for _, k := range keys {
		orig[k] = os.Getenv(k)
		os.Unsetenv(k)
	}
	return func() {
		for _, k := range keys {
			if v := orig[k]; v != "" {
				os.Setenv(k, v)
			} else {
				os.Unsetenv(k)
			}
		}
	}
}

func TestValidateEnv_Defaults(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	cfg, err := ValidateEnv()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.Port != "7468" {
		t.Errorf("expected PORT to default to 7468, got %q", cfg.Port)
	}
	if cfg.Password != "" {
		t.Errorf("expected PASSWORD to default to empty, got %q", cfg.Password)
	}
	if cfg.RoomLimit != 100 {
		t.Errorf("expected ROOM_LIMIT to default to 100, got %d", cfg.RoomLimit)
	}
	if cfg.LobbyLifetime != 10*time.Minute {
		t.Errorf("expected LOBBY_LIFETIME to default to 10m, got %v", cfg.LobbyLifetime)
	}
	if cfg.GameLifetime != 20*time.Minute {
		t.Errorf("expected GAME_LIFETIME to default to 20m, got %v", cfg.GameLifetime)
	}
	if cfg.GoEnv != "production" {
		t.Errorf("expected GO_ENV to default to production, got %q", cfg.GoEnv)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected LOG_LEVEL to default to info, got %q", cfg.LogLevel)
	}
}

func TestValidateEnv_CustomValues(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("PORT", "8080")
	os.Setenv("PASSWORD", "s3cr3t")
	os.Setenv("ROOM_LIMIT", "5")
	os.Setenv("LOBBY_LIFETIME", "1")
	os.Setenv("GAME_LIFETIME", "2")

	cfg, err := ValidateEnv()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected PORT '8080', got %q", cfg.Port)
	}
	if cfg.Password != "s3cr3t" {
		t.Errorf("expected PASSWORD to be set correctly")
	}
	if cfg.RoomLimit != 5 {
		t.Errorf("expected ROOM_LIMIT 5, got %d", cfg.RoomLimit)
	}
	if cfg.LobbyLifetime != time.Minute {
		t.Errorf("expected LOBBY_LIFETIME 1m, got %v", cfg.LobbyLifetime)
	}
	if cfg.GameLifetime != 2*time.Minute {
		t.Errorf("expected GAME_LIFETIME 2m, got %v", cfg.GameLifetime)
	}
}

func TestValidateEnv_InvalidPort(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("PORT", "99999")

	_, err := ValidateEnv()
	if err == nil {
		t.Fatal("expected error for invalid PORT, got nil")
	}
	if !strings.Contains(err.Error(), "PORT must be a valid port number") {
		t.Errorf("expected error message about invalid PORT, got: %v", err)
	}
}

func TestValidateEnv_InvalidRoomLimit(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("ROOM_LIMIT", "0")

	_, err := ValidateEnv()
	if err == nil {
		t.Fatal("expected error for ROOM_LIMIT=0, got nil")
	}
	if !strings.Contains(err.Error(), "ROOM_LIMIT must be a positive integer") {
		t.Errorf("expected error message about ROOM_LIMIT, got: %v", err)
	}
}

func TestValidateEnv_InvalidLifetimes(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("LOBBY_LIFETIME", "not-a-number")
	os.Setenv("GAME_LIFETIME", "-1")

	_, err := ValidateEnv()
	if err == nil {
		t.Fatal("expected error for invalid lifetimes, got nil")
	}
	if !strings.Contains(err.Error(), "LOBBY_LIFETIME") || !strings.Contains(err.Error(), "GAME_LIFETIME") {
		t.Errorf("expected both LOBBY_LIFETIME and GAME_LIFETIME errors joined, got: %v", err)
	}
}

func TestValidateEnv_InvalidRedisAddr(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("REDIS_ENABLED", "true")
	os.Setenv("REDIS_ADDR", "invalid-format")

	_, err := ValidateEnv()
	if err == nil {
		t.Fatal("expected error for invalid REDIS_ADDR, got nil")
	}
	if !strings.Contains(err.Error(), "REDIS_ADDR must be in format 'host:port'") {
		t.Errorf("expected error message about REDIS_ADDR format, got: %v", err)
	}
}

func TestValidateEnv_RedisDefaultAddr(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("REDIS_ENABLED", "true")

	cfg, err := ValidateEnv()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("expected REDIS_ADDR to default to 'localhost:6379', got %q", cfg.RedisAddr)
	}
}

func TestValidateEnv_RateLimitDefaults(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	cfg, err := ValidateEnv()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.RateLimitRoomCreate != "20-M" {
		t.Errorf("expected RATE_LIMIT_ROOM_CREATE default '20-M', got %q", cfg.RateLimitRoomCreate)
	}
	if cfg.RateLimitRoomJoin != "60-M" {
		t.Errorf("expected RATE_LIMIT_ROOM_JOIN default '60-M', got %q", cfg.RateLimitRoomJoin)
	}
	if cfg.AllowedOrigins != "*" {
		t.Errorf("expected ALLOWED_ORIGINS default '*', got %q", cfg.AllowedOrigins)
	}
}

func TestRedactSecret(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		expected string
	}{
		{"Long secret", "this-is-a-very-long-secret-key", "this***"},
		{"Short secret", "sh", "***"},
		{"Exactly 4 chars", "1234", "***"},
		{"5 chars", "12345", "1234***"},
		{"Empty", "", "***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := redactSecret(tt.secret)
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestIsValidHostPort(t *testing.T) {
	tests := []struct {
		name     string
		addr     string
		expected bool
	}{
		{"Valid localhost", "localhost:8080", true},
		{"Valid IP", "127.0.0.1:3000", true},
		{"Valid hostname", "example.com:443", true},
		{"Missing port", "localhost", false},
		{"Missing host", ":8080", false},
		{"Invalid port", "localhost:99999", false},
		{"Non-numeric port", "localhost:abc", false},
		{"Multiple colons", "localhost:8080:9090", false},
		{"Empty string", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isValidHostPort(tt.addr)
			if result != tt.expected {
				t.Errorf("isValidHostPort(%q) = %v, expected %v", tt.addr, result, tt.expected)
			}
		})
	}
}
