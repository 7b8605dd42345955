// Package config loads the environment-driven configuration recognized
// by the server, with optional .env loading for local development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every recognized environment option and its effect.
type Config struct {
	Port            int
	Host            string
	MaxRooms        int
	RoomTimeout     time.Duration
	GracePeriod     time.Duration
	PingInterval    time.Duration
	PongTimeout     time.Duration
	MaxMessageBytes int64
	TimeoutProfile  string

	RedisAddr      string   // optional: empty means the in-memory rate-limit store is used
	JWTSecret      string   // optional: empty means bearer tokens are not verified
	AllowedOrigins []string // optional: empty means every WebSocket origin is accepted
}

// Load reads a .env file if present (ignored if absent, matching
// godotenv's typical local-dev usage) and then the process environment,
// applying the documented defaults for anything unset.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:            envInt("PORT", 8080),
		Host:            envStr("HOST", "0.0.0.0"),
		MaxRooms:        envInt("MAX_ROOMS", 1000),
		RoomTimeout:     envDuration("ROOM_TIMEOUT_MS", 10*time.Minute),
		GracePeriod:     envDuration("GRACE_PERIOD_MS", 30*time.Second),
		PingInterval:    envDuration("PING_INTERVAL_MS", 20*time.Second),
		PongTimeout:     envDuration("PONG_TIMEOUT_MS", 40*time.Second),
		MaxMessageBytes: int64(envInt("MAX_MESSAGE_BYTES", 32*1024)),
		TimeoutProfile:  envStr("TIMEOUT_PROFILE", "casual"),
		RedisAddr:       envStr("REDIS_ADDR", ""),
		JWTSecret:       envStr("JWT_SECRET", ""),
		AllowedOrigins:  envList("ALLOWED_ORIGINS"),
	}
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Millisecond
		}
	}
	return def
}
