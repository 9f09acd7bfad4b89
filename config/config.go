package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server ServerConfig
	Room   RoomConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// RoomConfig holds room lifecycle timing settings.
type RoomConfig struct {
	DefaultTimeLimit time.Duration // question timeout when none is supplied
	JanitorInterval  time.Duration // sweep period for stale rooms
	MaxAge           time.Duration // rooms older than this are evicted
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		},
		Room: RoomConfig{
			DefaultTimeLimit: time.Duration(getEnvInt("QUESTION_TIME_LIMIT_SEC", 60)) * time.Second,
			JanitorInterval:  time.Duration(getEnvInt("ROOM_CLEANUP_INTERVAL_SEC", 60)) * time.Second,
			MaxAge:           time.Duration(getEnvInt("ROOM_MAX_AGE_HOURS", 24)) * time.Hour,
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
