package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL   string
	WSBaseURL    string
	Environment  string
	CacheDir     string
	RedisAddr    string
	ListingsTTL  time.Duration
	ChatRoomsTTL time.Duration
	AuthToken    string
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		APIBaseURL:   getEnv("API_BASE_URL", "http://localhost:8000/api/v1"),
		WSBaseURL:    getEnv("WS_BASE_URL", "ws://localhost:8000/api/v1/chat/ws"),
		Environment:  getEnv("ENVIRONMENT", "development"),
		CacheDir:     getEnv("CACHE_DIR", ".estatesync"),
		RedisAddr:    getEnv("REDIS_ADDR", ""),
		ListingsTTL:  time.Duration(getEnvAsInt64("LISTINGS_TTL_SECONDS", 300)) * time.Second,
		ChatRoomsTTL: time.Duration(getEnvAsInt64("CHAT_ROOMS_TTL_SECONDS", 300)) * time.Second,
		AuthToken:    getEnv("AUTH_TOKEN", ""),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}
