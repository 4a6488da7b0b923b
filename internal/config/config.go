package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	RiotAPIKey   string
	MongoURI     string
	MongoDB      string
	RedisAddr    string
	ServerPort   string
	LogLevel     string
	HomePlatform string
	WorkerCount  int
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		RiotAPIKey:   getEnv("RIOT_API_KEY", ""),
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:      getEnv("MONGO_DB", "riot"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		HomePlatform: getEnv("HOME_PLATFORM", "euw1"),
		WorkerCount:  getEnvInt("WORKER_COUNT", 4),
	}

	if cfg.RiotAPIKey == "" {
		return nil, fmt.Errorf("RIOT_API_KEY is required")
	}

	logger.Info().
		Str("mongo_uri", cfg.MongoURI).
		Str("mongo_db", cfg.MongoDB).
		Str("redis_addr", cfg.RedisAddr).
		Str("server_port", cfg.ServerPort).
		Str("home_platform", cfg.HomePlatform).
		Int("worker_count", cfg.WorkerCount).
		Msg("configuration loaded")

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
