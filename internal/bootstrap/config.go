package bootstrap

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerAddr string
	LogLevel   string

	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ConnectTimeout   time.Duration
	ReadTimeout      time.Duration
	BackoffCap       time.Duration
	FallbackAfter    int
	SnapshotInterval time.Duration

	ArchiveInterval   time.Duration
	FrameTTL          time.Duration
	RemoveJoinTimeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		DatabaseDSN: getEnv("DATABASE_DSN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       0,

		ConnectTimeout:   getEnvDuration("CONNECT_TIMEOUT", 3*time.Second),
		ReadTimeout:      getEnvDuration("READ_TIMEOUT", 5*time.Second),
		BackoffCap:       getEnvDuration("BACKOFF_CAP", 30*time.Second),
		FallbackAfter:    getEnvInt("FALLBACK_AFTER", 3),
		SnapshotInterval: getEnvDuration("SNAPSHOT_INTERVAL", 200*time.Millisecond),

		ArchiveInterval:   getEnvDuration("ARCHIVE_INTERVAL", 2*time.Second),
		FrameTTL:          getEnvDuration("FRAME_TTL", 60*time.Second),
		RemoveJoinTimeout: getEnvDuration("REMOVE_JOIN_TIMEOUT", 3*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
