// Package config loads runtime settings from the environment, with an
// optional .env file for development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is the full runtime configuration.
type Config struct {
	Port      string
	RedisAddr string
	RedisPass string
	RedisDB   int

	// DatabaseURL is the optional postgres archive; empty disables it.
	DatabaseURL string

	SessionSecret string
	SessionTTL    time.Duration

	// Listener marks this process as a timer expiry listener in addition
	// to serving connections.
	Listener bool

	TurnMainTTL   time.Duration
	TurnActionTTL time.Duration
	AbandonTTL    time.Duration

	LogLevel logrus.Level
}

// Load reads configuration, sourcing a .env file first when present.
func Load(log *logrus.Logger) Config {
	if err := godotenv.Load(); err == nil {
		log.Debug("loaded .env file")
	}

	cfg := Config{
		Port:          getEnv("PORT", "8080"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionTTL:    getEnvDuration("SESSION_TTL", 24*time.Hour),
		Listener:      getEnvBool("TIMER_LISTENER", true),
		TurnMainTTL:   getEnvDuration("TURN_TIMER_MAIN", 30*time.Second),
		TurnActionTTL: getEnvDuration("TURN_TIMER_ACTION", 10*time.Second),
		AbandonTTL:    getEnvDuration("GAME_ABANDON_TIMER", 30*time.Minute),
		LogLevel:      logrus.InfoLevel,
	}

	if lvl, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		cfg.LogLevel = lvl
	}
	if cfg.SessionSecret == "" {
		log.Warn("SESSION_SECRET not set, using an insecure default")
		cfg.SessionSecret = "insecure-dev-secret"
	}
	return cfg
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

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
