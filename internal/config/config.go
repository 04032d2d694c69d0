// Package config loads server configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is the full server configuration.
type Config struct {
	ListenAddr string `env:"CABO_LISTEN_ADDR" envDefault:":8080"`
	LogLevel   string `env:"CABO_LOG_LEVEL" envDefault:"info"`

	// DatabaseURL enables persistence of users and game results when set.
	DatabaseURL string `env:"DATABASE_URL"`

	// RedisAddr enables action-history publishing when set.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret   string        `env:"CABO_JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTLifetime time.Duration `env:"CABO_JWT_LIFETIME" envDefault:"24h"`

	ReactionWindow     time.Duration `env:"CABO_REACTION_WINDOW" envDefault:"5s"`
	TurnTimer          time.Duration `env:"CABO_TURN_TIMER" envDefault:"15s"`
	InitialPeekTimeout time.Duration `env:"CABO_INITIAL_PEEK_TIMEOUT" envDefault:"10s"`
}

// Load reads a .env file when present, then parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err == nil {
		logrus.Debug("loaded .env file")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ParseLogLevel maps the configured level onto logrus, defaulting to info.
func (c Config) ParseLogLevel() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
