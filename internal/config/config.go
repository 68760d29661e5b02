package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port      string `env:"PORT"             envDefault:"8080"`
	RedisURL  string `env:"REDIS_URL"        envDefault:"redis://localhost:6379"`
	IssuerURL string `env:"KINDE_ISSUER_URL"`
	LogLevel  string `env:"LOG_LEVEL"        envDefault:"info"`

	// TypingTimeout is how long a typing indicator survives without renewal.
	TypingTimeout time.Duration `env:"TYPING_TIMEOUT" envDefault:"5s"`
	// TypingUpdateInterval is the minimum gap between two typing:start
	// publishes from one connection for one scope.
	TypingUpdateInterval       time.Duration `env:"TYPING_UPDATE_INTERVAL"        envDefault:"5s"`
	MaxNotificationsPerChannel int           `env:"MAX_NOTIFICATIONS_PER_CHANNEL" envDefault:"1000"`
	EnableTypingMessages       bool          `env:"ENABLE_USER_TYPING_MESSAGES"   envDefault:"true"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.TypingTimeout <= 0 {
		return nil, errors.New("TYPING_TIMEOUT must be positive")
	}
	if cfg.TypingUpdateInterval < 0 {
		return nil, errors.New("TYPING_UPDATE_INTERVAL must not be negative")
	}
	return &cfg, nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
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
