// Package config loads the CLI's environment configuration and sets up
// structured logging.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"go-simpler.org/env"
)

// Config is the process configuration, filled from the environment
type Config struct {
	NWCURI         string        `env:"NWC_URI"`
	LogLevel       string        `env:"LOG_LEVEL" default:"info"`
	RedisURL       string        `env:"REDIS_URL"`
	Relays         []string      `env:"RELAYS"`
	RequestTimeout time.Duration `env:"NWC_TIMEOUT" default:"30s"`
}

// Load reads the configuration from the environment
func Load() (*Config, error) {
	var cfg Config
	if err := env.Load(&cfg, &env.Options{SliceSep: ","}); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return &cfg, nil
}

// InitLogger installs a JSON slog handler at the configured level
func InitLogger(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
