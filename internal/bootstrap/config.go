// Package bootstrap wires configuration, storage, and services into a
// runnable application.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/healthquiz/quiz-api/config"
)

// InitLogger initializes the structured logger.
func InitLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// EnabledServices parses and validates the configured service list.
func EnabledServices(cfg *config.AppConfig) (map[config.ServiceMode]bool, error) {
	if cfg == nil {
		return nil, errors.New("service config is required")
	}
	services, err := config.ParseServices(cfg.Services)
	if err != nil {
		return nil, fmt.Errorf("invalid service configuration: %w", err)
	}
	return services, nil
}
