package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - database.go: Database and Redis configuration
//   - http.go: HTTP server configuration
//   - security.go: Password hashing and login throttle configuration
//   - services.go: Service mode and sweeper configuration
//   - integrations.go: Payment gateway and mail configuration
type AppConfig struct {
	// IsDev controls development mode behavior (log verbosity, relaxed guards).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"http"`

	// Security configuration
	Security SecurityConfig

	// Sweeper configuration
	Sweeper SweeperConfig

	// Payment gateway configuration
	Paystack PaystackConfig `envPrefix:"PAYSTACK_"`

	// Outbound mail configuration
	SMTP SMTPConfig `envPrefix:"SMTP_"`
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Security.Sanitize()
	c.Sweeper.Sanitize()

	// Check NODE_ENV for dev mode
	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if c.IsDev {
		return
	}
	nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
	if nodeEnv == "development" || nodeEnv == "dev" {
		c.IsDev = true
	}
}
