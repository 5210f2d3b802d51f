package config

import "time"

// SecurityConfig contains password hashing and login throttle configuration.
// The anti-sharing thresholds themselves (session timeout, warning threshold,
// suspension length) are fixed constants in the security evaluator and are
// deliberately not environment-tunable.
type SecurityConfig struct {
	// BcryptCost is the bcrypt work factor for password hashing.
	BcryptCost int `env:"BCRYPT_COST" envDefault:"12"`

	// MaxSessions is the default session cap recorded on new accounts.
	MaxSessions int `env:"MAX_SESSIONS" envDefault:"3"`

	// ThrottleEnabled turns the Redis-backed failed-login throttle on.
	ThrottleEnabled bool `env:"LOGIN_THROTTLE_ENABLED" envDefault:"true"`

	// ThrottleMaxAttempts is the number of failed attempts allowed per window.
	ThrottleMaxAttempts int `env:"LOGIN_THROTTLE_MAX_ATTEMPTS" envDefault:"10"`

	// ThrottleWindow is the sliding window for failed-attempt counting.
	ThrottleWindow time.Duration `env:"LOGIN_THROTTLE_WINDOW" envDefault:"15m"`

	// AdminKey protects the admin endpoints. Empty disables them entirely.
	AdminKey string `env:"ADMIN_KEY"`
}

// Sanitize applies guardrails to security configuration values.
func (s *SecurityConfig) Sanitize() {
	// bcrypt below cost 10 is too weak for stored credentials; above 15 stalls logins
	if s.BcryptCost < 10 {
		s.BcryptCost = 10
	}
	if s.BcryptCost > 15 {
		s.BcryptCost = 15
	}
	if s.MaxSessions < 1 {
		s.MaxSessions = 1
	}
	if s.ThrottleMaxAttempts < 1 {
		s.ThrottleMaxAttempts = 1
	}
	if s.ThrottleWindow < time.Minute {
		s.ThrottleWindow = time.Minute
	}
}
