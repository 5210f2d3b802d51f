package config

import "time"

// PaystackConfig contains Paystack payment gateway configuration.
type PaystackConfig struct {
	// SecretKey is the Paystack secret key, used both for API calls and for
	// verifying webhook signatures.
	SecretKey string `env:"SECRET_KEY"`

	// BaseURL is the Paystack API base URL. Overridable for tests.
	BaseURL string `env:"BASE_URL" envDefault:"https://api.paystack.co"`

	// Timeout bounds the transaction verification API call.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// Enabled reports whether payment processing is configured.
func (p PaystackConfig) Enabled() bool {
	return p.SecretKey != ""
}

// SMTPConfig contains outbound mail configuration.
type SMTPConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT"     envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM"     envDefault:"no-reply@healthquiz.local"`
}

// Enabled reports whether outbound mail is configured.
func (s SMTPConfig) Enabled() bool {
	return s.Host != ""
}
