package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServices(t *testing.T) {
	t.Parallel()

	services, err := ParseServices("http")
	require.NoError(t, err)
	assert.True(t, IsHTTPEnabled(services))
	assert.False(t, IsSweeperEnabled(services))

	services, err = ParseServices("http, sweeper")
	require.NoError(t, err)
	assert.True(t, IsHTTPEnabled(services))
	assert.True(t, IsSweeperEnabled(services))

	_, err = ParseServices("")
	require.Error(t, err)

	_, err = ParseServices("http,reaper")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid service")
}

func TestSweeperConfig_Sanitize(t *testing.T) {
	t.Parallel()

	cfg := SweeperConfig{Interval: time.Second}
	cfg.Sanitize()
	assert.Equal(t, 30*time.Second, cfg.Interval)

	cfg = SweeperConfig{Interval: 5 * time.Minute}
	cfg.Sanitize()
	assert.Equal(t, 5*time.Minute, cfg.Interval)
}

func TestSecurityConfig_Sanitize(t *testing.T) {
	t.Parallel()

	cfg := SecurityConfig{BcryptCost: 4, MaxSessions: 0, ThrottleMaxAttempts: 0, ThrottleWindow: time.Second}
	cfg.Sanitize()
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, 1, cfg.MaxSessions)
	assert.Equal(t, 1, cfg.ThrottleMaxAttempts)
	assert.Equal(t, time.Minute, cfg.ThrottleWindow)

	cfg = SecurityConfig{BcryptCost: 31}
	cfg.Sanitize()
	assert.Equal(t, 15, cfg.BcryptCost)
}

func TestHTTPConfig_Sanitize(t *testing.T) {
	t.Parallel()

	cfg := HTTPConfig{}
	cfg.Sanitize()
	assert.Equal(t, time.Second, cfg.ReadTimeout)
	assert.Equal(t, time.Second, cfg.WriteTimeout)
}

func TestPaystackConfig_Enabled(t *testing.T) {
	t.Parallel()

	assert.False(t, PaystackConfig{}.Enabled())
	assert.True(t, PaystackConfig{SecretKey: "sk_test_xyz"}.Enabled())
}

func TestSMTPConfig_Enabled(t *testing.T) {
	t.Parallel()

	assert.False(t, SMTPConfig{}.Enabled())
	assert.True(t, SMTPConfig{Host: "smtp.example.com"}.Enabled())
}
