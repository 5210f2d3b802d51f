package redis

// Package redis provides Redis-based adapters for the quiz API.

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultMaxAttempts = 10
	defaultWindow      = 15 * time.Minute
)

// LoginThrottle is a Redis-backed failed-login counter. Each key (typically
// client IP plus username) gets a counter with a sliding TTL; once the counter
// reaches the limit further attempts are rejected until the window lapses.
type LoginThrottle struct {
	client      redis.UniversalClient
	prefix      string
	maxAttempts int
	window      time.Duration
}

// LoginThrottleOptions configures a LoginThrottle. Zero values fall back to defaults.
type LoginThrottleOptions struct {
	Prefix      string
	MaxAttempts int
	Window      time.Duration
}

// NewLoginThrottle creates a Redis-backed login throttle.
func NewLoginThrottle(client redis.UniversalClient, opts LoginThrottleOptions) *LoginThrottle {
	if opts.Prefix == "" {
		opts.Prefix = "login-fail:"
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Window <= 0 {
		opts.Window = defaultWindow
	}
	return &LoginThrottle{
		client:      client,
		prefix:      opts.Prefix,
		maxAttempts: opts.MaxAttempts,
		window:      opts.Window,
	}
}

// Allow reports whether another attempt is permitted for the key.
func (t *LoginThrottle) Allow(ctx context.Context, key string) (bool, error) {
	count, err := t.client.Get(ctx, t.prefix+key).Int()
	if err != nil {
		if err == redis.Nil {
			return true, nil
		}
		return false, fmt.Errorf("redis get: %w", err)
	}
	return count < t.maxAttempts, nil
}

// RecordFailure registers a failed attempt and refreshes the window TTL.
func (t *LoginThrottle) RecordFailure(ctx context.Context, key string) error {
	pipe := t.client.TxPipeline()
	pipe.Incr(ctx, t.prefix+key)
	pipe.Expire(ctx, t.prefix+key, t.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis incr: %w", err)
	}
	return nil
}

// Reset clears the failure count for the key.
func (t *LoginThrottle) Reset(ctx context.Context, key string) error {
	if err := t.client.Del(ctx, t.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
