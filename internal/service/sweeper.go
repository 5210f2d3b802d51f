package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/healthquiz/quiz-api/config"
	"github.com/healthquiz/quiz-api/internal/core"
	"github.com/healthquiz/quiz-api/internal/data"
	"github.com/healthquiz/quiz-api/internal/domain/security"
)

// SweeperServiceOptions groups dependencies for SweeperService.
type SweeperServiceOptions struct {
	Accounts core.AccountRepository // Required: account repository
	Config   config.SweeperConfig   // Required: sweeper configuration
	Time     data.TimeProvider      // Optional: defaults to real time
	Logger   *slog.Logger           // Optional: structured logger
}

// SweeperService periodically removes idle sessions and lifts lapsed
// suspensions across all accounts. Each tick is independent; failures are
// logged and the loop keeps running.
type SweeperService struct {
	accounts core.AccountRepository
	config   config.SweeperConfig
	time     data.TimeProvider
	logger   *slog.Logger
}

// NewSweeperService constructs a new SweeperService.
func NewSweeperService(opts SweeperServiceOptions) (*SweeperService, error) {
	if opts.Accounts == nil {
		return nil, errors.New("AccountRepository is required")
	}

	tp := opts.Time
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "sweeper_service")
	}

	return &SweeperService{
		accounts: opts.Accounts,
		config:   opts.Config,
		time:     tp,
		logger:   logger,
	}, nil
}

// Run starts the sweep loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *SweeperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting sweeper service", "interval", s.config.Interval)
	}

	// Add jitter to prevent thundering herd if multiple instances start together
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run a sweep immediately after jitter
	if err := s.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logSweepError(ctx, err)
	}

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "sweeper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				// Keep running despite errors
				s.logSweepError(ctx, err)
			}
		}
	}
}

// Sweep performs one pass: purge idle sessions and lift lapsed suspensions.
// The two sweeps touch disjoint account state and run concurrently.
func (s *SweeperService) Sweep(ctx context.Context) error {
	now := s.time.Now().UTC()
	start := time.Now()

	var purged, lifted int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.accounts.PurgeExpiredSessions(gctx, now.Add(-security.SessionTimeout))
		if err != nil {
			return fmt.Errorf("purge expired sessions: %w", err)
		}
		purged = n
		return nil
	})
	g.Go(func() error {
		n, err := s.accounts.ClearExpiredSuspensions(gctx, now)
		if err != nil {
			return fmt.Errorf("clear expired suspensions: %w", err)
		}
		lifted = n
		return nil
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			return context.Canceled
		}
		return fmt.Errorf("sweep failed: %w", err)
	}

	if s.logger != nil && (purged > 0 || lifted > 0) {
		s.logger.InfoContext(ctx, "sweep completed",
			"accounts_purged", purged,
			"suspensions_lifted", lifted,
			"elapsed", time.Since(start),
		)
	}
	return nil
}

// waitWithJitter adds a random delay up to 10% of the interval to prevent thundering herd.
func (s *SweeperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// If crypto/rand fails, skip jitter rather than failing startup
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
		// Graceful shutdown during jitter
	}
}

func (s *SweeperService) logSweepError(ctx context.Context, err error) {
	if s.logger != nil {
		s.logger.ErrorContext(ctx, "sweep failed", "error", err)
	}
}
