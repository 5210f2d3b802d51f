package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthquiz/quiz-api/config"
	"github.com/healthquiz/quiz-api/internal/data"
	"github.com/healthquiz/quiz-api/internal/domain/model"
)

// mockSweepRepo tracks sweep calls and the cutoffs they were given.
type mockSweepRepo struct {
	purgeCalls   int
	purgeCutoffs []time.Time
	purgeCount   int
	purgeErr     error

	clearCalls int
	clearNows  []time.Time
	clearCount int
	clearErr   error
}

func (m *mockSweepRepo) Create(context.Context, *model.Account) (*model.Account, error) {
	return nil, errors.New("not implemented")
}

func (m *mockSweepRepo) GetByUsername(context.Context, string) (*model.Account, error) {
	return nil, errors.New("not implemented")
}

func (m *mockSweepRepo) GetByEmail(context.Context, string) (*model.Account, error) {
	return nil, errors.New("not implemented")
}

func (m *mockSweepRepo) Save(context.Context, *model.Account) (*model.Account, error) {
	return nil, errors.New("not implemented")
}

func (m *mockSweepRepo) PurgeExpiredSessions(_ context.Context, cutoff time.Time) (int, error) {
	m.purgeCalls++
	m.purgeCutoffs = append(m.purgeCutoffs, cutoff)
	return m.purgeCount, m.purgeErr
}

func (m *mockSweepRepo) ClearExpiredSuspensions(_ context.Context, now time.Time) (int, error) {
	m.clearCalls++
	m.clearNows = append(m.clearNows, now)
	return m.clearCount, m.clearErr
}

func TestSweeperService_Sweep(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	t.Run("passes idle cutoff and current time", func(t *testing.T) {
		t.Parallel()
		repo := &mockSweepRepo{purgeCount: 3, clearCount: 1}
		svc, err := NewSweeperService(SweeperServiceOptions{
			Accounts: repo,
			Config:   config.SweeperConfig{Interval: 5 * time.Minute},
			Time:     data.NewFixedTimeProvider(now),
		})
		require.NoError(t, err)

		require.NoError(t, svc.Sweep(context.Background()))
		require.Equal(t, 1, repo.purgeCalls)
		assert.Equal(t, now.Add(-20*time.Minute), repo.purgeCutoffs[0])
		require.Equal(t, 1, repo.clearCalls)
		assert.Equal(t, now, repo.clearNows[0])
	})

	t.Run("purge failure still clears suspensions", func(t *testing.T) {
		t.Parallel()
		repo := &mockSweepRepo{purgeErr: errors.New("db down")}
		svc, err := NewSweeperService(SweeperServiceOptions{
			Accounts: repo,
			Config:   config.SweeperConfig{Interval: 5 * time.Minute},
			Time:     data.NewFixedTimeProvider(now),
		})
		require.NoError(t, err)

		err = svc.Sweep(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "purge expired sessions")
		assert.Equal(t, 1, repo.clearCalls)
	})

	t.Run("cancelled context maps to context.Canceled", func(t *testing.T) {
		t.Parallel()
		repo := &mockSweepRepo{purgeErr: context.Canceled}
		svc, err := NewSweeperService(SweeperServiceOptions{
			Accounts: repo,
			Config:   config.SweeperConfig{Interval: 5 * time.Minute},
			Time:     data.NewFixedTimeProvider(now),
		})
		require.NoError(t, err)

		err = svc.Sweep(context.Background())
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestSweeperService_Run_StopsOnCancel(t *testing.T) {
	t.Parallel()

	repo := &mockSweepRepo{}
	svc, err := NewSweeperService(SweeperServiceOptions{
		Accounts: repo,
		Config:   config.SweeperConfig{Interval: 10 * time.Millisecond},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}

	assert.GreaterOrEqual(t, repo.purgeCalls, 1)
}

func TestNewSweeperService_RequiresAccounts(t *testing.T) {
	t.Parallel()

	_, err := NewSweeperService(SweeperServiceOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccountRepository is required")
}
