package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"github.com/healthquiz/quiz-api/config"
	"github.com/healthquiz/quiz-api/internal/data"
	"github.com/healthquiz/quiz-api/internal/domain/model"
	apperrors "github.com/healthquiz/quiz-api/internal/errors"
	"github.com/healthquiz/quiz-api/internal/mocks"
)

// newThrottledAuthService builds an AuthService whose throttle is a gomock
// mock, so tests can pin down the exact throttle interactions per login path.
func newThrottledAuthService(t *testing.T, throttle *mocks.MockLoginThrottle) *AuthService {
	t.Helper()

	accounts := newMockAccountRepo()
	events := &mockEventRepo{presetCounts: map[model.SecurityEventType]int{}}

	svc, err := NewAuthService(AuthServiceOptions{
		Accounts: accounts,
		Events:   events,
		Throttle: throttle,
		Time:     data.NewFixedTimeProvider(authNow),
		Security: config.SecurityConfig{BcryptCost: bcrypt.MinCost, MaxSessions: 3},
	})
	require.NoError(t, err)
	return svc
}

func registerThrottled(t *testing.T, svc *AuthService, username string) {
	t.Helper()
	_, err := svc.Register(context.Background(), &model.CreateAccountRequest{
		Username: username,
		Password: "hunter22",
		Email:    username + "@example.com",
	})
	require.NoError(t, err)
}

func TestAuthService_Login_ThrottleDenied(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	throttle := mocks.NewMockLoginThrottle(ctrl)
	svc := newThrottledAuthService(t, throttle)

	throttle.EXPECT().
		Allow(gomock.Any(), "1.2.3.4:alice").
		Return(false, nil).
		Times(1)

	res, err := svc.Login(context.Background(), LoginParams{
		Username:  "alice",
		Password:  "hunter22",
		IP:        "1.2.3.4",
		UserAgent: "browser-a",
	})

	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, apperrors.IsThrottled(err))
}

func TestAuthService_Login_ThrottleOutageDoesNotBlock(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	throttle := mocks.NewMockLoginThrottle(ctrl)
	svc := newThrottledAuthService(t, throttle)
	registerThrottled(t, svc, "alice")

	throttle.EXPECT().
		Allow(gomock.Any(), "1.2.3.4:alice").
		Return(false, errors.New("redis: connection refused")).
		Times(1)
	throttle.EXPECT().
		Reset(gomock.Any(), "1.2.3.4:alice").
		Return(nil).
		Times(1)

	res, err := svc.Login(context.Background(), LoginParams{
		Username:  "alice",
		Password:  "hunter22",
		IP:        "1.2.3.4",
		UserAgent: "browser-a",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, res.SessionID)
}

func TestAuthService_Login_RecordsFailure(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	throttle := mocks.NewMockLoginThrottle(ctrl)
	svc := newThrottledAuthService(t, throttle)
	registerThrottled(t, svc, "alice")

	throttle.EXPECT().
		Allow(gomock.Any(), "1.2.3.4:alice").
		Return(true, nil).
		Times(2)
	throttle.EXPECT().
		RecordFailure(gomock.Any(), "1.2.3.4:alice").
		Return(nil).
		Times(1)

	_, err := svc.Login(context.Background(), LoginParams{
		Username:  "alice",
		Password:  "wrong",
		IP:        "1.2.3.4",
		UserAgent: "browser-a",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthorized(err))

	throttle.EXPECT().
		Reset(gomock.Any(), "1.2.3.4:alice").
		Return(nil).
		Times(1)

	res, err := svc.Login(context.Background(), LoginParams{
		Username:  "alice",
		Password:  "hunter22",
		IP:        "1.2.3.4",
		UserAgent: "browser-a",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.SessionID)
}

func TestAuthService_Login_ResetFailureTolerated(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	throttle := mocks.NewMockLoginThrottle(ctrl)
	svc := newThrottledAuthService(t, throttle)
	registerThrottled(t, svc, "alice")

	throttle.EXPECT().
		Allow(gomock.Any(), "1.2.3.4:alice").
		Return(true, nil).
		Times(1)
	throttle.EXPECT().
		Reset(gomock.Any(), "1.2.3.4:alice").
		Return(errors.New("redis: connection refused")).
		Times(1)

	res, err := svc.Login(context.Background(), LoginParams{
		Username:  "alice",
		Password:  "hunter22",
		IP:        "1.2.3.4",
		UserAgent: "browser-a",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, res.SessionID)
}
