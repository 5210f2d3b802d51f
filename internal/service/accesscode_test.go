package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthquiz/quiz-api/internal/core"
	"github.com/healthquiz/quiz-api/internal/data"
	"github.com/healthquiz/quiz-api/internal/domain/model"
	apperrors "github.com/healthquiz/quiz-api/internal/errors"
)

// mockCodeRepo is an in-memory access code store keyed by code.
type mockCodeRepo struct {
	codes          map[string]*model.AccessCode
	createConflict int // fail this many Creates with a conflict first
}

func newMockCodeRepo() *mockCodeRepo {
	return &mockCodeRepo{codes: make(map[string]*model.AccessCode)}
}

func (m *mockCodeRepo) Create(_ context.Context, params core.CreateAccessCodeParams) (*model.AccessCode, error) {
	if m.createConflict > 0 {
		m.createConflict--
		return nil, apperrors.Conflict("code already exists")
	}
	if _, ok := m.codes[params.Code]; ok {
		return nil, apperrors.Conflict("code already exists")
	}
	code := &model.AccessCode{
		Code:      params.Code,
		Plan:      params.Plan,
		Username:  params.Username,
		Reference: params.Reference,
	}
	m.codes[params.Code] = code
	out := *code
	return &out, nil
}

func (m *mockCodeRepo) GetByCode(_ context.Context, code string) (*model.AccessCode, error) {
	stored, ok := m.codes[code]
	if !ok {
		return nil, apperrors.NotFound("access code not found")
	}
	out := *stored
	return &out, nil
}

func (m *mockCodeRepo) MarkUsed(_ context.Context, code, username string, usedAt time.Time) (*model.AccessCode, error) {
	stored, ok := m.codes[code]
	if !ok {
		return nil, apperrors.NotFound("access code not found")
	}
	if stored.Used {
		return nil, apperrors.Conflict("access code already used")
	}
	stored.Used = true
	stored.UsedBy = &username
	stored.UsedAt = &usedAt
	out := *stored
	return &out, nil
}

func (m *mockCodeRepo) Counts(context.Context) (available, total int, err error) {
	for _, c := range m.codes {
		total++
		if !c.Used {
			available++
		}
	}
	return available, total, nil
}

func newCodeFixture(t *testing.T) (*AccessCodeService, *mockCodeRepo, *mockAccountRepo) {
	t.Helper()

	codes := newMockCodeRepo()
	accounts := newMockAccountRepo()
	svc, err := NewAccessCodeService(AccessCodeServiceOptions{
		Codes:    codes,
		Accounts: accounts,
		Time:     data.NewFixedTimeProvider(authNow),
	})
	require.NoError(t, err)
	return svc, codes, accounts
}

func TestAccessCodeService_Mint(t *testing.T) {
	t.Parallel()
	svc, codes, _ := newCodeFixture(t)

	code, err := svc.Mint(context.Background(), model.PlanSevenMonths, "alice", "ref-1")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), code.Code)
	assert.Equal(t, model.PlanSevenMonths, code.Plan)
	assert.Equal(t, "alice", code.Username)
	assert.False(t, code.Used)
	assert.Len(t, codes.codes, 1)

	_, err = svc.Mint(context.Background(), model.Plan("9"), "alice", "ref-2")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestAccessCodeService_Mint_RetriesOnCollision(t *testing.T) {
	t.Parallel()
	svc, codes, _ := newCodeFixture(t)
	codes.createConflict = 2

	code, err := svc.Mint(context.Background(), model.PlanThreeMonths, "alice", "ref-1")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), code.Code)
}

func TestAccessCodeService_Redeem(t *testing.T) {
	t.Parallel()
	svc, _, accounts := newCodeFixture(t)
	_, err := accounts.Create(context.Background(), &model.Account{Username: "alice", PaymentPending: true})
	require.NoError(t, err)

	minted, err := svc.Mint(context.Background(), model.PlanSevenMonths, "alice", "ref-1")
	require.NoError(t, err)

	res, err := svc.Redeem(context.Background(), &model.RedeemCodeRequest{Username: "alice", Code: minted.Code})
	require.NoError(t, err)
	assert.Equal(t, model.PlanSevenMonths, res.Plan)
	assert.Equal(t, authNow, res.Subscription.StartDate)
	assert.Equal(t, authNow.AddDate(0, 0, 210), res.Subscription.EndDate)

	stored := accounts.accounts["alice"]
	require.NotNil(t, stored.Subscription)
	assert.False(t, stored.PaymentPending)

	// Second redemption is rejected.
	_, err = svc.Redeem(context.Background(), &model.RedeemCodeRequest{Username: "bob", Code: minted.Code})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.Contains(t, err.Error(), "Code already used")
}

func TestAccessCodeService_Redeem_InvalidInputs(t *testing.T) {
	t.Parallel()
	svc, _, _ := newCodeFixture(t)

	_, err := svc.Redeem(context.Background(), &model.RedeemCodeRequest{Username: "alice", Code: "999999"})
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "Invalid code")

	_, err = svc.Redeem(context.Background(), &model.RedeemCodeRequest{Username: "alice", Code: "12345"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestAccessCodeService_MintBatch(t *testing.T) {
	t.Parallel()
	svc, codes, _ := newCodeFixture(t)

	minted, err := svc.MintBatch(context.Background(), 5, model.PlanThreeMonths)
	require.NoError(t, err)
	require.Len(t, minted, 5)
	assert.Len(t, codes.codes, 5)
	for _, code := range minted {
		assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), code)
	}

	_, err = svc.MintBatch(context.Background(), 0, model.PlanThreeMonths)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.MintBatch(context.Background(), 5, model.Plan("9"))
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestAccessCodeService_Counts(t *testing.T) {
	t.Parallel()
	svc, _, accounts := newCodeFixture(t)
	_, err := accounts.Create(context.Background(), &model.Account{Username: "alice"})
	require.NoError(t, err)

	minted, err := svc.MintBatch(context.Background(), 3, model.PlanSevenMonths)
	require.NoError(t, err)

	_, err = svc.Redeem(context.Background(), &model.RedeemCodeRequest{Username: "alice", Code: minted[0]})
	require.NoError(t, err)

	available, total, err := svc.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, available)
	assert.Equal(t, 3, total)
}

func TestAccessCodeService_EnsureSeedCodes(t *testing.T) {
	t.Parallel()
	svc, codes, _ := newCodeFixture(t)

	require.NoError(t, svc.EnsureSeedCodes(context.Background()))
	assert.Len(t, codes.codes, 20)

	// A populated table is left alone.
	require.NoError(t, svc.EnsureSeedCodes(context.Background()))
	assert.Len(t, codes.codes, 20)
}

func TestGenerateAccessCode_Range(t *testing.T) {
	t.Parallel()

	for i := 0; i < 50; i++ {
		code, err := generateAccessCode()
		require.NoError(t, err)
		require.Regexp(t, regexp.MustCompile(`^[1-9]\d{5}$`), code)
	}
}
