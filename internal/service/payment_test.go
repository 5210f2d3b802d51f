package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthquiz/quiz-api/internal/adapters/paystack"
	"github.com/healthquiz/quiz-api/internal/core"
	"github.com/healthquiz/quiz-api/internal/data"
	"github.com/healthquiz/quiz-api/internal/domain/model"
	apperrors "github.com/healthquiz/quiz-api/internal/errors"
)

// mockPaymentRepo is an in-memory payment store keyed by reference.
type mockPaymentRepo struct {
	payments map[string]*model.Payment
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{payments: make(map[string]*model.Payment)}
}

func (m *mockPaymentRepo) Create(_ context.Context, payment *model.Payment) (*model.Payment, error) {
	if _, ok := m.payments[payment.Reference]; ok {
		return nil, apperrors.Conflict("payment reference already recorded")
	}
	out := *payment
	m.payments[payment.Reference] = &out
	copied := out
	return &copied, nil
}

func (m *mockPaymentRepo) GetByReference(_ context.Context, reference string) (*model.Payment, error) {
	stored, ok := m.payments[reference]
	if !ok {
		return nil, apperrors.NotFound("payment not found")
	}
	out := *stored
	return &out, nil
}

func (m *mockPaymentRepo) GetLatestSuccessByUsername(_ context.Context, username string) (*model.Payment, error) {
	for _, p := range m.payments {
		if p.Username == username && p.Status == model.PaymentStatusSuccess {
			out := *p
			return &out, nil
		}
	}
	return nil, apperrors.NotFound("payment not found")
}

// mockGateway controls signature and verification outcomes.
type mockGateway struct {
	signatureOK bool
	verify      *paystack.VerifyData
	verifyErr   error
	verifiedRef string
}

func (m *mockGateway) VerifySignature(string, []byte) bool { return m.signatureOK }

func (m *mockGateway) VerifyTransaction(_ context.Context, reference string) (*paystack.VerifyData, error) {
	m.verifiedRef = reference
	return m.verify, m.verifyErr
}

// mockMailer captures sent access code mails.
type mockMailer struct {
	sent []core.SendAccessCodeParams
}

func (m *mockMailer) SendAccessCode(_ context.Context, params core.SendAccessCodeParams) error {
	m.sent = append(m.sent, params)
	return nil
}

type paymentFixture struct {
	svc      *PaymentService
	payments *mockPaymentRepo
	accounts *mockAccountRepo
	codes    *mockCodeRepo
	gateway  *mockGateway
	mailer   *mockMailer
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()

	payments := newMockPaymentRepo()
	accounts := newMockAccountRepo()
	codes := newMockCodeRepo()
	gateway := &mockGateway{
		signatureOK: true,
		verify: &paystack.VerifyData{
			Status:   "success",
			Amount:   500000,
			Currency: "NGN",
			Customer: paystack.Customer{Email: "alice@example.com"},
		},
	}
	mailer := &mockMailer{}

	codeSvc, err := NewAccessCodeService(AccessCodeServiceOptions{
		Codes:    codes,
		Accounts: accounts,
		Time:     data.NewFixedTimeProvider(authNow),
	})
	require.NoError(t, err)

	svc, err := NewPaymentService(PaymentServiceOptions{
		Payments: payments,
		Accounts: accounts,
		Codes:    codeSvc,
		Gateway:  gateway,
		Mailer:   mailer,
		Time:     data.NewFixedTimeProvider(authNow),
	})
	require.NoError(t, err)

	return &paymentFixture{svc: svc, payments: payments, accounts: accounts, codes: codes, gateway: gateway, mailer: mailer}
}

func chargeBody(t *testing.T, reference, email string, metadata any) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"event": "charge.success",
		"data": map[string]any{
			"reference": reference,
			"amount":    500000,
			"customer":  map[string]any{"email": email},
			"metadata":  metadata,
		},
	})
	require.NoError(t, err)
	return body
}

func TestPaymentService_HandleWebhook(t *testing.T) {
	t.Parallel()
	f := newPaymentFixture(t)
	_, err := f.accounts.Create(context.Background(), &model.Account{Username: "alice", Email: "alice@example.com", PaymentPending: true})
	require.NoError(t, err)

	metadata := map[string]any{
		"custom_fields": []any{
			map[string]any{"variable_name": "user", "value": "alice"},
			map[string]any{"variable_name": "plan", "value": "7 months"},
		},
	}

	err = f.svc.HandleWebhook(context.Background(), "sig", chargeBody(t, "ref-100", "alice@example.com", metadata))
	require.NoError(t, err)
	assert.Equal(t, "ref-100", f.gateway.verifiedRef)

	payment := f.payments.payments["ref-100"]
	require.NotNil(t, payment)
	assert.Equal(t, "alice", payment.Username)
	assert.Equal(t, model.PlanSevenMonths, payment.Plan)
	assert.Equal(t, model.PaymentStatusSuccess, payment.Status)

	stored := f.accounts.accounts["alice"]
	require.NotNil(t, stored.Subscription)
	assert.Equal(t, model.PlanSevenMonths, stored.Subscription.Plan)
	assert.Equal(t, authNow.AddDate(0, 0, 210), stored.Subscription.EndDate)
	assert.False(t, stored.PaymentPending)

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "alice@example.com", f.mailer.sent[0].To)
	assert.Len(t, f.mailer.sent[0].Code, 6)
	assert.Len(t, f.codes.codes, 1)
}

func TestPaymentService_HandleWebhook_BadSignature(t *testing.T) {
	t.Parallel()
	f := newPaymentFixture(t)
	f.gateway.signatureOK = false

	err := f.svc.HandleWebhook(context.Background(), "bad", chargeBody(t, "ref-1", "alice@example.com", nil))
	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthorized(err))
	assert.Empty(t, f.payments.payments)
}

func TestPaymentService_HandleWebhook_IgnoresOtherEvents(t *testing.T) {
	t.Parallel()
	f := newPaymentFixture(t)

	body, err := json.Marshal(map[string]any{"event": "transfer.success", "data": map[string]any{"reference": "ref-1"}})
	require.NoError(t, err)

	require.NoError(t, f.svc.HandleWebhook(context.Background(), "sig", body))
	assert.Empty(t, f.gateway.verifiedRef)
	assert.Empty(t, f.payments.payments)
}

func TestPaymentService_HandleWebhook_DuplicateReference(t *testing.T) {
	t.Parallel()
	f := newPaymentFixture(t)
	_, err := f.accounts.Create(context.Background(), &model.Account{Username: "alice", Email: "alice@example.com"})
	require.NoError(t, err)

	body := chargeBody(t, "ref-1", "alice@example.com", nil)
	require.NoError(t, f.svc.HandleWebhook(context.Background(), "sig", body))
	require.NoError(t, f.svc.HandleWebhook(context.Background(), "sig", body))

	assert.Len(t, f.payments.payments, 1)
	assert.Len(t, f.codes.codes, 1)
	assert.Len(t, f.mailer.sent, 1)
}

func TestPaymentService_HandleWebhook_UnsuccessfulTransaction(t *testing.T) {
	t.Parallel()
	f := newPaymentFixture(t)
	f.gateway.verify.Status = "failed"

	err := f.svc.HandleWebhook(context.Background(), "sig", chargeBody(t, "ref-1", "alice@example.com", nil))
	require.NoError(t, err)
	assert.Empty(t, f.payments.payments)
}

func TestPaymentService_HandleWebhook_UsernameFallsBackToEmail(t *testing.T) {
	t.Parallel()
	f := newPaymentFixture(t)
	_, err := f.accounts.Create(context.Background(), &model.Account{Username: "alice", Email: "alice@example.com"})
	require.NoError(t, err)

	// No metadata at all: the email local part identifies the account and the
	// plan defaults to three months.
	require.NoError(t, f.svc.HandleWebhook(context.Background(), "sig", chargeBody(t, "ref-1", "alice@example.com", nil)))

	payment := f.payments.payments["ref-1"]
	require.NotNil(t, payment)
	assert.Equal(t, "alice", payment.Username)
	assert.Equal(t, model.PlanThreeMonths, payment.Plan)
}

func TestPaymentService_HandleWebhook_UnknownAccount(t *testing.T) {
	t.Parallel()
	f := newPaymentFixture(t)

	err := f.svc.HandleWebhook(context.Background(), "sig", chargeBody(t, "ref-1", "ghost@example.com", nil))
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestPaymentService_GenerateCode(t *testing.T) {
	t.Parallel()
	f := newPaymentFixture(t)
	f.payments.payments["ref-1"] = &model.Payment{
		Reference: "ref-1",
		Username:  "alice",
		Email:     "alice@example.com",
		Status:    model.PaymentStatusSuccess,
	}

	code, err := f.svc.GenerateCode(context.Background(), model.PlanThreeMonths, "alice")
	require.NoError(t, err)
	assert.Len(t, code.Code, 6)
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "alice@example.com", f.mailer.sent[0].To)

	// No payment history: the code is minted but nothing is mailed.
	code, err = f.svc.GenerateCode(context.Background(), model.PlanThreeMonths, "bob")
	require.NoError(t, err)
	assert.NotEmpty(t, code.Code)
	assert.Len(t, f.mailer.sent, 1)
}

func TestPaymentService_PaymentStatus(t *testing.T) {
	t.Parallel()
	f := newPaymentFixture(t)
	f.payments.payments["ref-1"] = &model.Payment{Reference: "ref-1", Status: model.PaymentStatusSuccess}

	payment, err := f.svc.PaymentStatus(context.Background(), "ref-1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusSuccess, payment.Status)

	_, err = f.svc.PaymentStatus(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}
