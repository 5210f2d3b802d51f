package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/healthquiz/quiz-api/internal/core"
	"github.com/healthquiz/quiz-api/internal/data"
	"github.com/healthquiz/quiz-api/internal/domain/model"
	apperrors "github.com/healthquiz/quiz-api/internal/errors"
)

const (
	// mintRetries bounds retries when a generated code collides with an existing one.
	mintRetries = 5
	// maxBatchSize caps one admin generate-codes request.
	maxBatchSize = 100
	// seedCodesPerPlan is the starter batch minted per plan on an empty table.
	seedCodesPerPlan = 10
)

// AccessCodeServiceOptions groups dependencies for AccessCodeService.
type AccessCodeServiceOptions struct {
	Codes    core.AccessCodeRepository // Required: access code repository
	Accounts core.AccountRepository    // Required: account repository
	Time     data.TimeProvider         // Optional: defaults to real time
	Logger   *slog.Logger              // Optional: structured logger
}

// AccessCodeService mints single-use six digit access codes and redeems them
// into account subscriptions.
type AccessCodeService struct {
	codes    core.AccessCodeRepository
	accounts core.AccountRepository
	time     data.TimeProvider
	logger   *slog.Logger
}

// NewAccessCodeService constructs a new AccessCodeService.
func NewAccessCodeService(opts AccessCodeServiceOptions) (*AccessCodeService, error) {
	if opts.Codes == nil {
		return nil, errors.New("AccessCodeRepository is required")
	}
	if opts.Accounts == nil {
		return nil, errors.New("AccountRepository is required")
	}

	tp := opts.Time
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "access_code_service")
	}

	return &AccessCodeService{
		codes:    opts.Codes,
		accounts: opts.Accounts,
		time:     tp,
		logger:   logger,
	}, nil
}

// Mint creates a fresh unused code, regenerating on the rare collision.
func (s *AccessCodeService) Mint(ctx context.Context, plan model.Plan, username, reference string) (*model.AccessCode, error) {
	if !plan.Valid() {
		return nil, apperrors.ValidationField("plan", "invalid plan, use 3 or 7")
	}

	var lastErr error
	for i := 0; i < mintRetries; i++ {
		code, err := generateAccessCode()
		if err != nil {
			return nil, fmt.Errorf("generate access code: %w", err)
		}
		created, err := s.codes.Create(ctx, core.CreateAccessCodeParams{
			Code:      code,
			Plan:      plan,
			Username:  username,
			Reference: reference,
		})
		if err == nil {
			return created, nil
		}
		if !apperrors.IsConflict(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("mint access code: %w", lastErr)
}

// MintBatch creates count fresh codes of one plan and returns them in order.
func (s *AccessCodeService) MintBatch(ctx context.Context, count int, plan model.Plan) ([]string, error) {
	if count < 1 || count > maxBatchSize {
		return nil, apperrors.ValidationField("count", fmt.Sprintf("count must be between 1 and %d", maxBatchSize))
	}
	if !plan.Valid() {
		return nil, apperrors.ValidationField("plan", "invalid plan, use 3 or 7")
	}

	codes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		created, err := s.Mint(ctx, plan, "", "")
		if err != nil {
			return nil, err
		}
		codes = append(codes, created.Code)
	}
	return codes, nil
}

// Counts reports how many codes are still redeemable and how many exist.
func (s *AccessCodeService) Counts(ctx context.Context) (available, total int, err error) {
	return s.codes.Counts(ctx)
}

// EnsureSeedCodes mints a starter batch of codes for each plan when the table
// is empty, so a fresh deployment has codes to hand out immediately.
func (s *AccessCodeService) EnsureSeedCodes(ctx context.Context) error {
	_, total, err := s.codes.Counts(ctx)
	if err != nil {
		return fmt.Errorf("count access codes: %w", err)
	}
	if total > 0 {
		return nil
	}

	for _, plan := range []model.Plan{model.PlanThreeMonths, model.PlanSevenMonths} {
		if _, err := s.MintBatch(ctx, seedCodesPerPlan, plan); err != nil {
			return fmt.Errorf("seed %s-month codes: %w", plan, err)
		}
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "seeded initial access codes", "per_plan", seedCodesPerPlan)
	}
	return nil
}

// RedeemResult is the outcome of a successful code redemption.
type RedeemResult struct {
	Plan         model.Plan
	Subscription *model.Subscription
}

// Redeem claims a code for an account and grants the plan's subscription.
func (s *AccessCodeService) Redeem(ctx context.Context, req *model.RedeemCodeRequest) (*RedeemResult, error) {
	if req == nil {
		return nil, errors.New("redeem code request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	code, err := s.codes.GetByCode(ctx, req.Code)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NotFound("Invalid code")
		}
		return nil, err
	}
	if code.Used {
		return nil, apperrors.Conflict("Code already used")
	}

	now := s.time.Now().UTC()
	claimed, err := s.codes.MarkUsed(ctx, req.Code, req.Username, now)
	if err != nil {
		if apperrors.IsConflict(err) {
			return nil, apperrors.Conflict("Code already used")
		}
		return nil, err
	}

	sub := &model.Subscription{
		Plan:      claimed.Plan,
		StartDate: now,
		EndDate:   now.AddDate(0, 0, claimed.Plan.SubscriptionDays()),
	}

	for attempt := 0; ; attempt++ {
		acct, err := s.accounts.GetByUsername(ctx, req.Username)
		if err != nil {
			return nil, err
		}
		acct.Subscription = sub
		acct.PaymentPending = false
		if _, err := s.accounts.Save(ctx, acct); err != nil {
			if errors.Is(err, data.ErrVersionConflict) && attempt < saveRetries-1 {
				continue
			}
			return nil, err
		}
		break
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "access code redeemed",
			"username", req.Username,
			"plan", claimed.Plan,
		)
	}
	return &RedeemResult{Plan: claimed.Plan, Subscription: sub}, nil
}

// generateAccessCode returns a uniformly random six digit numeric code.
func generateAccessCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
