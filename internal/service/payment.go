package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/healthquiz/quiz-api/internal/adapters/paystack"
	"github.com/healthquiz/quiz-api/internal/core"
	"github.com/healthquiz/quiz-api/internal/data"
	"github.com/healthquiz/quiz-api/internal/domain/model"
	apperrors "github.com/healthquiz/quiz-api/internal/errors"
)

// Gateway is the payment-provider surface the service needs.
type Gateway interface {
	VerifySignature(signature string, body []byte) bool
	VerifyTransaction(ctx context.Context, reference string) (*paystack.VerifyData, error)
}

// Metadata custom fields arrive as a list of {variable_name, value} objects.
const (
	metadataUserExpr = "custom_fields[?variable_name=='user'].value | [0]"
	metadataPlanExpr = "custom_fields[?variable_name=='plan'].value | [0]"
)

// PaymentServiceOptions groups dependencies for PaymentService.
type PaymentServiceOptions struct {
	Payments core.PaymentRepository // Required: payment records
	Accounts core.AccountRepository // Required: account repository
	Codes    *AccessCodeService     // Required: code minting
	Gateway  Gateway                // Required: payment gateway client
	Mailer   core.Mailer            // Optional: access code mail
	Time     data.TimeProvider      // Optional: defaults to real time
	Logger   *slog.Logger           // Optional: structured logger
}

// PaymentService processes verified gateway payments: it records the payment,
// mints an access code, grants the subscription and mails the code out.
type PaymentService struct {
	payments core.PaymentRepository
	accounts core.AccountRepository
	codes    *AccessCodeService
	gateway  Gateway
	mailer   core.Mailer
	time     data.TimeProvider
	logger   *slog.Logger
}

// NewPaymentService constructs a new PaymentService.
func NewPaymentService(opts PaymentServiceOptions) (*PaymentService, error) {
	if opts.Payments == nil {
		return nil, errors.New("PaymentRepository is required")
	}
	if opts.Accounts == nil {
		return nil, errors.New("AccountRepository is required")
	}
	if opts.Codes == nil {
		return nil, errors.New("AccessCodeService is required")
	}
	if opts.Gateway == nil {
		return nil, errors.New("payment gateway is required")
	}

	tp := opts.Time
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "payment_service")
	}

	return &PaymentService{
		payments: opts.Payments,
		accounts: opts.Accounts,
		codes:    opts.Codes,
		gateway:  opts.Gateway,
		mailer:   opts.Mailer,
		time:     tp,
		logger:   logger,
	}, nil
}

type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Customer  struct {
			Email string `json:"email"`
		} `json:"customer"`
		Metadata any `json:"metadata"`
	} `json:"data"`
}

// HandleWebhook processes one raw gateway webhook delivery. Non-charge events
// and replayed references are acknowledged without side effects.
func (s *PaymentService) HandleWebhook(ctx context.Context, signature string, body []byte) error {
	if !s.gateway.VerifySignature(signature, body) {
		return apperrors.Unauthorized("invalid webhook signature")
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return apperrors.Validation("malformed webhook payload")
	}
	if event.Event != "charge.success" {
		return nil
	}
	reference := event.Data.Reference
	if reference == "" {
		return apperrors.Validation("webhook payload missing reference")
	}

	// Never trust the webhook body alone; confirm with the gateway API.
	verified, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		return fmt.Errorf("verify transaction: %w", err)
	}
	if verified.Status != "success" {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "webhook for unsuccessful transaction",
				"reference", reference, "status", verified.Status)
		}
		return nil
	}

	username, plan := s.extractMetadata(event.Data.Metadata, verified.Customer.Email)
	acct, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NotFoundf("no account for payment: %s", username)
		}
		return err
	}

	if _, err := s.payments.GetByReference(ctx, reference); err == nil {
		if s.logger != nil {
			s.logger.InfoContext(ctx, "duplicate webhook ignored", "reference", reference)
		}
		return nil
	} else if !apperrors.IsNotFound(err) {
		return err
	}

	now := s.time.Now().UTC()
	payment := &model.Payment{
		Reference: reference,
		Username:  username,
		Email:     verified.Customer.Email,
		Amount:    verified.Amount,
		Currency:  verified.Currency,
		Plan:      plan,
		Status:    model.PaymentStatusSuccess,
		CreatedAt: now,
	}
	if _, err := s.payments.Create(ctx, payment); err != nil {
		if apperrors.IsConflict(err) {
			// Two deliveries raced; the other one won.
			return nil
		}
		return err
	}

	code, err := s.codes.Mint(ctx, plan, username, reference)
	if err != nil {
		return fmt.Errorf("mint access code: %w", err)
	}

	sub := &model.Subscription{
		Plan:      plan,
		StartDate: now,
		EndDate:   now.AddDate(0, 0, plan.SubscriptionDays()),
	}
	for attempt := 0; ; attempt++ {
		acct.Subscription = sub
		acct.PaymentPending = false
		if _, err := s.accounts.Save(ctx, acct); err != nil {
			if errors.Is(err, data.ErrVersionConflict) && attempt < saveRetries-1 {
				if acct, err = s.accounts.GetByUsername(ctx, username); err != nil {
					return err
				}
				continue
			}
			return err
		}
		break
	}

	s.mailCode(ctx, verified.Customer.Email, username, code)

	if s.logger != nil {
		s.logger.InfoContext(ctx, "payment processed",
			"reference", reference,
			"username", username,
			"plan", plan,
		)
	}
	return nil
}

// GenerateCode mints a code on demand (admin flow) and mails it to the
// username's latest successful payment address when one exists.
func (s *PaymentService) GenerateCode(ctx context.Context, plan model.Plan, username string) (*model.AccessCode, error) {
	code, err := s.codes.Mint(ctx, plan, username, "")
	if err != nil {
		return nil, err
	}

	if username != "" {
		payment, err := s.payments.GetLatestSuccessByUsername(ctx, username)
		if err == nil {
			s.mailCode(ctx, payment.Email, username, code)
		} else if !apperrors.IsNotFound(err) {
			return nil, err
		}
	}
	return code, nil
}

// PaymentStatus reports whether a reference has been processed and its outcome.
func (s *PaymentService) PaymentStatus(ctx context.Context, reference string) (*model.Payment, error) {
	return s.payments.GetByReference(ctx, reference)
}

// extractMetadata pulls the username and plan out of gateway metadata,
// falling back to the customer email's local part and the three month plan.
func (s *PaymentService) extractMetadata(metadata any, customerEmail string) (string, model.Plan) {
	username := ""
	planRaw := ""

	if metadata != nil {
		if v, err := jmespath.Search(metadataUserExpr, metadata); err == nil {
			if str, ok := v.(string); ok {
				username = str
			}
		}
		if v, err := jmespath.Search(metadataPlanExpr, metadata); err == nil {
			if str, ok := v.(string); ok {
				planRaw = str
			}
		}
	}

	if username == "" {
		username, _, _ = strings.Cut(customerEmail, "@")
	}

	plan := model.PlanThreeMonths
	if strings.Contains(planRaw, "7") {
		plan = model.PlanSevenMonths
	}
	return username, plan
}

func (s *PaymentService) mailCode(ctx context.Context, email, username string, code *model.AccessCode) {
	if s.mailer == nil || email == "" {
		return
	}
	err := s.mailer.SendAccessCode(ctx, core.SendAccessCodeParams{
		To:       email,
		Username: username,
		Code:     code.Code,
		Plan:     code.Plan,
	})
	if err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "access code mail failed",
			"username", username,
			"error", err,
		)
	}
}
