package bootstrap

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/healthquiz/quiz-api/config"
	"github.com/healthquiz/quiz-api/internal/adapters/paystack"
	redisadapter "github.com/healthquiz/quiz-api/internal/adapters/redis"
	"github.com/healthquiz/quiz-api/internal/adapters/smtp"
	"github.com/healthquiz/quiz-api/internal/core"
	"github.com/healthquiz/quiz-api/internal/data"
	"github.com/healthquiz/quiz-api/internal/domain/quiz"
	"github.com/healthquiz/quiz-api/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Auth     *service.AuthService
	Quiz     *service.QuizService
	Codes    *service.AccessCodeService
	Payments *service.PaymentService
	Sweeper  *service.SweeperService
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices builds every service with its repositories and adapters.
func NewServices(deps *ServiceDeps) (*ServiceContainer, error) {
	cfg := deps.Config

	accountRepo := data.NewAccountRepo(deps.DB)
	eventRepo := data.NewSecurityEventRepo(deps.DB)
	codeRepo := data.NewAccessCodeRepo(deps.DB)
	paymentRepo := data.NewPaymentRepo(deps.DB)

	var throttle core.LoginThrottle
	if cfg.Security.ThrottleEnabled && deps.RedisClient != nil {
		throttle = redisadapter.NewLoginThrottle(deps.RedisClient, redisadapter.LoginThrottleOptions{
			MaxAttempts: cfg.Security.ThrottleMaxAttempts,
			Window:      cfg.Security.ThrottleWindow,
		})
	}

	authSvc, err := service.NewAuthService(service.AuthServiceOptions{
		Accounts: accountRepo,
		Events:   eventRepo,
		Throttle: throttle,
		Logger:   deps.Logger,
		Security: cfg.Security,
	})
	if err != nil {
		return nil, fmt.Errorf("build auth service: %w", err)
	}

	bank, err := quiz.Load()
	if err != nil {
		return nil, fmt.Errorf("load question bank: %w", err)
	}
	quizSvc, err := service.NewQuizService(service.QuizServiceOptions{Bank: bank})
	if err != nil {
		return nil, fmt.Errorf("build quiz service: %w", err)
	}

	codeSvc, err := service.NewAccessCodeService(service.AccessCodeServiceOptions{
		Codes:    codeRepo,
		Accounts: accountRepo,
		Logger:   deps.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build access code service: %w", err)
	}

	var paymentSvc *service.PaymentService
	if cfg.Paystack.Enabled() {
		var mailer core.Mailer
		if cfg.SMTP.Enabled() {
			mailer = smtp.NewMailer(cfg.SMTP)
		} else if deps.Logger != nil {
			deps.Logger.Warn("SMTP not configured, access codes will not be mailed")
		}

		paymentSvc, err = service.NewPaymentService(service.PaymentServiceOptions{
			Payments: paymentRepo,
			Accounts: accountRepo,
			Codes:    codeSvc,
			Gateway:  paystack.NewClient(cfg.Paystack),
			Mailer:   mailer,
			Logger:   deps.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("build payment service: %w", err)
		}
	} else if deps.Logger != nil {
		deps.Logger.Warn("paystack not configured, payment routes disabled")
	}

	sweeperSvc, err := service.NewSweeperService(service.SweeperServiceOptions{
		Accounts: accountRepo,
		Config:   cfg.Sweeper,
		Logger:   deps.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build sweeper service: %w", err)
	}

	return &ServiceContainer{
		Auth:     authSvc,
		Quiz:     quizSvc,
		Codes:    codeSvc,
		Payments: paymentSvc,
		Sweeper:  sweeperSvc,
	}, nil
}
