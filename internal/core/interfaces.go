package core

import (
	"context"
	"time"

	"github.com/healthquiz/quiz-api/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// AccountRepository defines the interface for account data operations. The
// account, with its embedded sessions and suspension, is the unit of persistence.
type AccountRepository interface {
	Create(ctx context.Context, account *model.Account) (*model.Account, error)
	GetByUsername(ctx context.Context, username string) (*model.Account, error)
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	// Save persists the whole account using a version check. It returns a
	// conflict error when the stored version no longer matches account.Version.
	Save(ctx context.Context, account *model.Account) (*model.Account, error)
	// PurgeExpiredSessions removes sessions idle past the cutoff across all
	// accounts and returns the number of accounts touched.
	PurgeExpiredSessions(ctx context.Context, cutoff time.Time) (int, error)
	// ClearExpiredSuspensions lifts suspensions whose expiry has passed and
	// returns the number of accounts touched.
	ClearExpiredSuspensions(ctx context.Context, now time.Time) (int, error)
}

// AppendSecurityEventParams groups parameters for SecurityEventRepository.Append.
type AppendSecurityEventParams struct {
	Username  string
	EventType model.SecurityEventType
	IP        string
	Details   map[string]any
}

// SecurityEventRepository defines the interface for the append-only audit log.
type SecurityEventRepository interface {
	Append(ctx context.Context, params AppendSecurityEventParams) error
	// CountRecentByType counts events of one type for a username since the cutoff.
	CountRecentByType(ctx context.Context, username string, eventType model.SecurityEventType, since time.Time) (int, error)
	// ListRecent returns the newest events for a username, newest first.
	ListRecent(ctx context.Context, username string, limit int) ([]*model.SecurityEvent, error)
}

// CreateAccessCodeParams groups parameters for AccessCodeRepository.Create.
type CreateAccessCodeParams struct {
	Code      string
	Plan      model.Plan
	Username  string
	Reference string
}

// AccessCodeRepository defines the interface for access code data operations.
type AccessCodeRepository interface {
	Create(ctx context.Context, params CreateAccessCodeParams) (*model.AccessCode, error)
	GetByCode(ctx context.Context, code string) (*model.AccessCode, error)
	// MarkUsed claims an unused code for a username. It returns a conflict
	// error when the code was already used.
	MarkUsed(ctx context.Context, code, username string, usedAt time.Time) (*model.AccessCode, error)
	// Counts returns how many codes are unused and how many exist in total.
	Counts(ctx context.Context) (available, total int, err error)
}

// PaymentRepository defines the interface for verified payment records.
type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) (*model.Payment, error)
	GetByReference(ctx context.Context, reference string) (*model.Payment, error)
	// GetLatestSuccessByUsername returns the newest successful payment for a username.
	GetLatestSuccessByUsername(ctx context.Context, username string) (*model.Payment, error)
}

// LoginThrottle tracks failed login attempts per client and decides when to
// reject further attempts outright.
type LoginThrottle interface {
	// Allow reports whether another attempt is permitted for the key.
	Allow(ctx context.Context, key string) (bool, error)
	// RecordFailure registers a failed attempt for the key.
	RecordFailure(ctx context.Context, key string) error
	// Reset clears the failure count for the key after a successful login.
	Reset(ctx context.Context, key string) error
}

// Mailer sends transactional mail. Implementations must not block on remote
// failures longer than the passed context allows.
type Mailer interface {
	SendAccessCode(ctx context.Context, params SendAccessCodeParams) error
}

// SendAccessCodeParams groups parameters for Mailer.SendAccessCode.
type SendAccessCodeParams struct {
	To       string
	Username string
	Code     string
	Plan     model.Plan
}
