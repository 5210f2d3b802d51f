package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/healthquiz/quiz-api/config"
	"github.com/healthquiz/quiz-api/internal/core"
	"github.com/healthquiz/quiz-api/internal/data"
	"github.com/healthquiz/quiz-api/internal/domain/model"
	"github.com/healthquiz/quiz-api/internal/domain/security"
	apperrors "github.com/healthquiz/quiz-api/internal/errors"
)

// saveRetries bounds the optimistic-version retry loop on account writes.
const saveRetries = 3

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Accounts core.AccountRepository       // Required: account repository
	Events   core.SecurityEventRepository // Required: security audit log
	Throttle core.LoginThrottle           // Optional: failed-login throttle
	Time     data.TimeProvider            // Optional: defaults to real time
	Logger   *slog.Logger                 // Optional: structured logger
	Security config.SecurityConfig        // Hashing and throttle settings
}

// AuthService manages the account and session lifecycle: registration, login
// with suspicious-activity evaluation, session validation, logout, and the
// admin view of the security audit log.
type AuthService struct {
	accounts core.AccountRepository
	events   core.SecurityEventRepository
	throttle core.LoginThrottle
	time     data.TimeProvider
	logger   *slog.Logger
	security config.SecurityConfig
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	if opts.Accounts == nil {
		return nil, errors.New("AccountRepository is required")
	}
	if opts.Events == nil {
		return nil, errors.New("SecurityEventRepository is required")
	}

	tp := opts.Time
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "auth_service")
	}

	return &AuthService{
		accounts: opts.Accounts,
		events:   opts.Events,
		throttle: opts.Throttle,
		time:     tp,
		logger:   logger,
		security: opts.Security,
	}, nil
}

// Register creates a new account with a bcrypt password hash.
func (s *AuthService) Register(ctx context.Context, req *model.CreateAccountRequest) (*model.Account, error) {
	if req == nil {
		return nil, errors.New("create account request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	cost := s.security.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	maxSessions := s.security.MaxSessions
	if maxSessions == 0 {
		maxSessions = 3
	}

	acct, err := s.accounts.Create(ctx, &model.Account{
		Username:     req.Username,
		PasswordHash: string(hash),
		Email:        req.Email,
		CreatedAt:    s.time.Now().UTC(),
		MaxSessions:  maxSessions,
	})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "account registered", "username", acct.Username)
	}
	return acct, nil
}

// LoginParams groups parameters for Login.
type LoginParams struct {
	Username  string
	Password  string
	IP        string
	UserAgent string
}

// LoginResult is the outcome of a successful (possibly warned) login.
type LoginResult struct {
	SessionID            string
	Warning              bool
	Message              string
	TerminatedSessionIDs []string
	Account              *model.Account
}

// Login verifies credentials, runs the suspicious-activity evaluation, merges
// the new session into the account's session list, and persists the account
// under an optimistic version check. A version conflict reloads and retries.
func (s *AuthService) Login(ctx context.Context, params LoginParams) (*LoginResult, error) {
	throttleKey := params.IP + ":" + params.Username
	if s.throttle != nil {
		allowed, err := s.throttle.Allow(ctx, throttleKey)
		if err != nil {
			// Throttle outages must not take logins down with them.
			s.logWarn(ctx, "login throttle check failed", "error", err)
		} else if !allowed {
			return nil, apperrors.Throttled("too many failed login attempts, try again later")
		}
	}

	acct, err := s.accounts.GetByUsername(ctx, params.Username)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.recordFailure(ctx, throttleKey)
			return nil, apperrors.Unauthorized("Invalid credentials")
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(params.Password)) != nil {
		s.recordFailure(ctx, throttleKey)
		return nil, apperrors.Unauthorized("Invalid credentials")
	}

	fingerprint := DeviceFingerprint(params.UserAgent)

	var result *LoginResult
	for attempt := 0; ; attempt++ {
		result, err = s.tryLogin(ctx, acct, params, fingerprint)
		if err == nil {
			break
		}
		if !errors.Is(err, data.ErrVersionConflict) || attempt >= saveRetries-1 {
			return nil, err
		}
		if acct, err = s.accounts.GetByUsername(ctx, params.Username); err != nil {
			return nil, err
		}
	}

	if s.throttle != nil {
		if err := s.throttle.Reset(ctx, throttleKey); err != nil {
			s.logWarn(ctx, "login throttle reset failed", "error", err)
		}
	}
	return result, nil
}

// tryLogin performs one evaluate-merge-save pass against a loaded account.
func (s *AuthService) tryLogin(ctx context.Context, acct *model.Account, params LoginParams, fingerprint string) (*LoginResult, error) {
	now := s.time.Now().UTC()

	// A lapsed suspension clears on the next login attempt.
	acct.ClearExpiredSuspension(now)
	if acct.IsSuspendedAt(now) {
		return nil, apperrors.Forbidden(security.SuspendedMessage(acct.Suspension.Expiry))
	}

	acct.PurgeExpiredSessions(now, security.SessionTimeout)

	sessionID, err := NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	newSession := model.Session{
		SessionID:         sessionID,
		LoginTime:         now,
		LastActive:        now,
		IP:                params.IP,
		UserAgent:         params.UserAgent,
		DeviceFingerprint: fingerprint,
	}

	sessWarnings, err := s.events.CountRecentByType(ctx, acct.Username, model.SecurityEventMultipleSessions, now.Add(-security.WarningWindow))
	if err != nil {
		return nil, err
	}
	locWarnings, err := s.events.CountRecentByType(ctx, acct.Username, model.SecurityEventMultipleLocations, now.Add(-security.WarningWindow))
	if err != nil {
		return nil, err
	}

	assessment := security.Evaluate(security.Input{
		ActiveSessions:         acct.ActiveSessions,
		New:                    newSession,
		Now:                    now,
		RecentSessionWarnings:  sessWarnings,
		RecentLocationWarnings: locWarnings,
	})

	if assessment.Decision.Kind == security.DecisionDeny {
		acct.Suspension = assessment.Suspension
		if assessment.ClearSessions {
			acct.ClearSessions()
		}
		if _, err := s.accounts.Save(ctx, acct); err != nil {
			return nil, err
		}
		s.appendEvent(ctx, acct.Username, params.IP, assessment.Event)
		if s.logger != nil {
			s.logger.WarnContext(ctx, "account suspended",
				"username", acct.Username,
				"reason", assessment.Suspension.Reason,
			)
		}
		return nil, apperrors.Forbidden(assessment.Decision.Message)
	}

	// Session merge: same-device logins supersede their older fingerprint
	// twins silently; a genuinely new device evicts everything else and the
	// evicted IDs are reported back to the caller.
	var terminated []string
	sameDevice := false
	for _, sess := range acct.ActiveSessions {
		if sess.DeviceFingerprint == fingerprint {
			sameDevice = true
			break
		}
	}
	if sameDevice {
		acct.RemoveSessionsByFingerprint(fingerprint)
	} else {
		terminated = acct.ClearSessions()
	}
	acct.ActiveSessions = append(acct.ActiveSessions, newSession)

	saved, err := s.accounts.Save(ctx, acct)
	if err != nil {
		return nil, err
	}
	s.appendEvent(ctx, acct.Username, params.IP, assessment.Event)

	result := &LoginResult{
		SessionID:            sessionID,
		TerminatedSessionIDs: terminated,
		Message:              "Login successful",
		Account:              saved,
	}
	if assessment.Decision.Kind == security.DecisionAllowWithWarning {
		result.Warning = true
		result.Message = assessment.Decision.Message
	}
	return result, nil
}

// ValidateResult is the outcome of a session validation.
type ValidateResult struct {
	Valid     bool
	Suspended bool
	Message   string
	Account   *model.Account
}

// ValidateSession checks a session, bumping its last-active time when valid.
// Expired suspensions and sessions are cleaned up opportunistically.
func (s *AuthService) ValidateSession(ctx context.Context, username, sessionID string) (*ValidateResult, error) {
	for attempt := 0; ; attempt++ {
		res, err := s.tryValidate(ctx, username, sessionID)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, data.ErrVersionConflict) || attempt >= saveRetries-1 {
			return nil, err
		}
	}
}

func (s *AuthService) tryValidate(ctx context.Context, username, sessionID string) (*ValidateResult, error) {
	acct, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, err
	}

	now := s.time.Now().UTC()
	dirty := acct.ClearExpiredSuspension(now)

	if acct.IsSuspendedAt(now) {
		if dirty {
			if _, err := s.accounts.Save(ctx, acct); err != nil {
				return nil, err
			}
		}
		return &ValidateResult{
			Valid:     false,
			Suspended: true,
			Message:   security.SuspendedMessage(acct.Suspension.Expiry),
		}, nil
	}

	if acct.PurgeExpiredSessions(now, security.SessionTimeout) > 0 {
		dirty = true
	}

	sess := acct.FindSession(sessionID)
	if sess == nil {
		if dirty {
			if _, err := s.accounts.Save(ctx, acct); err != nil {
				return nil, err
			}
		}
		return &ValidateResult{Valid: false, Message: "Invalid or expired session"}, nil
	}

	sess.LastActive = now
	saved, err := s.accounts.Save(ctx, acct)
	if err != nil {
		return nil, err
	}
	return &ValidateResult{Valid: true, Account: saved}, nil
}

// Logout removes the matching session. Logging out an already-absent session
// is not an error; an unknown username is.
func (s *AuthService) Logout(ctx context.Context, username, sessionID string) error {
	for attempt := 0; ; attempt++ {
		err := s.tryLogout(ctx, username, sessionID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, data.ErrVersionConflict) || attempt >= saveRetries-1 {
			return err
		}
	}
}

func (s *AuthService) tryLogout(ctx context.Context, username, sessionID string) error {
	acct, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NotFound("User not found")
		}
		return err
	}
	if !acct.RemoveSession(sessionID) {
		return nil
	}
	_, err = s.accounts.Save(ctx, acct)
	return err
}

// LogoutOthersResult is the outcome of a logout-other-devices request.
type LogoutOthersResult struct {
	TerminatedCount int
}

// LogoutOthers removes every session except the one kept and records the
// eviction in the audit log.
func (s *AuthService) LogoutOthers(ctx context.Context, username, keepSessionID, ip string) (*LogoutOthersResult, error) {
	for attempt := 0; ; attempt++ {
		res, err := s.tryLogoutOthers(ctx, username, keepSessionID, ip)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, data.ErrVersionConflict) || attempt >= saveRetries-1 {
			return nil, err
		}
	}
}

func (s *AuthService) tryLogoutOthers(ctx context.Context, username, keepSessionID, ip string) (*LogoutOthersResult, error) {
	acct, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, err
	}

	// A keep ID matching no live session terminates everything, which is the
	// safe direction for an anti-sharing control.
	now := s.time.Now().UTC()
	acct.PurgeExpiredSessions(now, security.SessionTimeout)
	removed := acct.RetainSession(keepSessionID)
	if _, err := s.accounts.Save(ctx, acct); err != nil {
		return nil, err
	}

	s.appendEvent(ctx, username, ip, &security.EventRecord{
		Type: model.SecurityEventLogoutOthers,
		Details: map[string]any{
			"terminated_count": len(removed),
		},
	})
	return &LogoutOthersResult{TerminatedCount: len(removed)}, nil
}

// Profile returns the account for display. A lapsed subscription is cleared
// on read so clients never see a stale paid status.
func (s *AuthService) Profile(ctx context.Context, username string) (*model.Account, error) {
	for attempt := 0; ; attempt++ {
		acct, err := s.tryProfile(ctx, username)
		if err == nil {
			return acct, nil
		}
		if !errors.Is(err, data.ErrVersionConflict) || attempt >= saveRetries-1 {
			return nil, err
		}
	}
}

func (s *AuthService) tryProfile(ctx context.Context, username string) (*model.Account, error) {
	acct, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, err
	}

	if acct.ClearExpiredSubscription(s.time.Now().UTC()) {
		return s.accounts.Save(ctx, acct)
	}
	return acct, nil
}

// SecurityLog returns the newest audit events for a username, newest first.
func (s *AuthService) SecurityLog(ctx context.Context, username string, limit int) ([]*model.SecurityEvent, error) {
	return s.events.ListRecent(ctx, username, limit)
}

// appendEvent writes an audit event, logging rather than failing on error.
// The account mutation it accompanies has already been committed.
func (s *AuthService) appendEvent(ctx context.Context, username, ip string, record *security.EventRecord) {
	if record == nil {
		return
	}
	err := s.events.Append(ctx, core.AppendSecurityEventParams{
		Username:  username,
		EventType: record.Type,
		IP:        ip,
		Details:   record.Details,
	})
	if err != nil {
		s.logWarn(ctx, "append security event failed",
			"username", username,
			"event_type", record.Type,
			"error", err,
		)
	}
}

func (s *AuthService) recordFailure(ctx context.Context, key string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.RecordFailure(ctx, key); err != nil {
		s.logWarn(ctx, "login throttle record failed", "error", err)
	}
}

func (s *AuthService) logWarn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, args...)
	}
}

// NewSessionID returns a 64-character hex session identifier from 32 bytes of
// system entropy.
func NewSessionID() (string, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}

// DeviceFingerprint derives a stable device identifier from the user agent.
func DeviceFingerprint(userAgent string) string {
	sum := sha256.Sum256([]byte(userAgent))
	return hex.EncodeToString(sum[:])
}
