//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 64
	maxEmailLen    = 255
)

// Session is one authenticated login instance embedded in an Account.
// LastActive is bumped on every validated access; sessions whose LastActive
// falls outside the session timeout window must be purged before being read.
type Session struct {
	SessionID         string    `json:"session_id"`
	LoginTime         time.Time `json:"login_time"`
	LastActive        time.Time `json:"last_active"`
	IP                string    `json:"ip"`
	UserAgent         string    `json:"user_agent,omitempty"`
	DeviceFingerprint string    `json:"device_fingerprint"`
}

// ActiveAt reports whether the session is still within the timeout window at now.
func (s Session) ActiveAt(now time.Time, timeout time.Duration) bool {
	return s.LastActive.After(now.Add(-timeout))
}

// Suspension is a time-boxed denial of login/validation for an account.
type Suspension struct {
	Reason string    `json:"reason"`
	Expiry time.Time `json:"expiry"`
}

// ExpiredAt reports whether the suspension has lapsed at now.
func (s Suspension) ExpiredAt(now time.Time) bool {
	return !now.Before(s.Expiry)
}

// Subscription records a redeemed access plan.
type Subscription struct {
	Plan      Plan      `json:"plan"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// ExpiredAt reports whether the subscription has lapsed at now.
func (s Subscription) ExpiredAt(now time.Time) bool {
	return now.After(s.EndDate)
}

// Account represents one registered user, including the embedded session list
// and suspension state. The whole account is the unit of persistence; Version
// backs optimistic concurrency on writes.
type Account struct {
	Username       string        `json:"username"`
	PasswordHash   string        `json:"-"`
	Email          string        `json:"email"`
	CreatedAt      time.Time     `json:"created_at"`
	MaxSessions    int           `json:"max_sessions"`
	ActiveSessions []Session     `json:"active_sessions"`
	Suspension     *Suspension   `json:"suspension,omitempty"`
	Subscription   *Subscription `json:"subscription,omitempty"`
	PaymentPending bool          `json:"payment_pending"`
	Version        int64         `json:"-"`
}

// IsSuspendedAt reports whether the account is under an unexpired suspension at now.
func (a *Account) IsSuspendedAt(now time.Time) bool {
	return a.Suspension != nil && !a.Suspension.ExpiredAt(now)
}

// ClearExpiredSuspension removes a lapsed suspension and reports whether it did.
// Must run before any other suspension logic on the account.
func (a *Account) ClearExpiredSuspension(now time.Time) bool {
	if a.Suspension != nil && a.Suspension.ExpiredAt(now) {
		a.Suspension = nil
		return true
	}
	return false
}

// PurgeExpiredSessions drops sessions whose LastActive is outside the timeout
// window at now and returns the number removed.
func (a *Account) PurgeExpiredSessions(now time.Time, timeout time.Duration) int {
	kept := a.ActiveSessions[:0]
	for _, s := range a.ActiveSessions {
		if s.ActiveAt(now, timeout) {
			kept = append(kept, s)
		}
	}
	removed := len(a.ActiveSessions) - len(kept)
	a.ActiveSessions = kept
	return removed
}

// FindSession returns the active session with the given ID, or nil.
func (a *Account) FindSession(sessionID string) *Session {
	for i := range a.ActiveSessions {
		if a.ActiveSessions[i].SessionID == sessionID {
			return &a.ActiveSessions[i]
		}
	}
	return nil
}

// RemoveSession drops the session with the given ID and reports whether it was present.
func (a *Account) RemoveSession(sessionID string) bool {
	for i := range a.ActiveSessions {
		if a.ActiveSessions[i].SessionID == sessionID {
			a.ActiveSessions = append(a.ActiveSessions[:i], a.ActiveSessions[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveSessionsByFingerprint drops every session with the given device
// fingerprint and returns the removed session IDs in login order.
func (a *Account) RemoveSessionsByFingerprint(fingerprint string) []string {
	var removed []string
	kept := a.ActiveSessions[:0]
	for _, s := range a.ActiveSessions {
		if s.DeviceFingerprint == fingerprint {
			removed = append(removed, s.SessionID)
			continue
		}
		kept = append(kept, s)
	}
	a.ActiveSessions = kept
	return removed
}

// ClearSessions drops all sessions and returns the removed session IDs in login order.
func (a *Account) ClearSessions() []string {
	removed := make([]string, 0, len(a.ActiveSessions))
	for _, s := range a.ActiveSessions {
		removed = append(removed, s.SessionID)
	}
	a.ActiveSessions = nil
	return removed
}

// RetainSession drops every session except the one with keepSessionID and
// returns the removed session IDs in login order.
func (a *Account) RetainSession(keepSessionID string) []string {
	var removed []string
	kept := a.ActiveSessions[:0]
	for _, s := range a.ActiveSessions {
		if s.SessionID == keepSessionID {
			kept = append(kept, s)
			continue
		}
		removed = append(removed, s.SessionID)
	}
	a.ActiveSessions = kept
	return removed
}

// ClearExpiredSubscription removes a lapsed subscription and reports whether it did.
func (a *Account) ClearExpiredSubscription(now time.Time) bool {
	if a.Subscription != nil && a.Subscription.ExpiredAt(now) {
		a.Subscription = nil
		a.PaymentPending = false
		return true
	}
	return false
}

// CreateAccountRequest represents parameters to register an Account.
type CreateAccountRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// Validate validates CreateAccountRequest. Username is case-sensitive and kept as-is.
func (r *CreateAccountRequest) Validate() error {
	if strings.TrimSpace(r.Username) != r.Username {
		return errors.New("username cannot have leading or trailing whitespace")
	}
	if utf8.RuneCountInString(r.Username) < minUsernameLen {
		return errors.New("username must be at least 3 characters")
	}
	if utf8.RuneCountInString(r.Username) > maxUsernameLen {
		return errors.New("username cannot exceed 64 characters")
	}
	if r.Password == "" {
		return errors.New("password is required")
	}
	email := strings.TrimSpace(r.Email)
	if email == "" {
		return errors.New("email is required")
	}
	if utf8.RuneCountInString(email) > maxEmailLen {
		return errors.New("email cannot exceed 255 characters")
	}
	if !strings.Contains(email, "@") {
		return errors.New("email is not valid")
	}
	r.Email = strings.ToLower(email)
	return nil
}
