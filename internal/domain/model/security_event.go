package model

import (
	"time"

	"github.com/google/uuid"
)

// SecurityEventType enumerates the closed set of recordable security events.
type SecurityEventType string

const (
	SecurityEventMultipleSessions  SecurityEventType = "multiple_sessions_warning"
	SecurityEventMultipleLocations SecurityEventType = "multiple_locations_warning"
	SecurityEventNewLocationLogin  SecurityEventType = "new_location_login"
	SecurityEventAccountSuspended  SecurityEventType = "account_suspended"
	SecurityEventLogoutOthers      SecurityEventType = "logout_other_devices"
)

// Valid checks if the SecurityEventType value is one of the known events.
func (t SecurityEventType) Valid() bool {
	switch t {
	case SecurityEventMultipleSessions,
		SecurityEventMultipleLocations,
		SecurityEventNewLocationLogin,
		SecurityEventAccountSuspended,
		SecurityEventLogoutOthers:
		return true
	default:
		return false
	}
}

// SecurityEvent is one append-only audit record tied to a username.
// Details carries event-specific context (IPs, fingerprints, counts).
type SecurityEvent struct {
	ID        uuid.UUID         `json:"id" db:"id"`
	Username  string            `json:"username" db:"username"`
	EventType SecurityEventType `json:"event_type" db:"event_type"`
	IP        string            `json:"ip" db:"ip"`
	Details   map[string]any    `json:"details" db:"details"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}
