// Package security implements the suspicious-activity evaluator that guards
// logins against account sharing. It is pure: callers load the account and
// recent warning counts, and apply the returned assessment themselves.
package security

import (
	"fmt"
	"time"

	"github.com/healthquiz/quiz-api/internal/domain/model"
)

const (
	// SessionTimeout is how long a session stays valid after its last activity.
	SessionTimeout = 20 * time.Minute
	// SuspensionDuration is how long an escalated suspension lasts.
	SuspensionDuration = 3 * 24 * time.Hour
	// WarningThreshold is the number of prior warnings, within WarningWindow,
	// after which the next matching warning escalates to a suspension.
	WarningThreshold = 5
	// WarningWindow is the rolling window over which prior warnings are counted.
	WarningWindow = 7 * 24 * time.Hour
	// DistinctIPLimit is the distinct-IP count at which logins are flagged
	// as multi-location suspicion.
	DistinctIPLimit = 3
)

// DecisionKind discriminates the evaluator's verdict on a login attempt.
type DecisionKind int

const (
	DecisionAllow DecisionKind = iota
	DecisionAllowWithWarning
	DecisionDeny
)

// Decision is the evaluator's verdict. Message is set for warnings and denials.
type Decision struct {
	Kind    DecisionKind
	Message string
}

// EventRecord is a security event the caller must append to the audit log.
type EventRecord struct {
	Type    model.SecurityEventType
	Details map[string]any
}

// Assessment is the full outcome of evaluating a proposed login. At most one
// event is produced. When Suspension is non-nil the caller must also clear the
// account's sessions (ClearSessions is set together with it).
type Assessment struct {
	Decision      Decision
	Event         *EventRecord
	Suspension    *model.Suspension
	ClearSessions bool
}

// Input describes one proposed login against an account's current state.
// ActiveSessions must already be purged of expired entries. RecentSessionWarnings
// and RecentLocationWarnings are the per-type warning counts over the trailing
// WarningWindow ending at Now.
type Input struct {
	ActiveSessions         []model.Session
	New                    model.Session
	Now                    time.Time
	RecentSessionWarnings  int
	RecentLocationWarnings int
}

// Evaluate classifies a proposed login. Branches are checked in strict priority
// order and the first match wins:
//
//  1. an existing session shares the new IP on a different device
//  2. the distinct-IP count across existing plus new reaches DistinctIPLimit
//  3. the device fingerprint matches an existing session (multi-tab, silent)
//  4. a new device or location below the thresholds (informational event)
//  5. nothing notable (silent allow)
//
// Branches 1 and 2 escalate to a denial plus suspension once the matching
// warning count reaches WarningThreshold.
func Evaluate(in Input) Assessment {
	ips := map[string]struct{}{}
	devices := map[string]struct{}{}
	for _, s := range in.ActiveSessions {
		if s.IP != "" {
			ips[s.IP] = struct{}{}
		}
		if s.DeviceFingerprint != "" {
			devices[s.DeviceFingerprint] = struct{}{}
		}
	}
	if in.New.IP != "" {
		ips[in.New.IP] = struct{}{}
	}
	if in.New.DeviceFingerprint != "" {
		devices[in.New.DeviceFingerprint] = struct{}{}
	}

	sameIPDifferentDevice := false
	sameDevice := false
	for _, s := range in.ActiveSessions {
		if s.IP == in.New.IP && s.DeviceFingerprint != in.New.DeviceFingerprint {
			sameIPDifferentDevice = true
		}
		if s.DeviceFingerprint == in.New.DeviceFingerprint {
			sameDevice = true
		}
	}

	if sameIPDifferentDevice {
		if in.RecentSessionWarnings >= WarningThreshold {
			return suspend(in.Now,
				"Multiple devices detected on same network after warnings",
				"Account suspended for 3 days due to suspicious activity",
				map[string]any{
					"reason":   "Multiple devices on same network",
					"warnings": in.RecentSessionWarnings,
				})
		}
		return Assessment{
			Decision: Decision{
				Kind:    DecisionAllowWithWarning,
				Message: "Warning: Multiple devices detected on same network",
			},
			Event: &EventRecord{
				Type: model.SecurityEventMultipleSessions,
				Details: map[string]any{
					"warnings":     in.RecentSessionWarnings + 1,
					"max_warnings": WarningThreshold,
				},
			},
		}
	}

	if len(ips) >= DistinctIPLimit {
		if in.RecentLocationWarnings >= WarningThreshold {
			return suspend(in.Now,
				"Multiple locations detected after warnings",
				"Account suspended for 3 days due to multiple locations",
				map[string]any{
					"reason":   "Multiple locations",
					"ip_count": len(ips),
					"warnings": in.RecentLocationWarnings,
				})
		}
		return Assessment{
			Decision: Decision{
				Kind:    DecisionAllowWithWarning,
				Message: "Warning: Multiple locations detected",
			},
			Event: &EventRecord{
				Type: model.SecurityEventMultipleLocations,
				Details: map[string]any{
					"ip_count": len(ips),
					"warnings": in.RecentLocationWarnings + 1,
				},
			},
		}
	}

	if sameDevice {
		return Assessment{Decision: Decision{Kind: DecisionAllow}}
	}

	if len(ips) > 1 || len(devices) > 1 {
		return Assessment{
			Decision: Decision{Kind: DecisionAllow},
			Event: &EventRecord{
				Type: model.SecurityEventNewLocationLogin,
				Details: map[string]any{
					"ip_count":     len(ips),
					"device_count": len(devices),
				},
			},
		}
	}

	return Assessment{Decision: Decision{Kind: DecisionAllow}}
}

func suspend(now time.Time, reason, message string, details map[string]any) Assessment {
	return Assessment{
		Decision:      Decision{Kind: DecisionDeny, Message: message},
		Event:         &EventRecord{Type: model.SecurityEventAccountSuspended, Details: details},
		Suspension:    &model.Suspension{Reason: reason, Expiry: now.Add(SuspensionDuration)},
		ClearSessions: true,
	}
}

// SuspendedMessage formats the denial message for an account under suspension.
func SuspendedMessage(expiry time.Time) string {
	return fmt.Sprintf("Account suspended until %s. Contact support.",
		expiry.Format("2006-01-02 15:04:05 MST"))
}
