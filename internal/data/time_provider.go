package data

import "time"

// TimeProvider abstracts the clock so session expiry and suspension windows
// can be tested without sleeping.
type TimeProvider interface {
	Now() time.Time
}

// RealTimeProvider implements TimeProvider using the system clock.
type RealTimeProvider struct{}

// Now returns the current system time.
func (r *RealTimeProvider) Now() time.Time {
	return time.Now()
}

// FixedTimeProvider implements TimeProvider with a settable time for testing.
type FixedTimeProvider struct {
	current time.Time
}

// NewFixedTimeProvider creates a FixedTimeProvider pinned to the given time.
func NewFixedTimeProvider(t time.Time) *FixedTimeProvider {
	return &FixedTimeProvider{current: t}
}

// Now returns the pinned time.
func (f *FixedTimeProvider) Now() time.Time {
	return f.current
}

// SetTime moves the pinned time, simulating clock progression in tests.
func (f *FixedTimeProvider) SetTime(t time.Time) {
	f.current = t
}

// Advance moves the pinned time forward by d.
func (f *FixedTimeProvider) Advance(d time.Duration) {
	f.current = f.current.Add(d)
}
