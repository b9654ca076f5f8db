// Package clock provides the time source used by the metering core.
// All times are UTC. Production code uses SystemClock; tests inject a
// FixedClock so renewal decisions are reproducible.
package clock

import (
	"sync"
	"time"
)

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// NewSystemClock creates a system-backed clock.
func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

// Now returns the current time in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock is a test double whose instant can be pinned, advanced and
// cleared. While cleared it falls through to the system clock.
type FixedClock struct {
	mu      sync.RWMutex
	instant time.Time
	pinned  bool
}

// NewFixedClock creates a FixedClock pinned to t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{instant: t.UTC(), pinned: true}
}

// Now returns the pinned instant, or the system time when cleared.
func (c *FixedClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.pinned {
		return time.Now().UTC()
	}
	return c.instant
}

// Set pins the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instant = t.UTC()
	c.pinned = true
}

// Advance moves the pinned instant forward by d. No-op while cleared.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pinned {
		c.instant = c.instant.Add(d)
	}
}

// Clear unpins the clock so Now falls back to system time.
func (c *FixedClock) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinned = false
}

// SetEndOfCurrentMonth pins the clock to the last nanosecond of the month
// containing the current pinned instant.
func (c *FixedClock) SetEndOfCurrentMonth() {
	c.Set(EndOfMonth(c.Now()))
}

// EndOfMonth returns the last nanosecond of the month containing t, in UTC.
func EndOfMonth(t time.Time) time.Time {
	u := t.UTC()
	firstOfNext := time.Date(u.Year(), u.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	return firstOfNext.Add(-time.Nanosecond)
}

// NextRenewalDate returns the informational next-renewal instant for the
// given reset period. It is display-only: the renewal comparator never
// consults the period.
func NextRenewalDate(from time.Time, period string) time.Time {
	u := from.UTC()
	switch period {
	case "daily":
		return u.AddDate(0, 0, 1)
	case "weekly":
		return u.AddDate(0, 0, 7)
	default:
		return u.AddDate(0, 1, 0)
	}
}
