// Package testutil provides shared test helpers for panosync.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stevobenno/panosync/internal/domain"
)

// FakeClock provides deterministic time for testing.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

// NewFakeClock creates a FakeClock set to the given time.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{current: t}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// TestContext returns a context with a 5-second timeout.
// The context is cancelled when the test completes.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// MustParseUUID parses a UUID string and panics on error.
// Only for use in tests.
func MustParseUUID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		panic("testutil.MustParseUUID: " + err.Error())
	}
	return id
}

// Event returns a fully populated timetable event for tests, with the module
// CRN swapped in so callers can mint distinct identities cheaply.
func Event(crn string) domain.SourceEvent {
	return domain.SourceEvent{
		ActivityName:    "Structural Analysis Lecture",
		ModuleCode:      "CIVE101",
		ModuleName:      "Structural Analysis",
		ModuleCRN:       crn,
		StaffName:       "Dr Smith",
		StartDate:       time.Date(2025, 10, 30, 0, 0, 0, 0, time.UTC),
		StartTime:       9 * time.Hour,
		EndTime:         10 * time.Hour,
		LocationName:    "Room 3.08",
		RecordingFactor: 4,
		StaffUserName:   "jsmith",
	}
}
