package circuitbreaker

import (
	"testing"
	"time"
)

// advance installs a movable fake clock on the breaker and returns a function
// that shifts it forward.
func advance(cb *CircuitBreaker) func(time.Duration) {
	now := time.Date(2025, 10, 1, 6, 0, 0, 0, time.UTC)
	cb.clock = func() time.Time { return now }
	return func(d time.Duration) { now = now.Add(d) }
}

func TestAllowUnknownOp(t *testing.T) {
	cb := New(3, 5*time.Second)
	if err := cb.Allow("schedule"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestAllowBelowThreshold(t *testing.T) {
	cb := New(3, 5*time.Second)
	cb.RecordFailure("schedule")
	cb.RecordFailure("schedule")
	if err := cb.Allow("schedule"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestOpensAtThreshold(t *testing.T) {
	cb := New(3, 5*time.Second)
	cb.RecordFailure("schedule")
	cb.RecordFailure("schedule")
	cb.RecordFailure("schedule")
	if err := cb.Allow("schedule"); err == nil {
		t.Fatal("expected ErrCircuitOpen, got nil")
	}
}

func TestHalfOpenProbeAfterCooldown(t *testing.T) {
	cb := New(3, 5*time.Second)
	tick := advance(cb)
	cb.RecordFailure("schedule")
	cb.RecordFailure("schedule")
	cb.RecordFailure("schedule")
	tick(6 * time.Second)
	if err := cb.Allow("schedule"); err != nil {
		t.Fatalf("expected probe allowed, got %v", err)
	}
	if err := cb.Allow("schedule"); err == nil {
		t.Fatal("expected ErrCircuitOpen while probe in flight")
	}
}

func TestProbeSuccessCloses(t *testing.T) {
	cb := New(3, 5*time.Second)
	tick := advance(cb)
	cb.RecordFailure("delete")
	cb.RecordFailure("delete")
	cb.RecordFailure("delete")
	tick(6 * time.Second)
	cb.Allow("delete")
	cb.RecordSuccess("delete")
	if err := cb.Allow("delete"); err != nil {
		t.Fatalf("expected nil after reset, got %v", err)
	}
}

func TestProbeFailureReOpens(t *testing.T) {
	cb := New(3, 5*time.Second)
	tick := advance(cb)
	cb.RecordFailure("delete")
	cb.RecordFailure("delete")
	cb.RecordFailure("delete")
	tick(6 * time.Second)
	cb.Allow("delete")
	cb.RecordFailure("delete")
	if err := cb.Allow("delete"); err == nil {
		t.Fatal("expected ErrCircuitOpen after probe failure")
	}
}

func TestSuccessOnClosedIsNoOp(t *testing.T) {
	cb := New(3, 5*time.Second)
	cb.RecordSuccess("schedule")
	if err := cb.Allow("schedule"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestOpsTripIndependently(t *testing.T) {
	cb := New(2, 5*time.Second)
	cb.RecordFailure("delete")
	cb.RecordFailure("delete")
	if err := cb.Allow("delete"); err == nil {
		t.Fatal("expected delete open")
	}
	if err := cb.Allow("schedule"); err != nil {
		t.Fatalf("expected schedule allowed, got %v", err)
	}
}
