package testutil

import (
	"testing"
	"time"
)

func TestFakeClockNow(t *testing.T) {
	fixed := time.Date(2025, 10, 1, 6, 0, 0, 0, time.UTC)
	clock := NewFakeClock(fixed)

	if got := clock.Now(); !got.Equal(fixed) {
		t.Errorf("Now() = %v, want %v", got, fixed)
	}
}

func TestFakeClockAdvance(t *testing.T) {
	fixed := time.Date(2025, 10, 1, 6, 0, 0, 0, time.UTC)
	clock := NewFakeClock(fixed)

	clock.Advance(5 * time.Minute)

	want := fixed.Add(5 * time.Minute)
	if got := clock.Now(); !got.Equal(want) {
		t.Errorf("after Advance(5m), Now() = %v, want %v", got, want)
	}
}

func TestTestContextHasDeadline(t *testing.T) {
	ctx := TestContext(t)

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("TestContext should have a deadline")
	}

	remaining := time.Until(deadline)
	if remaining <= 0 || remaining > 6*time.Second {
		t.Errorf("deadline should be ~5s from now, got %v", remaining)
	}
}

func TestMustParseUUID(t *testing.T) {
	id := MustParseUUID("12345678-1234-1234-1234-123456789abc")
	if id.String() != "12345678-1234-1234-1234-123456789abc" {
		t.Errorf("unexpected UUID: %s", id)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Error("MustParseUUID should panic on invalid input")
		}
	}()
	MustParseUUID("not-a-uuid")
}

func TestEventFixture(t *testing.T) {
	a := Event("CIVE101-2025")
	b := Event("MECH202-2025")

	if a.ModuleCRN != "CIVE101-2025" || b.ModuleCRN != "MECH202-2025" {
		t.Fatalf("crn not applied: %q / %q", a.ModuleCRN, b.ModuleCRN)
	}
	if a.StartTime >= a.EndTime {
		t.Fatalf("fixture times inverted: %v..%v", a.StartTime, a.EndTime)
	}
}
