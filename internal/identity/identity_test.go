package identity

import (
	"strings"
	"testing"
	"time"

	"github.com/stevobenno/panosync/internal/domain"
)

func baseEvent() domain.SourceEvent {
	return domain.SourceEvent{
		ActivityName:  "Lecture",
		ModuleCRN:     "CIVE101",
		StaffUserName: "jbloggs",
		StartDate:     time.Date(2025, 10, 30, 0, 0, 0, 0, time.UTC),
		StartTime:     9 * time.Hour,
		EndTime:       10 * time.Hour,
		LocationName:  "Room 3.08",
	}
}

func TestCompute_Deterministic(t *testing.T) {
	a, err := Compute(baseEvent())
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	b, err := Compute(baseEvent())
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if a != b {
		t.Errorf("Compute() not deterministic: %q != %q", a, b)
	}
}

func TestCompute_Format(t *testing.T) {
	id, err := Compute(baseEvent())
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if len(id) != 24 {
		t.Errorf("identity length = %d, want 24", len(id))
	}
	if id != strings.ToUpper(id) {
		t.Errorf("identity %q is not upper-hex", id)
	}
	for _, c := range id {
		if !strings.ContainsRune("0123456789ABCDEF", c) {
			t.Errorf("identity %q contains non-hex character %q", id, c)
		}
	}
}

func TestCompute_EachIdentifyingFieldChangesIdentity(t *testing.T) {
	base, err := Compute(baseEvent())
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}

	mutations := map[string]func(*domain.SourceEvent){
		"crn":      func(e *domain.SourceEvent) { e.ModuleCRN = "CIVE102" },
		"date":     func(e *domain.SourceEvent) { e.StartDate = e.StartDate.AddDate(0, 0, 1) },
		"start":    func(e *domain.SourceEvent) { e.StartTime += time.Minute },
		"location": func(e *domain.SourceEvent) { e.LocationName = "Room 3.09" },
		"activity": func(e *domain.SourceEvent) { e.ActivityName = "Seminar" },
		"staff":    func(e *domain.SourceEvent) { e.StaffUserName = "jdoe" },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			e := baseEvent()
			mutate(&e)
			got, err := Compute(e)
			if err != nil {
				t.Fatalf("Compute() error = %v", err)
			}
			if got == base {
				t.Errorf("changing %s did not change the identity", name)
			}
		})
	}
}

func TestCompute_NonIdentifyingFieldsIgnored(t *testing.T) {
	base, _ := Compute(baseEvent())

	e := baseEvent()
	e.EndTime = 11 * time.Hour
	e.RecorderName = "REC-42"
	e.RecordingFactor = 5
	e.ModuleName = "Engineering Materials"
	e.StaffName = "Joe Bloggs"

	got, _ := Compute(e)
	if got != base {
		t.Errorf("non-identifying field change altered the identity: %q != %q", got, base)
	}
}

func TestCompute_CaseIsSignificant(t *testing.T) {
	base, _ := Compute(baseEvent())

	e := baseEvent()
	e.ModuleCRN = "cive101"
	got, _ := Compute(e)
	if got == base {
		t.Error("identity should treat field values verbatim, not case-normalised")
	}
}

func TestCompute_Unidentifiable(t *testing.T) {
	_, err := Compute(domain.SourceEvent{})
	if err != ErrUnidentifiable {
		t.Errorf("Compute(zero event) error = %v, want ErrUnidentifiable", err)
	}
}

func TestClockString(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{9 * time.Hour, "09:00:00"},
		{13*time.Hour + 45*time.Minute + 30*time.Second, "13:45:30"},
		{0, "00:00:00"},
	}
	for _, tt := range tests {
		if got := ClockString(tt.d); got != tt.want {
			t.Errorf("ClockString(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
