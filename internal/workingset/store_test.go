package workingset

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stevobenno/panosync/internal/domain"
)

var now = time.Date(2025, 10, 30, 8, 0, 0, 0, time.UTC)

func seeded(t *testing.T, sessions ...domain.ExistingSession) *Store {
	t.Helper()
	s := New()
	s.BeginRun("run-1", now)
	s.SeedExisting(sessions)
	return s
}

func existing(identity string) domain.ExistingSession {
	return domain.ExistingSession{SessionID: uuid.New(), Identity: identity}
}

func TestSeedExisting_PartitionsTaggedAndAlien(t *testing.T) {
	s := New()
	s.BeginRun("run-1", now)

	alien := domain.ExistingSession{SessionID: uuid.New()}
	tagged, aliens := s.SeedExisting([]domain.ExistingSession{
		existing("AAA111"),
		existing("BBB222"),
		alien,
		{SessionID: uuid.New(), Identity: "   "},
	})

	if tagged != 2 {
		t.Errorf("seeded = %d, want 2", tagged)
	}
	if aliens != 2 {
		t.Errorf("aliens = %d, want 2", aliens)
	}
	if got := s.AlienSessionIDs(); len(got) != 2 || got[0] != alien.SessionID {
		t.Errorf("AlienSessionIDs() = %v", got)
	}
}

func TestGetExisting(t *testing.T) {
	e := existing("AAA111")
	s := seeded(t, e)

	id, ok := s.GetExisting("AAA111")
	if !ok || id != e.SessionID {
		t.Errorf("GetExisting(AAA111) = %v, %v", id, ok)
	}
	// Identity lookups tolerate casing differences.
	if _, ok := s.GetExisting("aaa111"); !ok {
		t.Error("GetExisting should be case-insensitive")
	}
	if _, ok := s.GetExisting("CCC333"); ok {
		t.Error("GetExisting reported an unseeded identity")
	}
}

func TestDeletionCandidates(t *testing.T) {
	kept := existing("AAA111")
	stale := existing("BBB222")
	s := seeded(t, kept, stale)

	s.MarkSeen("AAA111")
	s.MarkSeen("AAA111") // idempotent

	got := s.DeletionCandidates(0, now)
	if len(got) != 1 || got[0] != "BBB222" {
		t.Errorf("DeletionCandidates() = %v, want [BBB222]", got)
	}
}

func TestDeletionCandidates_HorizonNotApplied(t *testing.T) {
	stale := existing("BBB222")
	s := seeded(t, stale)

	// The horizon parameter is accepted but the rule stays "not seen this
	// run", so a large horizon changes nothing.
	if got := s.DeletionCandidates(365, now); len(got) != 1 {
		t.Errorf("DeletionCandidates(365) = %v, want one candidate", got)
	}
}

func TestUpsert_PlaceholderThenResolved(t *testing.T) {
	s := New()
	s.BeginRun("run-1", now)

	s.Upsert("AAA111", uuid.Nil, now)

	// Placeholder entries are dropped by ResolveSessionIDs.
	if got := s.ResolveSessionIDs([]string{"AAA111"}); len(got) != 0 {
		t.Errorf("ResolveSessionIDs() = %v, want empty for placeholder", got)
	}

	real := uuid.New()
	s.Upsert("AAA111", real, now.Add(time.Minute))

	got := s.ResolveSessionIDs([]string{"AAA111"})
	if len(got) != 1 || got[0] != real {
		t.Errorf("ResolveSessionIDs() = %v, want [%v]", got, real)
	}

	// A later placeholder upsert must not erase the resolved id.
	s.Upsert("AAA111", uuid.Nil, now.Add(2*time.Minute))
	if got := s.ResolveSessionIDs([]string{"AAA111"}); len(got) != 1 || got[0] != real {
		t.Errorf("ResolveSessionIDs() after placeholder refresh = %v", got)
	}
}

func TestResolveSessionIDs_SkipsUnknownIdentities(t *testing.T) {
	e := existing("AAA111")
	s := seeded(t, e)

	got := s.ResolveSessionIDs([]string{"AAA111", "ZZZ999"})
	if len(got) != 1 || got[0] != e.SessionID {
		t.Errorf("ResolveSessionIDs() = %v, want [%v]", got, e.SessionID)
	}
}

func TestBeginRun_ClearsPreviousRunState(t *testing.T) {
	s := seeded(t, existing("AAA111"))
	s.MarkSeen("AAA111")

	s.BeginRun("run-2", now.Add(time.Hour))

	if _, ok := s.GetExisting("AAA111"); ok {
		t.Error("BeginRun did not clear seeded entries")
	}
	if got := s.DeletionCandidates(0, now); len(got) != 0 {
		t.Errorf("DeletionCandidates() after BeginRun = %v, want empty", got)
	}
	if got := s.AlienSessionIDs(); len(got) != 0 {
		t.Errorf("AlienSessionIDs() after BeginRun = %v, want empty", got)
	}
}
