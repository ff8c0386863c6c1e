// Package workingset holds the run-scoped working set the sync engine
// reconciles against.
//
// The store is seeded once per run from the remote listing, accumulates
// "seen" marks while the event stream drains, and yields deletion candidates
// when the run completes. It is never persisted and never shared across runs:
// BeginRun wipes all state. Mutation is unsynchronised; runs are
// single-threaded and two runs must never execute concurrently (an external
// scheduling responsibility).
package workingset

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stevobenno/panosync/internal/domain"
)

type entry struct {
	// sessionID is uuid.Nil while the entry is a placeholder: "we decided to
	// create this session this run but have not yet confirmed the remote id".
	sessionID uuid.UUID
	lastSeen  time.Time
}

// Store is the in-memory working set for one run.
type Store struct {
	runID    string
	existing map[string]entry
	seen     map[string]struct{}
	aliens   []uuid.UUID
}

// New returns an empty Store. Call BeginRun before anything else.
func New() *Store {
	return &Store{
		existing: make(map[string]entry),
		seen:     make(map[string]struct{}),
	}
}

// BeginRun clears all state and binds the store to a run.
func (s *Store) BeginRun(runID string, startedUTC time.Time) {
	s.runID = runID
	s.existing = make(map[string]entry)
	s.seen = make(map[string]struct{})
	s.aliens = nil
	_ = startedUTC // reserved for future grace-period retention
}

// SeedExisting partitions the remote snapshot into sessions previously tagged
// by this system (keyed by identity) and alien sessions carrying no identity
// tag. It returns both counts for observability.
func (s *Store) SeedExisting(sessions []domain.ExistingSession) (seeded, aliens int) {
	for _, sess := range sessions {
		id := strings.TrimSpace(sess.Identity)
		if id == "" {
			s.aliens = append(s.aliens, sess.SessionID)
			aliens++
			continue
		}
		s.existing[key(id)] = entry{sessionID: sess.SessionID, lastSeen: time.Now().UTC()}
		seeded++
	}
	return seeded, aliens
}

// MarkSeen records that this run's event stream produced the identity.
// Idempotent.
func (s *Store) MarkSeen(identity string) {
	s.seen[key(identity)] = struct{}{}
}

// GetExisting reports whether the identity was present on the platform when
// the run was seeded, and the remote session id if so.
func (s *Store) GetExisting(identity string) (uuid.UUID, bool) {
	e, ok := s.existing[key(identity)]
	if !ok {
		return uuid.Nil, false
	}
	return e.sessionID, true
}

// Upsert records or refreshes an entry. Pass uuid.Nil as sessionID to record
// a placeholder (dry-run, or remote id not yet known); a placeholder is never
// returned by ResolveSessionIDs until a later Upsert supplies the real id.
func (s *Store) Upsert(identity string, sessionID uuid.UUID, whenUTC time.Time) {
	k := key(identity)
	e, ok := s.existing[k]
	if !ok {
		s.existing[k] = entry{sessionID: sessionID, lastSeen: whenUTC}
		return
	}
	if sessionID != uuid.Nil {
		e.sessionID = sessionID
	}
	e.lastSeen = whenUTC
	s.existing[k] = e
}

// DeletionCandidates returns every seeded identity not marked seen this run.
//
// horizonDays is accepted for future grace-period retention but deliberately
// not applied as a time filter: the rule is exactly "not seen this run". This
// mirrors the reference behaviour and is a documented simplification, not an
// oversight.
func (s *Store) DeletionCandidates(horizonDays int, nowUTC time.Time) []string {
	_ = horizonDays
	_ = nowUTC

	var out []string
	for k := range s.existing {
		if _, seen := s.seen[k]; !seen {
			out = append(out, k)
		}
	}
	return out
}

// ResolveSessionIDs maps identities back to remote session ids, dropping
// placeholders that never learned their remote id.
func (s *Store) ResolveSessionIDs(identities []string) []uuid.UUID {
	var out []uuid.UUID
	for _, id := range identities {
		if e, ok := s.existing[key(id)]; ok && e.sessionID != uuid.Nil {
			out = append(out, e.sessionID)
		}
	}
	return out
}

// AlienSessionIDs returns the remote ids of in-window sessions with no
// identity tag, in seeding order.
func (s *Store) AlienSessionIDs() []uuid.UUID {
	out := make([]uuid.UUID, len(s.aliens))
	copy(out, s.aliens)
	return out
}

// Identities are hex digests; uppercase them so lookups tolerate casing
// differences in remotely stored tags.
func key(identity string) string {
	return strings.ToUpper(strings.TrimSpace(identity))
}
