package domain

import "time"

// RunContext is the per-run configuration snapshot. It is built once by the
// orchestrator when a run opens and never mutated afterwards. The working set
// and folder cache live exactly as long as the RunContext that created them.
type RunContext struct {
	RunID string

	DryRun bool

	// MinExpectedRows is the low-water guard threshold; 0 disables the guard.
	// When the run reads fewer rows than this, deletions are suppressed
	// regardless of AllowDeletions.
	MinExpectedRows int

	AllowDeletions bool

	// DeleteHorizonDays is threaded through to the working set's deletion
	// candidate computation. The current computation does not apply it as a
	// time filter; see workingset.Store.DeletionCandidates.
	DeleteHorizonDays int

	StartedUTC time.Time

	// ListFromUTC..ListToUTC is the remote-listing window the run operates
	// over. Sessions outside the window are invisible to the run and are
	// never deletion candidates.
	ListFromUTC time.Time
	ListToUTC   time.Time
}

// RunStats are the final counts reported for one run.
type RunStats struct {
	Read      int
	Upserts   int
	Unchanged int
	Errors    int
	Deleted   int
}
