package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScheduledSession is the canonical, platform-ready description of one
// recording. It is an immutable value: the reconciliation identity is computed
// separately and carried alongside, never written back into the session.
type ScheduledSession struct {
	// Title as shown to staff and students, e.g.
	// "CIVE101 30/10/2025 09:00 Room 3.08".
	Title string

	// StartUTC and EndUTC carry the 2-minute boundary trim: start is pushed
	// 2 minutes later and end pulled 2 minutes earlier than the timetable
	// slot, so adjacent bookings on the same recorder never overlap.
	StartUTC time.Time
	EndUTC   time.Time

	// RecorderName must match a named recorder on the platform.
	RecorderName string

	// FolderQuery is the token used to locate the platform folder. It is not
	// guaranteed to be a literal folder name; in practice it is a CRN or
	// module identifier that appears somewhere in the folder name.
	FolderQuery string

	Description string
	Webcast     bool
	Owner       string

	// Raw is the originating feed record, kept for audit and troubleshooting.
	Raw SourceEvent
}

// ExistingSession is a read-only snapshot of one remote session, taken once
// at the start of a run.
type ExistingSession struct {
	SessionID uuid.UUID
	Identity  string // empty when the session was never tagged by this system
	StartUTC  time.Time
	EndUTC    time.Time
}

// Folder identifies a remote container that sessions are filed into.
type Folder struct {
	ID   uuid.UUID
	Name string
}

// Recorder identifies a remote recorder by platform ID.
type Recorder struct {
	ID   uuid.UUID
	Name string
}

// ScheduleResult is the classified outcome of a schedule call. Conflicts are
// reported here as data, not as an error, so callers can branch on them.
type ScheduleResult struct {
	Success        bool
	SessionID      uuid.UUID
	ConflictingIDs []uuid.UUID
	Message        string
}
