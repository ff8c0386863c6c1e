package domain

import (
	"strings"
	"time"
)

// SourceEvent is one raw record from the timetable feed. Field names follow
// the feed's column headers so the source providers can map columns one-to-one.
//
// SourceEvents are immutable once read; every downstream value is derived
// from them deterministically.
type SourceEvent struct {
	ActivityName    string
	ModuleCode      string
	ModuleName      string
	ModuleCRN       string // comma-separated; the first token is the primary CRN
	StaffName       string
	StartDate       time.Time     // calendar date, midnight UTC
	StartTime       time.Duration // offset from midnight
	EndTime         time.Duration // offset from midnight
	LocationName    string
	RecorderName    string // optional explicit recorder; blank means "derive from location"
	RecordingFactor int    // 1-5; 4 and 5 request a webcast
	StaffUserName   string
}

// FirstCRN returns the primary CRN token, trimmed.
func (e SourceEvent) FirstCRN() string {
	return FirstToken(e.ModuleCRN)
}

// FirstToken returns the first comma-separated token of s, trimmed.
// Feed columns that carry lists (CRNs, staff usernames) use the first entry.
func FirstToken(s string) string {
	if i := strings.IndexByte(s, ','); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
