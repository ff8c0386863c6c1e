// Package transform maps raw timetable events to platform-ready sessions.
//
// The mapping is a pure function: no I/O, no clock reads, deterministic for a
// given input. The rules mirror the scheduling team's field-mapping workbook.
package transform

import (
	"fmt"
	"strings"
	"time"

	"github.com/stevobenno/panosync/internal/domain"
	"github.com/stevobenno/panosync/internal/identity"
)

const (
	descriptionActivityPrefix  = "The full name of this activity is: "
	descriptionNoPresenter     = "No Presenter name has been provided"
	descriptionPresenterPrefix = "The presenter(s) named for this event are: "

	// DefaultFolder receives sessions whose CRN cannot be mapped to a
	// module folder.
	DefaultFolder = "Recording Catchall"

	unifiedPrefix = `unified\`

	// placeholderCRNPrefix marks ad-hoc bookings that have no module; they
	// are filed under the member of staff's personal folder instead.
	placeholderCRNPrefix = "#SPLUS"

	unknownRecorder = "UNKNOWN_RECORDER"
)

// Start is pushed later and end pulled earlier by this much, so adjacent
// bookings on the same recorder never overlap.
const boundaryTrim = 2 * time.Minute

// Transformer converts SourceEvents to ScheduledSessions.
type Transformer struct {
	// SchedulerAccount owns sessions that have no named member of staff.
	SchedulerAccount string
}

// New returns a Transformer owned by the given scheduler account.
func New(schedulerAccount string) *Transformer {
	return &Transformer{SchedulerAccount: schedulerAccount}
}

// Transform derives the canonical session for one timetable event.
func (t *Transformer) Transform(e domain.SourceEvent) domain.ScheduledSession {
	firstModule := domain.FirstToken(e.ModuleCode)

	// Title: "{module} {dd/MM/yyyy} {HH:mm} {location}"
	title := strings.TrimSpace(fmt.Sprintf("%s %s %s %s",
		firstModule,
		e.StartDate.Format("02/01/2006"),
		identity.ClockString(e.StartTime)[:5],
		e.LocationName))

	day := e.StartDate.UTC().Truncate(24 * time.Hour)
	startUTC := day.Add(e.StartTime + boundaryTrim)
	endUTC := day.Add(e.EndTime - boundaryTrim)

	return domain.ScheduledSession{
		Title:        title,
		StartUTC:     startUTC,
		EndUTC:       endUTC,
		RecorderName: resolveRecorder(e),
		FolderQuery:  FolderQuery(e.ModuleCRN, e.StaffUserName),
		Description:  buildDescription(e),
		Webcast:      e.RecordingFactor == 4 || e.RecordingFactor == 5,
		Owner:        t.resolveOwner(e.StaffUserName),
		Raw:          e,
	}
}

// resolveRecorder prefers the explicit recorder, falls back to the location
// name (recorders are named after their rooms), and lastly a sentinel that
// will fail recorder resolution loudly.
func resolveRecorder(e domain.SourceEvent) string {
	if r := strings.TrimSpace(e.RecorderName); r != "" {
		return r
	}
	if l := strings.TrimSpace(e.LocationName); l != "" {
		return l
	}
	return unknownRecorder
}

func buildDescription(e domain.SourceEvent) string {
	base := descriptionActivityPrefix + e.ActivityName
	if strings.TrimSpace(e.StaffName) == "" {
		return base + ". " + descriptionNoPresenter
	}
	return base + ". " + descriptionPresenterPrefix + e.StaffName
}

// FolderQuery derives the folder search token for an event:
//
//   - a "#SPLUS…" placeholder CRN means an ad-hoc booking, filed under the
//     first named member of staff's personal folder (or the catch-all when
//     no staff is named);
//   - otherwise the first CRN token, which by convention appears in the
//     module's folder name on the platform;
//   - a blank CRN falls back to the catch-all folder.
func FolderQuery(moduleCRN, staffUser string) string {
	firstCRN := domain.FirstToken(moduleCRN)

	if firstCRN != "" && hasPrefixFold(firstCRN, placeholderCRNPrefix) {
		if firstStaff := domain.FirstToken(staffUser); firstStaff != "" {
			return unifiedPrefix + firstStaff
		}
		return DefaultFolder
	}

	if firstCRN != "" {
		return firstCRN
	}
	return DefaultFolder
}

func (t *Transformer) resolveOwner(staffUsernames string) string {
	first := domain.FirstToken(staffUsernames)
	if first == "" {
		return t.SchedulerAccount
	}
	return unifiedPrefix + first
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
