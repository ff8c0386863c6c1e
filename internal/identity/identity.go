// Package identity derives the deterministic identity string that links one
// timetable event to one remote session across runs.
//
// Determinism is load-bearing: the identity is the only signal the system has
// that "this is the same booking as last run". It must never incorporate a
// time-of-run or random value.
package identity

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stevobenno/panosync/internal/domain"
)

// ErrUnidentifiable is returned when an event carries none of the fields the
// identity is derived from.
var ErrUnidentifiable = errors.New("identity: event has no identifying fields")

// Compute returns the identity for a source event.
//
// The digest is MD5 over a canonical newline-terminated concatenation of the
// identifying fields, in this fixed order:
//
//	module CRN, date (yyyy-MM-dd), start time (HH:mm:ss),
//	location name, activity name, staff user name
//
// Each field is taken verbatim (no case normalisation). The digest is
// truncated to 12 bytes (96 bits) and upper-hex encoded, giving 24 characters:
// short enough for the platform's metadata field limit, long enough that the
// birthday-bound collision probability at a million events is about 6e-18.
// MD5's cryptographic weaknesses are irrelevant here; only collision behaviour
// on honest inputs matters.
func Compute(e domain.SourceEvent) (string, error) {
	if e.ModuleCRN == "" && e.LocationName == "" && e.ActivityName == "" &&
		e.StaffUserName == "" && e.StartDate.IsZero() {
		return "", ErrUnidentifiable
	}

	var b strings.Builder
	writeLine(&b, e.ModuleCRN)
	writeLine(&b, e.StartDate.Format("2006-01-02"))
	writeLine(&b, ClockString(e.StartTime))
	writeLine(&b, e.LocationName)
	writeLine(&b, e.ActivityName)
	writeLine(&b, e.StaffUserName)

	sum := md5.Sum([]byte(b.String()))
	return strings.ToUpper(hex.EncodeToString(sum[:12])), nil
}

func writeLine(b *strings.Builder, field string) {
	b.WriteString(field)
	b.WriteByte('\n')
}

// ClockString formats a midnight offset as HH:mm:ss.
func ClockString(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
