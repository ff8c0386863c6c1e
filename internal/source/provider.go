// Package source streams timetable events from the configured feed. Three
// providers exist: a CSV export file, a SQL reporting view, and a JSON HTTP
// endpoint. All of them deliver rows incrementally so a large timetable never
// has to sit in memory at once.
package source

import (
	"context"
	"time"

	"github.com/stevobenno/panosync/internal/domain"
)

// Row is one streamed feed row. Either Event is populated or Err carries a
// failure. A row-level parse failure leaves Terminal false; the consumer
// counts it and keeps reading. Terminal marks a stream-level failure (lost
// connection, truncated response): the producer stops after sending it and
// the consumer must treat the whole feed as failed.
type Row struct {
	Event    domain.SourceEvent
	Err      error
	Terminal bool
}

// Provider streams timetable rows for a listing window.
type Provider interface {
	// Stream returns a channel of rows. The channel is closed when the feed
	// is exhausted or ctx is cancelled. A nil channel with an error means
	// the feed could not be opened at all, which is run-fatal.
	Stream(ctx context.Context, fromUTC, toUTC time.Time) (<-chan Row, error)

	// Name identifies the provider kind in logs.
	Name() string
}
