package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate
// errors. If the metrics backend is unavailable, implementations log warnings
// and continue.
type Sink interface {
	// Run lifecycle
	RunStarted()
	RunCompleted(duration time.Duration, err error)
	RowsRead(count int)
	DeletionsApplied(count int)
	LowWaterGuardTripped()
	AlienSessionsDetected(count int)

	// Per-event outcomes
	EventOutcome(outcome string)

	// Remote platform calls
	RemoteCallCompleted(op string, duration time.Duration, err error)
	RemoteRetryAttempt()
}

// Outcome constants for EventOutcome.
const (
	OutcomeUpserted  = "upserted"
	OutcomeUnchanged = "unchanged"
	OutcomeError     = "error"
)
