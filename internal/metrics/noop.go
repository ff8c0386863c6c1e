package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) RunStarted()                                                  {}
func (n *NoopSink) RunCompleted(duration time.Duration, err error)               {}
func (n *NoopSink) RowsRead(count int)                                           {}
func (n *NoopSink) DeletionsApplied(count int)                                   {}
func (n *NoopSink) LowWaterGuardTripped()                                        {}
func (n *NoopSink) AlienSessionsDetected(count int)                              {}
func (n *NoopSink) EventOutcome(outcome string)                                  {}
func (n *NoopSink) RemoteCallCompleted(op string, d time.Duration, err error)    {}
func (n *NoopSink) RemoteRetryAttempt()                                          {}
