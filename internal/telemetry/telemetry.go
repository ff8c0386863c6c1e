// Package telemetry notifies external systems about run lifecycle events.
// Operations teams point the webhook sink at their alerting pipeline to hear
// about failed events and completed runs without scraping logs.
package telemetry

import (
	"context"
	"time"

	"github.com/stevobenno/panosync/internal/domain"
)

// Sink receives run lifecycle notifications. Implementations must be
// best-effort: a telemetry failure never affects the run.
type Sink interface {
	RunStarted(ctx context.Context, run domain.RunContext)
	EventFailed(ctx context.Context, runID, title, identity, reason string)
	RunCompleted(ctx context.Context, run domain.RunContext, stats domain.RunStats, duration time.Duration)
}

// NoopSink discards all notifications.
type NoopSink struct{}

func NewNoopSink() *NoopSink { return &NoopSink{} }

func (NoopSink) RunStarted(context.Context, domain.RunContext) {}

func (NoopSink) EventFailed(ctx context.Context, runID, title, identity, reason string) {}

func (NoopSink) RunCompleted(context.Context, domain.RunContext, domain.RunStats, time.Duration) {}

// MultiSink fans notifications out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) RunStarted(ctx context.Context, run domain.RunContext) {
	for _, s := range m {
		s.RunStarted(ctx, run)
	}
}

func (m MultiSink) EventFailed(ctx context.Context, runID, title, identity, reason string) {
	for _, s := range m {
		s.EventFailed(ctx, runID, title, identity, reason)
	}
}

func (m MultiSink) RunCompleted(ctx context.Context, run domain.RunContext, stats domain.RunStats, duration time.Duration) {
	for _, s := range m {
		s.RunCompleted(ctx, run, stats, duration)
	}
}
