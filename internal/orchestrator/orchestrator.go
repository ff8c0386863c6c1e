// Package orchestrator drives one reconciliation run end to end: it mints
// the run context, streams the feed through the transformer into the sync
// engine, and closes the run out with telemetry, metrics and analytics.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stevobenno/panosync/internal/domain"
	"github.com/stevobenno/panosync/internal/metrics"
	"github.com/stevobenno/panosync/internal/source"
	"github.com/stevobenno/panosync/internal/telemetry"
	"github.com/stevobenno/panosync/internal/transform"
)

const progressEvery = 100

// Engine is the reconciliation core a run feeds events into.
type Engine interface {
	BeginRun(ctx context.Context, run domain.RunContext) error
	Sync(ctx context.Context, ev domain.SourceEvent, sess domain.ScheduledSession)
	CompleteRun(ctx context.Context) (domain.RunStats, error)
}

// AnalyticsRecorder folds completed-run counts into long-term storage.
type AnalyticsRecorder interface {
	RecordRun(ctx context.Context, stats domain.RunStats, completedUTC time.Time) error
}

// Config holds run-shaping policy.
type Config struct {
	// LookbackDays and HorizonDays bound the listing window around now.
	LookbackDays int
	HorizonDays  int

	MinExpectedRows   int
	AllowDeletions    bool
	DeleteHorizonDays int
}

// Orchestrator runs reconciliations. Runs are sequential; the caller is
// responsible for not invoking Run concurrently.
type Orchestrator struct {
	config      Config
	provider    source.Provider
	transformer *transform.Transformer
	engine      Engine
	metrics     metrics.Sink
	telemetry   telemetry.Sink
	analytics   AnalyticsRecorder
	clock       func() time.Time
}

// New creates an Orchestrator.
func New(config Config, provider source.Provider, transformer *transform.Transformer, engine Engine) *Orchestrator {
	return &Orchestrator{
		config:      config,
		provider:    provider,
		transformer: transformer,
		engine:      engine,
		metrics:     metrics.NewNoopSink(),
		telemetry:   telemetry.NewNoopSink(),
		clock:       time.Now,
	}
}

// WithMetrics attaches a metrics sink.
func (o *Orchestrator) WithMetrics(sink metrics.Sink) *Orchestrator {
	o.metrics = sink
	return o
}

// WithTelemetry attaches a telemetry sink.
func (o *Orchestrator) WithTelemetry(sink telemetry.Sink) *Orchestrator {
	o.telemetry = sink
	return o
}

// WithAnalytics attaches a run-summary recorder.
func (o *Orchestrator) WithAnalytics(rec AnalyticsRecorder) *Orchestrator {
	o.analytics = rec
	return o
}

// Run executes one full reconciliation. Cancellation or a terminal feed
// failure mid-stream aborts the run before the deletion pass, so a half-read
// feed can never trigger deletions.
func (o *Orchestrator) Run(ctx context.Context, dryRun bool) (domain.RunStats, error) {
	started := o.clock().UTC()
	run := domain.RunContext{
		RunID:             newRunID(),
		DryRun:            dryRun,
		MinExpectedRows:   o.config.MinExpectedRows,
		AllowDeletions:    o.config.AllowDeletions,
		DeleteHorizonDays: o.config.DeleteHorizonDays,
		StartedUTC:        started,
		ListFromUTC:       started.AddDate(0, 0, -o.config.LookbackDays),
		ListToUTC:         started.AddDate(0, 0, o.config.HorizonDays),
	}

	log.Printf("run %s: starting source=%s dryRun=%v", run.RunID, o.provider.Name(), dryRun)
	o.metrics.RunStarted()
	o.telemetry.RunStarted(ctx, run)

	stats, err := o.run(ctx, run)

	duration := o.clock().UTC().Sub(started)
	o.metrics.RunCompleted(duration, err)
	o.telemetry.RunCompleted(ctx, run, stats, duration)

	if err == nil && o.analytics != nil {
		if aerr := o.analytics.RecordRun(ctx, stats, o.clock().UTC()); aerr != nil {
			log.Printf("run %s: analytics write failed: %v", run.RunID, aerr)
		}
	}

	if err != nil {
		return stats, fmt.Errorf("run %s: %w", run.RunID, err)
	}
	return stats, nil
}

func (o *Orchestrator) run(ctx context.Context, run domain.RunContext) (domain.RunStats, error) {
	if err := o.engine.BeginRun(ctx, run); err != nil {
		return domain.RunStats{}, err
	}

	rows, err := o.provider.Stream(ctx, run.ListFromUTC, run.ListToUTC)
	if err != nil {
		return domain.RunStats{}, fmt.Errorf("open feed: %w", err)
	}

	processed := 0
	rowErrors := 0
	for row := range rows {
		if ctx.Err() != nil {
			return domain.RunStats{}, fmt.Errorf("feed interrupted: %w", ctx.Err())
		}

		if row.Terminal {
			// The feed died mid-stream. The "seen" set is incomplete, so no
			// deletion decision can be made from it.
			return domain.RunStats{}, fmt.Errorf("feed failed: %w", row.Err)
		}

		processed++
		if row.Err != nil {
			rowErrors++
			o.metrics.EventOutcome(metrics.OutcomeError)
			o.telemetry.EventFailed(ctx, run.RunID, "", "", row.Err.Error())
			log.Printf("run %s: bad feed row: %v", run.RunID, row.Err)
			continue
		}

		sess := o.transformer.Transform(row.Event)
		o.engine.Sync(ctx, row.Event, sess)

		if processed%progressEvery == 0 {
			log.Printf("run %s: processed %d rows", run.RunID, processed)
		}
	}

	if ctx.Err() != nil {
		// The channel closed because the producer saw the cancellation, not
		// because the feed ended. Skip the deletion pass.
		return domain.RunStats{}, fmt.Errorf("feed interrupted: %w", ctx.Err())
	}

	o.metrics.RowsRead(processed)

	stats, err := o.engine.CompleteRun(ctx)
	stats.Errors += rowErrors
	return stats, err
}

// newRunID returns a compact run identifier for log correlation.
func newRunID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
