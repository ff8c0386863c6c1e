// Package syncer reconciles one timetable event at a time against the remote
// platform.
//
// A run is three phases: BeginRun seeds the working set from a remote
// listing, Sync classifies and applies each event, and CompleteRun computes
// deletion candidates behind the safety guards. Per-event failures are
// counted and logged, never propagated; one bad row must not abort a run.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/stevobenno/panosync/internal/domain"
	"github.com/stevobenno/panosync/internal/folder"
	"github.com/stevobenno/panosync/internal/identity"
	"github.com/stevobenno/panosync/internal/metrics"
	"github.com/stevobenno/panosync/internal/platform"
	"github.com/stevobenno/panosync/internal/workingset"
)

// Config holds syncer policy knobs.
type Config struct {
	// Overwrite requests deletion of conflicting sessions when a schedule
	// call reports conflicts, followed by a single retry.
	Overwrite bool

	// AlienInspect enables detection and logging of in-window sessions with
	// no identity tag. Inspection only: destructive cleanup of alien
	// sessions stays disabled until a stronger ownership signal exists (a
	// previous purge pass hit personal sessions).
	AlienInspect bool

	// RetryAttempts bounds schedule attempts against transient faults.
	// Default: 3.
	RetryAttempts int

	// RetryDelay is the fixed wait between transient-fault retries.
	// Default: 3 seconds.
	RetryDelay time.Duration
}

// DefaultConfig returns the default syncer configuration.
func DefaultConfig() Config {
	return Config{
		Overwrite:     true,
		AlienInspect:  true,
		RetryAttempts: 3,
		RetryDelay:    3 * time.Second,
	}
}

// Service reconciles events against the remote platform for one run at a
// time. Not safe for concurrent use; runs are strictly sequential.
type Service struct {
	config    Config
	sessions  platform.SessionAPI
	folders   platform.FolderAPI
	recorders platform.RecorderAPI
	store     *workingset.Store
	metrics   metrics.Sink
	clock     func() time.Time
	sleep     func(context.Context, time.Duration) error

	// per-run state, reset by BeginRun
	run      domain.RunContext
	resolver *folder.Resolver
	stats    domain.RunStats
}

// New creates a Service. The working set is owned by the service and recycled
// across runs.
func New(config Config, client platform.Client, store *workingset.Store) *Service {
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 3 * time.Second
	}
	return &Service{
		config:    config,
		sessions:  client.Sessions(),
		folders:   client.Folders(),
		recorders: client.Recorders(),
		store:     store,
		metrics:   metrics.NewNoopSink(),
		clock:     time.Now,
		sleep:     sleepCtx,
	}
}

// WithMetrics attaches a metrics sink.
func (s *Service) WithMetrics(sink metrics.Sink) *Service {
	s.metrics = sink
	return s
}

// BeginRun opens a run: it wipes the working set, lists the remote window,
// seeds the store, and inspects alien sessions. A failure here is run-fatal:
// without a complete seed, no deletion decision can be trusted.
func (s *Service) BeginRun(ctx context.Context, run domain.RunContext) error {
	s.run = run
	s.stats = domain.RunStats{}
	s.resolver = folder.NewResolver(s.folders)

	log.Printf("syncer: run %s opened window=%s..%s dryRun=%v allowDeletions=%v horizon=%dd",
		run.RunID,
		run.ListFromUTC.Format(time.RFC3339), run.ListToUTC.Format(time.RFC3339),
		run.DryRun, run.AllowDeletions, run.DeleteHorizonDays)

	s.store.BeginRun(run.RunID, run.StartedUTC)

	listed, err := s.sessions.ListScheduled(ctx, run.ListFromUTC, run.ListToUTC)
	if err != nil {
		return fmt.Errorf("seed working set: %w", err)
	}

	seeded, aliens := s.store.SeedExisting(listed)
	s.metrics.AlienSessionsDetected(aliens)

	log.Printf("syncer: run %s seeded listed=%d tagged=%d aliens=%d",
		run.RunID, len(listed), seeded, aliens)

	s.inspectAliens(aliens)
	return nil
}

// inspectAliens logs untagged in-window sessions. Log only: the old hard
// delete behaviour was removed after it hit personal and non-timetable
// sessions, and must not come back without a dedicated ownership tag.
func (s *Service) inspectAliens(count int) {
	if !s.config.AlienInspect {
		log.Printf("syncer: alien session inspection disabled by configuration")
		return
	}
	if count == 0 {
		return
	}
	if s.run.DryRun {
		log.Printf("syncer: DRYRUN detected %d alien session(s) with no identity tag in window", count)
		return
	}
	log.Printf("syncer: detected %d alien session(s) with no identity tag in window; "+
		"not provably owned by this feed, logged only, no deletions performed", count)
}

// Sync reconciles one event. It never returns an error: every failure is
// counted, logged with the event's title and identity, and processing
// continues with the next event.
func (s *Service) Sync(ctx context.Context, ev domain.SourceEvent, sess domain.ScheduledSession) {
	s.stats.Read++

	id, err := identity.Compute(ev)
	if err != nil {
		s.fail(sess.Title, "", fmt.Errorf("compute identity: %w", err))
		return
	}

	s.store.MarkSeen(id)

	if sessionID, ok := s.store.GetExisting(id); ok {
		s.stats.Unchanged++
		s.metrics.EventOutcome(metrics.OutcomeUnchanged)
		if !s.run.DryRun {
			s.refreshMetadata(ctx, sessionID, id, sess)
		}
		return
	}

	if s.run.DryRun {
		log.Printf("syncer: DRYRUN would create %q [%s]", sess.Title, id)
		s.store.Upsert(id, uuid.Nil, s.run.StartedUTC)
		s.stats.Upserts++
		s.metrics.EventOutcome(metrics.OutcomeUpserted)
		return
	}

	if err := s.create(ctx, id, sess); err != nil {
		s.fail(sess.Title, id, err)
		return
	}

	s.stats.Upserts++
	s.metrics.EventOutcome(metrics.OutcomeUpserted)
}

// create runs the create path: resolve folder and recorder, schedule with
// conflict and transient-fault handling, tag, then record the real remote id.
func (s *Service) create(ctx context.Context, id string, sess domain.ScheduledSession) error {
	f, err := s.resolver.Resolve(ctx, sess.FolderQuery)
	if err != nil {
		if errors.Is(err, folder.ErrNotFound) {
			return fmt.Errorf("no folder matches query %q: %w", sess.FolderQuery, err)
		}
		return fmt.Errorf("resolve folder %q: %w", sess.FolderQuery, err)
	}

	rec, err := s.recorders.GetByName(ctx, sess.RecorderName)
	if err != nil {
		return fmt.Errorf("resolve recorder %q: %w", sess.RecorderName, err)
	}

	result, err := s.schedule(ctx, platform.ScheduleRequest{
		Title:       sess.Title,
		FolderID:    f.ID,
		Webcast:     sess.Webcast,
		StartUTC:    sess.StartUTC,
		EndUTC:      sess.EndUTC,
		RecorderIDs: []uuid.UUID{rec.ID},
	})
	if err != nil {
		return err
	}

	// Tagging is what makes the session recognisable next run; a failure
	// here is a real error, not best-effort metadata.
	if err := s.sessions.SetIdentityTag(ctx, result.SessionID, id); err != nil {
		return fmt.Errorf("tag session %s: %w", result.SessionID, err)
	}

	s.setMetadata(ctx, result.SessionID, sess)

	s.store.Upsert(id, result.SessionID, s.clock().UTC())
	log.Printf("syncer: created %q [%s] session=%s folder=%q", sess.Title, id, result.SessionID, f.Name)
	return nil
}

// schedule invokes the remote schedule operation with two layers of
// handling: conflicting sessions are deleted and the call retried once when
// overwrite is enabled, and likely-transient faults are retried a bounded
// number of times with a fixed delay. Nothing else is ever retried.
func (s *Service) schedule(ctx context.Context, req platform.ScheduleRequest) (domain.ScheduleResult, error) {
	result, err := s.scheduleWithRetry(ctx, req)
	if err != nil {
		return domain.ScheduleResult{}, err
	}

	if result.Success {
		return result, nil
	}

	if len(result.ConflictingIDs) == 0 {
		return domain.ScheduleResult{}, fmt.Errorf("schedule failed: %s", result.Message)
	}

	if !s.config.Overwrite {
		return domain.ScheduleResult{}, fmt.Errorf(
			"schedule conflicts with %d session(s) and overwrite is disabled", len(result.ConflictingIDs))
	}

	// Delete the blockers one at a time so a failure can name the session
	// that blocked rescheduling.
	for _, conflictID := range result.ConflictingIDs {
		if err := s.sessions.Delete(ctx, []uuid.UUID{conflictID}); err != nil {
			return domain.ScheduleResult{}, fmt.Errorf(
				"conflicting session %s could not be deleted, rescheduling blocked: %w", conflictID, err)
		}
		log.Printf("syncer: deleted conflicting session %s for %q", conflictID, req.Title)
	}

	result, err = s.scheduleWithRetry(ctx, req)
	if err != nil {
		return domain.ScheduleResult{}, err
	}
	if !result.Success {
		return domain.ScheduleResult{}, fmt.Errorf("schedule failed after conflict removal: %s", result.Message)
	}
	return result, nil
}

// scheduleWithRetry retries only faults carrying the platform's
// likely-transient signature, up to the configured bound, with a fixed delay.
func (s *Service) scheduleWithRetry(ctx context.Context, req platform.ScheduleRequest) (domain.ScheduleResult, error) {
	var lastErr error
	for attempt := 1; attempt <= s.config.RetryAttempts; attempt++ {
		if attempt > 1 {
			s.metrics.RemoteRetryAttempt()
			log.Printf("syncer: transient fault scheduling %q, attempt %d/%d after %s",
				req.Title, attempt, s.config.RetryAttempts, s.config.RetryDelay)
			if err := s.sleep(ctx, s.config.RetryDelay); err != nil {
				return domain.ScheduleResult{}, err
			}
		}

		result, err := s.sessions.Schedule(ctx, req)
		if err == nil {
			return result, nil
		}
		if !platform.IsTransient(err) {
			return domain.ScheduleResult{}, fmt.Errorf("schedule: %w", err)
		}
		lastErr = err
	}
	return domain.ScheduleResult{}, fmt.Errorf("schedule: transient fault persisted after %d attempts: %w",
		s.config.RetryAttempts, lastErr)
}

// refreshMetadata re-applies identity tag, owner and availability start to a
// session that already exists. Best-effort: failures are logged, never fatal
// to the event.
func (s *Service) refreshMetadata(ctx context.Context, sessionID uuid.UUID, id string, sess domain.ScheduledSession) {
	if sessionID == uuid.Nil {
		return
	}
	if err := s.sessions.SetIdentityTag(ctx, sessionID, id); err != nil {
		log.Printf("syncer: refresh identity tag on %s failed: %v", sessionID, err)
	}
	s.setMetadata(ctx, sessionID, sess)
}

// setMetadata applies owner and availability start. Best-effort.
func (s *Service) setMetadata(ctx context.Context, sessionID uuid.UUID, sess domain.ScheduledSession) {
	if sess.Owner != "" {
		if err := s.sessions.SetOwner(ctx, sessionID, sess.Owner); err != nil {
			log.Printf("syncer: set owner on %s failed: %v", sessionID, err)
		}
	}
	if err := s.sessions.SetAvailabilityStart(ctx, sessionID, sess.StartUTC); err != nil {
		log.Printf("syncer: set availability start on %s failed: %v", sessionID, err)
	}
}

// CompleteRun closes the run: it applies the low-water guard, computes
// deletion candidates, deletes them when allowed, and returns the final
// counts.
func (s *Service) CompleteRun(ctx context.Context) (domain.RunStats, error) {
	allowDeletes := s.run.AllowDeletions

	if s.run.MinExpectedRows > 0 && s.stats.Read < s.run.MinExpectedRows {
		allowDeletes = false
		s.metrics.LowWaterGuardTripped()
		log.Printf("syncer: low-water guard tripped, read=%d expected>=%d, deletions suppressed",
			s.stats.Read, s.run.MinExpectedRows)
	}

	if allowDeletes {
		candidates := s.store.DeletionCandidates(s.run.DeleteHorizonDays, s.clock().UTC())
		switch {
		case len(candidates) == 0:
			// nothing stale
		case s.run.DryRun:
			log.Printf("syncer: DRYRUN would delete %d session(s)", len(candidates))
		default:
			ids := s.store.ResolveSessionIDs(candidates)
			if len(ids) > 0 {
				if err := s.sessions.Delete(ctx, ids); err != nil {
					s.stats.Errors++
					log.Printf("syncer: deleting %d stale session(s) failed: %v", len(ids), err)
				} else {
					s.stats.Deleted = len(ids)
					s.metrics.DeletionsApplied(len(ids))
				}
			}
		}
	}

	log.Printf("syncer: run %s completed read=%d upserts=%d unchanged=%d errors=%d deleted=%d dryRun=%v",
		s.run.RunID, s.stats.Read, s.stats.Upserts, s.stats.Unchanged, s.stats.Errors, s.stats.Deleted, s.run.DryRun)

	return s.stats, nil
}

func (s *Service) fail(title, id string, err error) {
	s.stats.Errors++
	s.metrics.EventOutcome(metrics.OutcomeError)
	log.Printf("syncer: event %q [%s] failed: %v", title, id, err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
