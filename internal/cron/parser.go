// Package cron parses the sync schedule expression and drives the serve-mode
// loop that fires reconciliation runs.
package cron

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule yields the next firing time after a given instant.
type Schedule interface {
	Next(after time.Time) time.Time
}

// Parser parses standard five-field cron expressions in a named timezone.
type Parser struct {
	parser cron.Parser
}

func NewParser() *Parser {
	return &Parser{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// Parse validates the expression and binds it to the timezone. Timetable
// feeds publish in local campus time, so the schedule follows that zone
// through DST rather than fixed UTC offsets.
func (p *Parser) Parse(expression string, timezone string) (Schedule, error) {
	sched, err := p.parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parse cron: %w", err)
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	return &schedule{sched: sched, loc: loc}, nil
}

type schedule struct {
	sched cron.Schedule
	loc   *time.Location
}

func (s *schedule) Next(after time.Time) time.Time {
	return s.sched.Next(after.In(s.loc))
}

// Loop fires fn at every scheduled tick until ctx is cancelled. Ticks are
// strictly sequential: a run that overlaps the next tick delays it rather
// than running twice.
func Loop(ctx context.Context, sched Schedule, clock func() time.Time, fn func(context.Context)) {
	for {
		next := sched.Next(clock())
		wait := next.Sub(clock())
		log.Printf("cron: next run at %s (in %s)", next.Format(time.RFC3339), wait.Round(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		fn(ctx)
	}
}
