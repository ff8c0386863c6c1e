// Package leaderelection keeps multi-instance deployments down to one active
// sync scheduler. The platform tolerates concurrent runs badly: two instances
// reconciling the same window race each other's create and delete passes, so
// only the holder of a Postgres advisory lock fires scheduled runs.
//
// The lock is session-scoped and held for the lifetime of one dedicated
// connection. There is no TTL or renewal; when the connection dies Postgres
// releases the lock server-side. The heartbeat ping only detects local
// connection death so the instance can stand down promptly.
package leaderelection

import (
	"context"
	"database/sql"
	"log"
	"time"
)

// Elector competes for a Postgres advisory lock and runs the leader duty
// while it is held.
type Elector struct {
	db                *sql.DB
	lockKey           int64
	retryInterval     time.Duration
	heartbeatInterval time.Duration
}

// New creates an Elector for lockKey. Followers retry acquisition every
// retryInterval; the leader pings its dedicated connection every
// heartbeatInterval.
func New(db *sql.DB, lockKey int64, retryInterval, heartbeatInterval time.Duration) *Elector {
	return &Elector{
		db:                db,
		lockKey:           lockKey,
		retryInterval:     retryInterval,
		heartbeatInterval: heartbeatInterval,
	}
}

// Run blocks until ctx is cancelled. Whenever this instance holds the lock,
// lead runs in its own goroutine with a context that is cancelled on
// demotion; lead must stop all sync activity when its context ends.
func (e *Elector) Run(ctx context.Context, lead func(ctx context.Context)) {
	log.Printf("leader: election loop started lockKey=%d retry=%s heartbeat=%s",
		e.lockKey, e.retryInterval, e.heartbeatInterval)

	for {
		if ctx.Err() != nil {
			log.Printf("leader: election loop stopped")
			return
		}

		e.lead(ctx, lead)

		select {
		case <-ctx.Done():
			log.Printf("leader: election loop stopped")
			return
		case <-time.After(e.retryInterval):
		}
	}
}

// lead makes one acquisition attempt and, on success, holds the lock until
// the connection dies or ctx ends.
func (e *Elector) lead(ctx context.Context, lead func(ctx context.Context)) {
	// Session-scoped lock, so a dedicated connection is required.
	conn, err := e.db.Conn(ctx)
	if err != nil {
		log.Printf("leader: dedicated connection failed: %v", err)
		return
	}
	defer conn.Close()

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", e.lockKey).Scan(&acquired); err != nil {
		log.Printf("leader: advisory lock query failed: %v", err)
		return
	}
	if !acquired {
		return
	}

	log.Printf("leader: acquired advisory lock %d, sync scheduling active on this instance", e.lockKey)

	leadCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		lead(leadCtx)
	}()

	reason := e.holdLock(ctx, conn)

	cancel()
	<-done
	log.Printf("leader: lost advisory lock %d (%s), sync scheduling stopped", e.lockKey, reason)
}

// holdLock pings the lock connection until it fails or ctx ends.
func (e *Elector) holdLock(ctx context.Context, conn *sql.Conn) string {
	ticker := time.NewTicker(e.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "shutdown"
		case <-ticker.C:
			if err := conn.PingContext(ctx); err != nil {
				if ctx.Err() != nil {
					return "shutdown"
				}
				log.Printf("leader: lock connection ping failed: %v", err)
				return "connection lost"
			}
		}
	}
}
