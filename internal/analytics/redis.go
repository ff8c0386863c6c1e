// Package analytics records per-day run counters in Redis. Dashboards read
// the counters directly; nothing in the sync path depends on them.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stevobenno/panosync/internal/domain"
)

// RedisSink aggregates run outcomes into daily counters. Keys look like
// sync:<metric>:<yyyymmdd> and expire after the configured retention.
type RedisSink struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisSink creates a sink. retention bounds how long daily counters
// live; zero keeps them forever.
func NewRedisSink(client *redis.Client, retention time.Duration) *RedisSink {
	return &RedisSink{client: client, retention: retention}
}

// RecordRun folds one run's counts into today's buckets.
func (s *RedisSink) RecordRun(ctx context.Context, stats domain.RunStats, completedUTC time.Time) error {
	bucket := completedUTC.UTC().Format("20060102")

	counters := map[string]int{
		"runs":      1,
		"read":      stats.Read,
		"upserts":   stats.Upserts,
		"unchanged": stats.Unchanged,
		"errors":    stats.Errors,
		"deleted":   stats.Deleted,
	}

	pipe := s.client.Pipeline()
	for metric, n := range counters {
		if n == 0 && metric != "runs" {
			continue
		}
		key := buildKey(metric, bucket)
		pipe.IncrBy(ctx, key, int64(n))
		if s.retention > 0 {
			pipe.Expire(ctx, key, s.retention)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

func buildKey(metric, bucket string) string {
	return fmt.Sprintf("sync:%s:%s", metric, bucket)
}
