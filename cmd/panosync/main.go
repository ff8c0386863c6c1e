package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/stevobenno/panosync/internal/analytics"
	"github.com/stevobenno/panosync/internal/api"
	"github.com/stevobenno/panosync/internal/circuitbreaker"
	"github.com/stevobenno/panosync/internal/config"
	"github.com/stevobenno/panosync/internal/cron"
	"github.com/stevobenno/panosync/internal/domain"
	"github.com/stevobenno/panosync/internal/leaderelection"
	"github.com/stevobenno/panosync/internal/metrics"
	"github.com/stevobenno/panosync/internal/orchestrator"
	"github.com/stevobenno/panosync/internal/platform/rest"
	"github.com/stevobenno/panosync/internal/source"
	"github.com/stevobenno/panosync/internal/syncer"
	"github.com/stevobenno/panosync/internal/telemetry"
	"github.com/stevobenno/panosync/internal/transform"
	"github.com/stevobenno/panosync/internal/workingset"

	_ "github.com/lib/pq"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
	exitRunErrors     = 3
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	switch cmd := os.Args[1]; cmd {
	case "run":
		os.Exit(runOnce(false))
	case "dry-run":
		os.Exit(runOnce(true))
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`panosync - timetable to recording platform sync

Usage:
  panosync <command>

Commands:
  run        Execute one reconciliation run and exit
  dry-run    Execute one run without mutating the platform
  serve      Run on a cron schedule with an HTTP trigger endpoint
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  SOURCE_KIND               Feed provider: "csv", "sql" or "api" (default: "csv")
  CSV_PATH                  Timetable export path (csv source)
  DATABASE_URL              PostgreSQL connection string (sql source, leader election)
  SQL_VIEW                  Timetable view name (sql source)
  FEED_API_URL              Timetable feed endpoint (api source)
  FEED_API_KEY              Bearer token for the feed endpoint
  FEED_API_TIMEOUT          Feed request timeout (default: "30s")

  PLATFORM_BASE_URL         Recording platform API base URL (required)
  PLATFORM_API_KEY          Platform API key
  PLATFORM_TIMEOUT          Platform call timeout (default: "60s")
  SCHEDULER_ACCOUNT         Session owner fallback account (required)

  LOOKBACK_DAYS             Listing window start, days before now (default: "30")
  HORIZON_DAYS              Listing window end, days after now (default: "365")
  MIN_EXPECTED_ROWS         Low-water guard threshold, 0 disables (default: "0")
  ALLOW_DELETIONS           Delete stale sessions (default: "false")
  DELETE_HORIZON_DAYS       Deletion grace horizon, 0 disables (default: "0")
  DRY_RUN                   Force dry-run in serve mode (default: "false")
  OVERWRITE_CONFLICTS       Delete conflicting sessions and retry (default: "true")
  ALIEN_INSPECT             Log in-window sessions with no identity tag (default: "true")
  RETRY_ATTEMPTS            Transient fault retry bound (default: "3")
  RETRY_DELAY               Delay between retries (default: "3s")

  SYNC_SCHEDULE             Serve-mode cron expression (default: "0 6 * * *")
  SYNC_TIMEZONE             Cron timezone (default: "UTC")
  HTTP_ADDR                 Serve-mode HTTP address (default: ":8080", falls back to PORT)
  HTTP_SHUTDOWN_TIMEOUT     Graceful shutdown window (default: "10s")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")
  TELEMETRY_WEBHOOK_URL     Run lifecycle webhook (optional)
  TELEMETRY_WEBHOOK_SECRET  HMAC signing secret for webhook payloads
  TELEMETRY_WEBHOOK_TIMEOUT Webhook delivery timeout (default: "10s")
  REDIS_ADDR                Redis address for run analytics (optional)
  ANALYTICS_RETENTION       Analytics counter TTL (default: "2160h")
  CIRCUIT_BREAKER_THRESHOLD Consecutive failures before tripping, 0 disables (default: "5")
  CIRCUIT_BREAKER_COOLDOWN  Open-state cooldown before a probe (default: "2m")
  LEADER_ENABLED            Postgres advisory-lock leader election (default: "false")
  LEADER_LOCK_KEY           Advisory lock key (default: "905311")
  LEADER_RETRY_INTERVAL     Lock acquisition retry interval (default: "5s")
  LEADER_HEARTBEAT_INTERVAL Lock liveness check interval (default: "2s")`)
}

// buildOrchestrator wires the full sync pipeline from configuration. The
// returned cleanup closes any connections it opened.
func buildOrchestrator(cfg config.Config, metricsSink metrics.Sink) (*orchestrator.Orchestrator, *sql.DB, func(), error) {
	var (
		db      *sql.DB
		cleanup []func()
	)
	closeAll := func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}

	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open database: %w", err)
		}
		cleanup = append(cleanup, func() { db.Close() })
	}

	var provider source.Provider
	switch cfg.SourceKind {
	case "csv":
		provider = source.NewCSVProvider(cfg.CSVPath)
	case "sql":
		provider = source.NewSQLViewProvider(db, cfg.SQLView)
	case "api":
		provider = source.NewAPIProvider(cfg.FeedAPIURL, cfg.FeedAPIKey, cfg.FeedAPITimeout)
	default:
		closeAll()
		return nil, nil, nil, fmt.Errorf("unknown source kind %q", cfg.SourceKind)
	}

	client := rest.New(cfg.PlatformBaseURL, cfg.PlatformAPIKey, cfg.PlatformTimeout).
		WithMetrics(metricsSink)
	if cfg.CircuitBreakerThreshold > 0 {
		client = client.WithBreaker(circuitbreaker.New(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown))
	}

	engine := syncer.New(syncer.Config{
		Overwrite:     cfg.OverwriteConflicts,
		AlienInspect:  cfg.AlienInspect,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
	}, client, workingset.New()).WithMetrics(metricsSink)

	orch := orchestrator.New(orchestrator.Config{
		LookbackDays:      cfg.LookbackDays,
		HorizonDays:       cfg.HorizonDays,
		MinExpectedRows:   cfg.MinExpectedRows,
		AllowDeletions:    cfg.AllowDeletions,
		DeleteHorizonDays: cfg.DeleteHorizonDays,
	}, provider, transform.New(cfg.SchedulerAccount), engine).
		WithMetrics(metricsSink)

	if cfg.TelemetryWebhookURL != "" {
		orch = orch.WithTelemetry(telemetry.NewWebhookSink(
			cfg.TelemetryWebhookURL, cfg.TelemetryWebhookSecret, cfg.TelemetryWebhookTimeout))
		log.Printf("panosync: telemetry webhook enabled (url=%s)", cfg.TelemetryWebhookURL)
	}

	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		cleanup = append(cleanup, func() { redisClient.Close() })
		orch = orch.WithAnalytics(analytics.NewRedisSink(redisClient, cfg.AnalyticsRetention))
		log.Printf("panosync: analytics enabled (redis=%s)", cfg.RedisAddr)
	}

	return orch, db, closeAll, nil
}

func newMetricsSink(cfg config.Config) metrics.Sink {
	if cfg.MetricsEnabled {
		return metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
	}
	return metrics.NewNoopSink()
}

// runOnce executes a single reconciliation and exits.
func runOnce(dryRun bool) int {
	cfg := config.Load()
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	orch, _, closeAll, err := buildOrchestrator(cfg, newMetricsSink(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitRuntimeError
	}
	defer closeAll()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := orch.Run(ctx, dryRun || cfg.DryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		return exitRuntimeError
	}
	if stats.Errors > 0 {
		return exitRunErrors
	}
	return exitSuccess
}

// runServe runs scheduled syncs plus the HTTP trigger surface until a
// shutdown signal arrives.
func runServe() int {
	cfg := config.Load()
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	sched, err := cron.NewParser().Parse(cfg.SyncSchedule, cfg.SyncTimezone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid SYNC_SCHEDULE: %v\n", err)
		return exitInvalidConfig
	}

	metricsSink := newMetricsSink(cfg)
	orch, db, closeAll, err := buildOrchestrator(cfg, metricsSink)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitRuntimeError
	}
	defer closeAll()

	// One gate for both trigger paths: cron and HTTP runs never overlap.
	gate := &runGate{orch: orch}

	handler := api.NewHandler(gate)
	if db != nil {
		handler = handler.WithHealthChecker(db)
	}

	mux := http.NewServeMux()
	mux.Handle("/", handler)
	if cfg.MetricsEnabled {
		mux.Handle(cfg.MetricsPath, promhttp.Handler())
		log.Printf("panosync: metrics enabled (path=%s)", cfg.MetricsPath)
	}

	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	go func() {
		log.Printf("panosync: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("panosync: http server error: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduled := func(ctx context.Context) {
		cron.Loop(ctx, sched, time.Now, func(runCtx context.Context) {
			_, err := gate.Run(runCtx, cfg.DryRun)
			switch {
			case errors.Is(err, api.ErrRunInFlight):
				log.Printf("panosync: scheduled run skipped, another run is in flight")
			case err != nil:
				log.Printf("panosync: scheduled run failed: %v", err)
			}
		})
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if cfg.LeaderEnabled {
			leaderelection.New(db, cfg.LeaderLockKey, cfg.LeaderRetryInterval, cfg.LeaderHeartbeatInterval).
				Run(ctx, scheduled)
		} else {
			scheduled(ctx)
		}
	}()

	log.Printf("panosync: started (schedule=%q tz=%s http=%s)", cfg.SyncSchedule, cfg.SyncTimezone, cfg.HTTPAddr)

	<-ctx.Done()
	log.Printf("panosync: shutting down")

	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("panosync: http server shutdown error: %v", err)
	}

	log.Printf("panosync: stopped")
	return exitSuccess
}

// runGate is the single in-flight gate for the cron loop and the HTTP
// trigger. A caller that finds a run active gets ErrRunInFlight instead of
// queueing behind it.
type runGate struct {
	mu   sync.Mutex
	orch *orchestrator.Orchestrator
}

func (g *runGate) Run(ctx context.Context, dryRun bool) (domain.RunStats, error) {
	if !g.mu.TryLock() {
		return domain.RunStats{}, api.ErrRunInFlight
	}
	defer g.mu.Unlock()
	return g.orch.Run(ctx, dryRun)
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("panosync version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
