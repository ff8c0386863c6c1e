package config

import (
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"SOURCE_KIND", "CSV_PATH", "DATABASE_URL", "SQL_VIEW",
		"FEED_API_URL", "FEED_API_KEY", "FEED_API_TIMEOUT",
		"PLATFORM_BASE_URL", "PLATFORM_API_KEY", "PLATFORM_TIMEOUT",
		"SCHEDULER_ACCOUNT", "LOOKBACK_DAYS", "HORIZON_DAYS",
		"MIN_EXPECTED_ROWS", "ALLOW_DELETIONS", "DELETE_HORIZON_DAYS",
		"DRY_RUN", "OVERWRITE_CONFLICTS", "ALIEN_INSPECT",
		"RETRY_ATTEMPTS", "RETRY_DELAY", "SYNC_SCHEDULE", "SYNC_TIMEZONE",
		"HTTP_ADDR", "PORT", "HTTP_SHUTDOWN_TIMEOUT",
		"METRICS_ENABLED", "METRICS_PATH",
		"TELEMETRY_WEBHOOK_URL", "TELEMETRY_WEBHOOK_SECRET", "TELEMETRY_WEBHOOK_TIMEOUT",
		"REDIS_ADDR", "ANALYTICS_RETENTION",
		"CIRCUIT_BREAKER_THRESHOLD", "CIRCUIT_BREAKER_COOLDOWN",
		"LEADER_ENABLED", "LEADER_LOCK_KEY", "LEADER_RETRY_INTERVAL", "LEADER_HEARTBEAT_INTERVAL",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	if cfg.SourceKind != "csv" {
		t.Errorf("SourceKind = %q", cfg.SourceKind)
	}
	if cfg.LookbackDays != 30 || cfg.HorizonDays != 365 {
		t.Errorf("window = %d/%d", cfg.LookbackDays, cfg.HorizonDays)
	}
	if cfg.AllowDeletions || cfg.DryRun {
		t.Error("destructive options must default off")
	}
	if !cfg.OverwriteConflicts || !cfg.AlienInspect {
		t.Error("overwrite and alien inspection default on")
	}
	if cfg.RetryAttempts != 3 || cfg.RetryDelay != 3*time.Second {
		t.Errorf("retry = %d/%s", cfg.RetryAttempts, cfg.RetryDelay)
	}
	if cfg.SyncSchedule != "0 6 * * *" || cfg.SyncTimezone != "UTC" {
		t.Errorf("schedule = %q %q", cfg.SyncSchedule, cfg.SyncTimezone)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.CircuitBreakerThreshold != 5 || cfg.CircuitBreakerCooldown != 2*time.Minute {
		t.Errorf("breaker = %d/%s", cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SOURCE_KIND", "sql")
	t.Setenv("DATABASE_URL", "postgres://sync:hunter2@db/timetable")
	t.Setenv("SQL_VIEW", "timetable_events")
	t.Setenv("MIN_EXPECTED_ROWS", "500")
	t.Setenv("ALLOW_DELETIONS", "true")
	t.Setenv("DRY_RUN", "true")
	t.Setenv("OVERWRITE_CONFLICTS", "false")
	t.Setenv("RETRY_DELAY", "10s")
	t.Setenv("PORT", "9090")

	cfg := Load()
	if cfg.SourceKind != "sql" || cfg.SQLView != "timetable_events" {
		t.Errorf("source = %q/%q", cfg.SourceKind, cfg.SQLView)
	}
	if cfg.MinExpectedRows != 500 {
		t.Errorf("MinExpectedRows = %d", cfg.MinExpectedRows)
	}
	if !cfg.AllowDeletions || !cfg.DryRun || cfg.OverwriteConflicts {
		t.Errorf("flags = %+v", cfg)
	}
	if cfg.RetryDelay != 10*time.Second {
		t.Errorf("RetryDelay = %s", cfg.RetryDelay)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
}

func TestLoadInvalidIntFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOOKBACK_DAYS", "a month")
	cfg := Load()
	if cfg.LookbackDays != 30 {
		t.Errorf("LookbackDays = %d, want default 30", cfg.LookbackDays)
	}
}

func TestMaskedJSONHidesSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://sync:hunter2@db/timetable")
	t.Setenv("PLATFORM_API_KEY", "super-secret-key")
	t.Setenv("TELEMETRY_WEBHOOK_SECRET", "hook-secret")

	out, err := Load().MaskedJSON()
	if err != nil {
		t.Fatalf("MaskedJSON: %v", err)
	}
	s := string(out)
	for _, secret := range []string{"hunter2", "super-secret-key", "hook-secret"} {
		if strings.Contains(s, secret) {
			t.Errorf("masked output leaks %q", secret)
		}
	}
	if !strings.Contains(s, "postgres://***") {
		t.Errorf("database url should keep its scheme: %s", s)
	}
}

func TestValidateHappyPath(t *testing.T) {
	clearEnv(t)
	t.Setenv("SOURCE_KIND", "csv")
	t.Setenv("CSV_PATH", "/data/export.csv")
	t.Setenv("PLATFORM_BASE_URL", "https://platform.example.edu/api")
	t.Setenv("SCHEDULER_ACCOUNT", `unified\scheduler`)

	if err := Validate(Load()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateMissingRequirements(t *testing.T) {
	clearEnv(t)
	err := Validate(Load())
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	for _, field := range []string{"CSV_PATH", "PLATFORM_BASE_URL", "SCHEDULER_ACCOUNT"} {
		if !strings.Contains(msg, field) {
			t.Errorf("missing %s in: %s", field, msg)
		}
	}
}

func TestValidateSourceKinds(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLATFORM_BASE_URL", "https://platform.example.edu/api")
	t.Setenv("SCHEDULER_ACCOUNT", `unified\scheduler`)

	t.Setenv("SOURCE_KIND", "carrier-pigeon")
	if err := Validate(Load()); err == nil || !strings.Contains(err.Error(), "SOURCE_KIND") {
		t.Errorf("unknown source kind should fail: %v", err)
	}

	t.Setenv("SOURCE_KIND", "api")
	if err := Validate(Load()); err == nil || !strings.Contains(err.Error(), "FEED_API_URL") {
		t.Errorf("api source without url should fail: %v", err)
	}

	t.Setenv("FEED_API_URL", "https://timetable.example.edu/feed")
	if err := Validate(Load()); err != nil {
		t.Errorf("api source with url should pass: %v", err)
	}
}

func TestValidateLeaderNeedsDatabase(t *testing.T) {
	clearEnv(t)
	t.Setenv("SOURCE_KIND", "csv")
	t.Setenv("CSV_PATH", "/data/export.csv")
	t.Setenv("PLATFORM_BASE_URL", "https://platform.example.edu/api")
	t.Setenv("SCHEDULER_ACCOUNT", `unified\scheduler`)
	t.Setenv("LEADER_ENABLED", "true")

	if err := Validate(Load()); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("leader election without database should fail: %v", err)
	}
}

func TestValidateBadDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("SOURCE_KIND", "csv")
	t.Setenv("CSV_PATH", "/data/export.csv")
	t.Setenv("PLATFORM_BASE_URL", "https://platform.example.edu/api")
	t.Setenv("SCHEDULER_ACCOUNT", `unified\scheduler`)
	t.Setenv("RETRY_DELAY", "three seconds")

	if err := Validate(Load()); err == nil || !strings.Contains(err.Error(), "RETRY_DELAY") {
		t.Errorf("bad duration should fail: %v", err)
	}
}
