package config

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// Config holds all configuration for the panosync application.
// Values are loaded from environment variables.
type Config struct {
	// Feed source. SourceKind selects the provider: "csv", "sql" or "api".
	SourceKind  string `json:"source_kind"`
	CSVPath     string `json:"csv_path,omitempty"`
	DatabaseURL string `json:"database_url,omitempty"`
	SQLView     string `json:"sql_view,omitempty"`
	FeedAPIURL  string `json:"feed_api_url,omitempty"`
	FeedAPIKey  string `json:"feed_api_key,omitempty"`

	FeedAPITimeout    time.Duration `json:"-"`
	FeedAPITimeoutStr string        `json:"feed_api_timeout"`

	// Remote scheduling platform.
	PlatformBaseURL    string        `json:"platform_base_url"`
	PlatformAPIKey     string        `json:"platform_api_key"`
	PlatformTimeout    time.Duration `json:"-"`
	PlatformTimeoutStr string        `json:"platform_timeout"`

	// SchedulerAccount owns created sessions when the event names no staff.
	SchedulerAccount string `json:"scheduler_account"`

	// Sync policy.
	LookbackDays       int  `json:"lookback_days"`
	HorizonDays        int  `json:"horizon_days"`
	MinExpectedRows    int  `json:"min_expected_rows"`
	AllowDeletions     bool `json:"allow_deletions"`
	DeleteHorizonDays  int  `json:"delete_horizon_days"`
	DryRun             bool `json:"dry_run"`
	OverwriteConflicts bool `json:"overwrite_conflicts"`
	AlienInspect       bool `json:"alien_inspect"`

	RetryAttempts int           `json:"retry_attempts"`
	RetryDelay    time.Duration `json:"-"`
	RetryDelayStr string        `json:"retry_delay"`

	// Serve mode.
	SyncSchedule string `json:"sync_schedule"`
	SyncTimezone string `json:"sync_timezone"`
	HTTPAddr     string `json:"http_addr"`

	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`

	// Telemetry webhook. Empty URL disables it.
	TelemetryWebhookURL        string        `json:"telemetry_webhook_url,omitempty"`
	TelemetryWebhookSecret     string        `json:"telemetry_webhook_secret,omitempty"`
	TelemetryWebhookTimeout    time.Duration `json:"-"`
	TelemetryWebhookTimeoutStr string        `json:"telemetry_webhook_timeout"`

	// Analytics. Empty address disables the Redis sink.
	RedisAddr             string        `json:"redis_addr,omitempty"`
	AnalyticsRetention    time.Duration `json:"-"`
	AnalyticsRetentionStr string        `json:"analytics_retention"`

	// CircuitBreakerThreshold: 0 disables the circuit breaker.
	CircuitBreakerThreshold   int           `json:"circuit_breaker_threshold"`
	CircuitBreakerCooldown    time.Duration `json:"-"`
	CircuitBreakerCooldownStr string        `json:"circuit_breaker_cooldown"`

	// Leader election for multi-instance serve mode. Requires DATABASE_URL.
	LeaderEnabled bool  `json:"leader_enabled"`
	LeaderLockKey int64 `json:"leader_lock_key"`

	LeaderRetryInterval    time.Duration `json:"-"`
	LeaderRetryIntervalStr string        `json:"leader_retry_interval"`

	LeaderHeartbeatInterval    time.Duration `json:"-"`
	LeaderHeartbeatIntervalStr string        `json:"leader_heartbeat_interval"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		SourceKind:                 os.Getenv("SOURCE_KIND"),
		CSVPath:                    os.Getenv("CSV_PATH"),
		DatabaseURL:                os.Getenv("DATABASE_URL"),
		SQLView:                    os.Getenv("SQL_VIEW"),
		FeedAPIURL:                 os.Getenv("FEED_API_URL"),
		FeedAPIKey:                 os.Getenv("FEED_API_KEY"),
		FeedAPITimeoutStr:          os.Getenv("FEED_API_TIMEOUT"),
		PlatformBaseURL:            os.Getenv("PLATFORM_BASE_URL"),
		PlatformAPIKey:             os.Getenv("PLATFORM_API_KEY"),
		PlatformTimeoutStr:         os.Getenv("PLATFORM_TIMEOUT"),
		SchedulerAccount:           os.Getenv("SCHEDULER_ACCOUNT"),
		AllowDeletions:             os.Getenv("ALLOW_DELETIONS") == "true",
		DryRun:                     os.Getenv("DRY_RUN") == "true",
		OverwriteConflicts:         os.Getenv("OVERWRITE_CONFLICTS") != "false",
		AlienInspect:               os.Getenv("ALIEN_INSPECT") != "false",
		RetryDelayStr:              os.Getenv("RETRY_DELAY"),
		SyncSchedule:               os.Getenv("SYNC_SCHEDULE"),
		SyncTimezone:               os.Getenv("SYNC_TIMEZONE"),
		HTTPAddr:                   os.Getenv("HTTP_ADDR"),
		HTTPShutdownTimeoutStr:     os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		MetricsEnabled:             os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:                os.Getenv("METRICS_PATH"),
		TelemetryWebhookURL:        os.Getenv("TELEMETRY_WEBHOOK_URL"),
		TelemetryWebhookSecret:     os.Getenv("TELEMETRY_WEBHOOK_SECRET"),
		TelemetryWebhookTimeoutStr: os.Getenv("TELEMETRY_WEBHOOK_TIMEOUT"),
		RedisAddr:                  os.Getenv("REDIS_ADDR"),
		AnalyticsRetentionStr:      os.Getenv("ANALYTICS_RETENTION"),
		CircuitBreakerCooldownStr:  os.Getenv("CIRCUIT_BREAKER_COOLDOWN"),
		LeaderEnabled:              os.Getenv("LEADER_ENABLED") == "true",
		LeaderRetryIntervalStr:     os.Getenv("LEADER_RETRY_INTERVAL"),
		LeaderHeartbeatIntervalStr: os.Getenv("LEADER_HEARTBEAT_INTERVAL"),
	}

	if cfg.SourceKind == "" {
		cfg.SourceKind = "csv"
	}

	cfg.LookbackDays = intEnv("LOOKBACK_DAYS", 30)
	cfg.HorizonDays = intEnv("HORIZON_DAYS", 365)
	cfg.MinExpectedRows = intEnv("MIN_EXPECTED_ROWS", 0)
	cfg.DeleteHorizonDays = intEnv("DELETE_HORIZON_DAYS", 0)
	cfg.RetryAttempts = intEnv("RETRY_ATTEMPTS", 3)
	cfg.CircuitBreakerThreshold = intEnv("CIRCUIT_BREAKER_THRESHOLD", 5)
	cfg.LeaderLockKey = int64(intEnv("LEADER_LOCK_KEY", 905311))

	// Support PaaS-style PORT as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	if cfg.FeedAPITimeoutStr == "" {
		cfg.FeedAPITimeoutStr = "30s"
	}
	if cfg.PlatformTimeoutStr == "" {
		cfg.PlatformTimeoutStr = "60s"
	}
	if cfg.RetryDelayStr == "" {
		cfg.RetryDelayStr = "3s"
	}
	if cfg.SyncSchedule == "" {
		cfg.SyncSchedule = "0 6 * * *"
	}
	if cfg.SyncTimezone == "" {
		cfg.SyncTimezone = "UTC"
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.TelemetryWebhookTimeoutStr == "" {
		cfg.TelemetryWebhookTimeoutStr = "10s"
	}
	if cfg.AnalyticsRetentionStr == "" {
		cfg.AnalyticsRetentionStr = "2160h" // 90 days
	}
	if cfg.CircuitBreakerCooldownStr == "" {
		cfg.CircuitBreakerCooldownStr = "2m"
	}
	if cfg.LeaderRetryIntervalStr == "" {
		cfg.LeaderRetryIntervalStr = "5s"
	}
	if cfg.LeaderHeartbeatIntervalStr == "" {
		cfg.LeaderHeartbeatIntervalStr = "2s"
	}

	// Parse durations; validation is handled separately by Validate().
	if d, err := time.ParseDuration(cfg.FeedAPITimeoutStr); err == nil {
		cfg.FeedAPITimeout = d
	}
	if d, err := time.ParseDuration(cfg.PlatformTimeoutStr); err == nil {
		cfg.PlatformTimeout = d
	}
	if d, err := time.ParseDuration(cfg.RetryDelayStr); err == nil {
		cfg.RetryDelay = d
	}
	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}
	if d, err := time.ParseDuration(cfg.TelemetryWebhookTimeoutStr); err == nil {
		cfg.TelemetryWebhookTimeout = d
	}
	if d, err := time.ParseDuration(cfg.AnalyticsRetentionStr); err == nil {
		cfg.AnalyticsRetention = d
	}
	if d, err := time.ParseDuration(cfg.CircuitBreakerCooldownStr); err == nil {
		cfg.CircuitBreakerCooldown = d
	}
	if d, err := time.ParseDuration(cfg.LeaderRetryIntervalStr); err == nil {
		cfg.LeaderRetryInterval = d
	}
	if d, err := time.ParseDuration(cfg.LeaderHeartbeatIntervalStr); err == nil {
		cfg.LeaderHeartbeatInterval = d
	}

	return cfg
}

// intEnv parses a non-negative integer environment variable with a default.
func intEnv(name string, def int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	n, err := parseInt(raw)
	if err != nil {
		log.Printf("config: invalid %s %q (must be a non-negative integer), using default %d", name, raw, def)
		return def
	}
	return n
}

// parseInt parses a string as a non-negative integer.
func parseInt(s string) (int, error) {
	if s == "" {
		return 0, os.ErrInvalid
	}
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		SourceKind              string `json:"source_kind"`
		CSVPath                 string `json:"csv_path,omitempty"`
		DatabaseURL             string `json:"database_url,omitempty"`
		SQLView                 string `json:"sql_view,omitempty"`
		FeedAPIURL              string `json:"feed_api_url,omitempty"`
		FeedAPIKey              string `json:"feed_api_key,omitempty"`
		FeedAPITimeout          string `json:"feed_api_timeout"`
		PlatformBaseURL         string `json:"platform_base_url"`
		PlatformAPIKey          string `json:"platform_api_key"`
		PlatformTimeout         string `json:"platform_timeout"`
		SchedulerAccount        string `json:"scheduler_account"`
		LookbackDays            int    `json:"lookback_days"`
		HorizonDays             int    `json:"horizon_days"`
		MinExpectedRows         int    `json:"min_expected_rows"`
		AllowDeletions          bool   `json:"allow_deletions"`
		DeleteHorizonDays       int    `json:"delete_horizon_days"`
		DryRun                  bool   `json:"dry_run"`
		OverwriteConflicts      bool   `json:"overwrite_conflicts"`
		AlienInspect            bool   `json:"alien_inspect"`
		RetryAttempts           int    `json:"retry_attempts"`
		RetryDelay              string `json:"retry_delay"`
		SyncSchedule            string `json:"sync_schedule"`
		SyncTimezone            string `json:"sync_timezone"`
		HTTPAddr                string `json:"http_addr"`
		HTTPShutdownTimeout     string `json:"http_shutdown_timeout"`
		MetricsEnabled          bool   `json:"metrics_enabled"`
		MetricsPath             string `json:"metrics_path"`
		TelemetryWebhookURL     string `json:"telemetry_webhook_url,omitempty"`
		TelemetryWebhookSecret  string `json:"telemetry_webhook_secret,omitempty"`
		TelemetryWebhookTimeout string `json:"telemetry_webhook_timeout"`
		RedisAddr               string `json:"redis_addr,omitempty"`
		AnalyticsRetention      string `json:"analytics_retention"`
		CircuitBreakerThreshold int    `json:"circuit_breaker_threshold"`
		CircuitBreakerCooldown  string `json:"circuit_breaker_cooldown"`
		LeaderEnabled           bool   `json:"leader_enabled"`
		LeaderLockKey           int64  `json:"leader_lock_key"`
		LeaderRetryInterval     string `json:"leader_retry_interval"`
		LeaderHeartbeatInterval string `json:"leader_heartbeat_interval"`
	}{
		SourceKind:              c.SourceKind,
		CSVPath:                 c.CSVPath,
		DatabaseURL:             maskSecret(c.DatabaseURL),
		SQLView:                 c.SQLView,
		FeedAPIURL:              c.FeedAPIURL,
		FeedAPIKey:              maskSecret(c.FeedAPIKey),
		FeedAPITimeout:          c.FeedAPITimeoutStr,
		PlatformBaseURL:         c.PlatformBaseURL,
		PlatformAPIKey:          maskSecret(c.PlatformAPIKey),
		PlatformTimeout:         c.PlatformTimeoutStr,
		SchedulerAccount:        c.SchedulerAccount,
		LookbackDays:            c.LookbackDays,
		HorizonDays:             c.HorizonDays,
		MinExpectedRows:         c.MinExpectedRows,
		AllowDeletions:          c.AllowDeletions,
		DeleteHorizonDays:       c.DeleteHorizonDays,
		DryRun:                  c.DryRun,
		OverwriteConflicts:      c.OverwriteConflicts,
		AlienInspect:            c.AlienInspect,
		RetryAttempts:           c.RetryAttempts,
		RetryDelay:              c.RetryDelayStr,
		SyncSchedule:            c.SyncSchedule,
		SyncTimezone:            c.SyncTimezone,
		HTTPAddr:                c.HTTPAddr,
		HTTPShutdownTimeout:     c.HTTPShutdownTimeoutStr,
		MetricsEnabled:          c.MetricsEnabled,
		MetricsPath:             c.MetricsPath,
		TelemetryWebhookURL:     c.TelemetryWebhookURL,
		TelemetryWebhookSecret:  maskSecret(c.TelemetryWebhookSecret),
		TelemetryWebhookTimeout: c.TelemetryWebhookTimeoutStr,
		RedisAddr:               c.RedisAddr,
		AnalyticsRetention:      c.AnalyticsRetentionStr,
		CircuitBreakerThreshold: c.CircuitBreakerThreshold,
		CircuitBreakerCooldown:  c.CircuitBreakerCooldownStr,
		LeaderEnabled:           c.LeaderEnabled,
		LeaderLockKey:           c.LeaderLockKey,
		LeaderRetryInterval:     c.LeaderRetryIntervalStr,
		LeaderHeartbeatInterval: c.LeaderHeartbeatIntervalStr,
	}
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if len(s) >= len(scheme) && s[:len(scheme)] == scheme {
			return scheme + "***"
		}
	}
	return "***"
}
