package config

import (
	"fmt"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	switch cfg.SourceKind {
	case "csv":
		if cfg.CSVPath == "" {
			errs = append(errs, ValidationError{Field: "CSV_PATH", Message: "required when SOURCE_KIND=csv"})
		}
	case "sql":
		if cfg.DatabaseURL == "" {
			errs = append(errs, ValidationError{Field: "DATABASE_URL", Message: "required when SOURCE_KIND=sql"})
		}
		if cfg.SQLView == "" {
			errs = append(errs, ValidationError{Field: "SQL_VIEW", Message: "required when SOURCE_KIND=sql"})
		}
	case "api":
		if cfg.FeedAPIURL == "" {
			errs = append(errs, ValidationError{Field: "FEED_API_URL", Message: "required when SOURCE_KIND=api"})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "SOURCE_KIND",
			Message: fmt.Sprintf("must be 'csv', 'sql' or 'api', got %q", cfg.SourceKind),
		})
	}

	if cfg.PlatformBaseURL == "" {
		errs = append(errs, ValidationError{Field: "PLATFORM_BASE_URL", Message: "required"})
	}
	if cfg.SchedulerAccount == "" {
		errs = append(errs, ValidationError{Field: "SCHEDULER_ACCOUNT", Message: "required"})
	}

	if cfg.LookbackDays < 0 {
		errs = append(errs, ValidationError{Field: "LOOKBACK_DAYS", Message: "must not be negative"})
	}
	if cfg.HorizonDays <= 0 {
		errs = append(errs, ValidationError{Field: "HORIZON_DAYS", Message: "must be positive"})
	}

	for _, dur := range []struct {
		field string
		raw   string
	}{
		{"FEED_API_TIMEOUT", cfg.FeedAPITimeoutStr},
		{"PLATFORM_TIMEOUT", cfg.PlatformTimeoutStr},
		{"RETRY_DELAY", cfg.RetryDelayStr},
		{"HTTP_SHUTDOWN_TIMEOUT", cfg.HTTPShutdownTimeoutStr},
		{"TELEMETRY_WEBHOOK_TIMEOUT", cfg.TelemetryWebhookTimeoutStr},
		{"ANALYTICS_RETENTION", cfg.AnalyticsRetentionStr},
		{"CIRCUIT_BREAKER_COOLDOWN", cfg.CircuitBreakerCooldownStr},
		{"LEADER_RETRY_INTERVAL", cfg.LeaderRetryIntervalStr},
		{"LEADER_HEARTBEAT_INTERVAL", cfg.LeaderHeartbeatIntervalStr},
	} {
		if dur.raw == "" {
			continue
		}
		d, err := time.ParseDuration(dur.raw)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   dur.field,
				Message: fmt.Sprintf("invalid duration: %v", err),
			})
		} else if d <= 0 {
			errs = append(errs, ValidationError{Field: dur.field, Message: "must be positive"})
		}
	}

	if cfg.LeaderEnabled && cfg.DatabaseURL == "" {
		errs = append(errs, ValidationError{Field: "DATABASE_URL", Message: "required when LEADER_ENABLED=true"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
