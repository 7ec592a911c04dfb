// Package config loads server settings from the environment. Every setting
// can be overridden by the matching command line flag.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mikepea/snip/pkg/snip/codegen"
	"github.com/mikepea/snip/pkg/snip/sweeper"
	"github.com/spf13/pflag"
)

// Config holds the server settings.
type Config struct {
	DBDSN           string
	DBMaxOpenConns  int
	Port            string
	BaseURL         string
	ShutdownTimeout time.Duration

	JWTSecret     string
	TokenTTL      time.Duration
	AdminUsername string
	AdminEmail    string
	AdminPassword string

	CodeLength    int
	CodeAttempts  int
	StoreTimeout  time.Duration
	EnforceExpiry bool

	StatsTTL time.Duration
	RedisURL string

	SweepSchedule string
	SweepDays     int
	SweepTimeout  time.Duration
	TaskWorkers   int
	TaskBuffer    int

	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

// Load reads the environment, falling back to defaults for unset variables.
// Malformed values are reported together.
func Load() (*Config, error) {
	e := &env{}
	cfg := &Config{
		DBDSN:           e.str("SNIP_DB_DSN", "snip.db"),
		DBMaxOpenConns:  e.int("SNIP_DB_MAX_OPEN_CONNS", 20),
		Port:            e.str("PORT", "8080"),
		BaseURL:         e.str("SNIP_BASE_URL", "http://localhost:8080"),
		ShutdownTimeout: e.duration("SHUTDOWN_TIMEOUT", 10*time.Second),

		JWTSecret:     e.str("JWT_SECRET", ""),
		TokenTTL:      e.duration("JWT_TTL", 24*time.Hour),
		AdminUsername: e.str("ADMIN_USERNAME", "admin"),
		AdminEmail:    e.str("ADMIN_EMAIL", "admin@snip.local"),
		AdminPassword: e.str("ADMIN_PASSWORD", ""),

		CodeLength:    e.int("CODE_LENGTH", codegen.DefaultLength),
		CodeAttempts:  e.int("CODE_ATTEMPTS", codegen.DefaultMaxAttempts),
		StoreTimeout:  e.duration("STORE_TIMEOUT", 5*time.Second),
		EnforceExpiry: e.bool("ENFORCE_EXPIRY", true),

		StatsTTL: e.duration("STATS_TTL", 20*time.Minute),
		RedisURL: e.str("REDIS_URL", ""),

		SweepSchedule: e.str("SWEEP_SCHEDULE", "@daily"),
		SweepDays:     e.int("SWEEP_DAYS", sweeper.DefaultDays),
		SweepTimeout:  e.duration("SWEEP_TIMEOUT", sweeper.DefaultTimeout),
		TaskWorkers:   e.int("TASK_WORKERS", 1),
		TaskBuffer:    e.int("TASK_BUFFER", 16),

		LogFile:       e.str("LOG_FILE", ""),
		LogMaxSizeMB:  e.int("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: e.int("LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays: e.int("LOG_MAX_AGE_DAYS", 28),
		LogCompress:   e.bool("LOG_COMPRESS", false),
	}
	if err := errors.Join(e.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BindFlags registers a flag per setting, defaulting to the loaded value.
func (c *Config) BindFlags(flags *pflag.FlagSet) {
	flags.StringVar(&c.DBDSN, "db", c.DBDSN, "Database DSN: a SQLite path or a postgres:// URL")
	flags.IntVar(&c.DBMaxOpenConns, "db-max-open-conns", c.DBMaxOpenConns, "Postgres connection pool size")
	flags.StringVar(&c.Port, "port", c.Port, "HTTP listen port")
	flags.StringVar(&c.BaseURL, "base-url", c.BaseURL, "Public base URL used in short links")
	flags.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", c.ShutdownTimeout, "Grace period for in-flight requests on shutdown")

	flags.StringVar(&c.JWTSecret, "jwt-secret", c.JWTSecret, "HMAC secret for access tokens")
	flags.DurationVar(&c.TokenTTL, "jwt-ttl", c.TokenTTL, "Access token lifetime")
	flags.StringVar(&c.AdminUsername, "admin-username", c.AdminUsername, "Username of the bootstrap admin")
	flags.StringVar(&c.AdminEmail, "admin-email", c.AdminEmail, "Email of the bootstrap admin")
	flags.StringVar(&c.AdminPassword, "admin-password", c.AdminPassword, "Password of the bootstrap admin; empty skips creation")

	flags.IntVar(&c.CodeLength, "code-length", c.CodeLength, "Length of generated short codes (6-8)")
	flags.IntVar(&c.CodeAttempts, "code-attempts", c.CodeAttempts, "Attempts to find a free generated code")
	flags.DurationVar(&c.StoreTimeout, "store-timeout", c.StoreTimeout, "Deadline for each storage operation")
	flags.BoolVar(&c.EnforceExpiry, "enforce-expiry", c.EnforceExpiry, "Answer 410 for expired links instead of redirecting")

	flags.DurationVar(&c.StatsTTL, "stats-ttl", c.StatsTTL, "How long link stats are cached")
	flags.StringVar(&c.RedisURL, "redis-url", c.RedisURL, "Redis URL for the shared stats cache; empty uses an in-process cache")

	flags.StringVar(&c.SweepSchedule, "sweep-schedule", c.SweepSchedule, "Cron schedule for unused link sweeps; empty disables")
	flags.IntVar(&c.SweepDays, "sweep-days", c.SweepDays, "Idle days after which scheduled sweeps archive a link")
	flags.DurationVar(&c.SweepTimeout, "sweep-timeout", c.SweepTimeout, "Deadline for one sweep transaction")
	flags.IntVar(&c.TaskWorkers, "task-workers", c.TaskWorkers, "Background task workers")
	flags.IntVar(&c.TaskBuffer, "task-buffer", c.TaskBuffer, "Queued background tasks before submissions are refused")

	flags.StringVar(&c.LogFile, "log-file", c.LogFile, "Also write logs to this file, rotated by size")
	flags.IntVar(&c.LogMaxSizeMB, "log-max-size", c.LogMaxSizeMB, "Log file size in MB before rotation")
	flags.IntVar(&c.LogMaxBackups, "log-max-backups", c.LogMaxBackups, "Rotated log files to keep")
	flags.IntVar(&c.LogMaxAgeDays, "log-max-age", c.LogMaxAgeDays, "Days to keep rotated log files")
	flags.BoolVar(&c.LogCompress, "log-compress", c.LogCompress, "Gzip rotated log files")
}

// Validate checks settings that have a restricted range.
func (c *Config) Validate() error {
	var errs []error
	if c.CodeLength < codegen.MinLength || c.CodeLength > codegen.MaxLength {
		errs = append(errs, fmt.Errorf("code length must be between %d and %d, got %d", codegen.MinLength, codegen.MaxLength, c.CodeLength))
	}
	if c.CodeAttempts < 1 {
		errs = append(errs, fmt.Errorf("code attempts must be at least 1, got %d", c.CodeAttempts))
	}
	if !sweeper.ValidDays(c.SweepDays) {
		errs = append(errs, fmt.Errorf("sweep days must be between 0 and %d, got %d", sweeper.MaxDays, c.SweepDays))
	}
	if c.SweepTimeout <= 0 {
		errs = append(errs, fmt.Errorf("sweep timeout must be positive, got %s", c.SweepTimeout))
	}
	if c.TaskWorkers < 1 {
		errs = append(errs, fmt.Errorf("task workers must be at least 1, got %d", c.TaskWorkers))
	}
	if c.TaskBuffer < 1 {
		errs = append(errs, fmt.Errorf("task buffer must be at least 1, got %d", c.TaskBuffer))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, fmt.Errorf("store timeout must be positive, got %s", c.StoreTimeout))
	}
	return errors.Join(errs...)
}

type env struct {
	errs []error
}

func (e *env) str(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (e *env) int(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func (e *env) bool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

func (e *env) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}
