package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Engine    EngineConfig    `mapstructure:"engine" validate:"required"`
	Reminder  ReminderConfig  `mapstructure:"reminder"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port                   int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel               string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"required,gte=1"`
}

// ShutdownTimeout returns the graceful shutdown budget as a duration.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	// Driver selects the SQL backend: "postgres" (pgx) or "sqlite" (modernc).
	Driver       string `mapstructure:"driver" validate:"required,oneof=postgres sqlite"`
	URL          string `mapstructure:"url" validate:"required"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"required,gte=1"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gte=1"`
}

// SchedulerConfig holds the spaced repetition policy parameters.
type SchedulerConfig struct {
	LearningThreshold int     `mapstructure:"learning_threshold" validate:"required,gte=1"`
	GrowthFactor      float64 `mapstructure:"growth_factor" validate:"required,gte=1"`
	MaxIntervalDays   int     `mapstructure:"max_interval_days" validate:"required,gte=1"`
}

// EngineConfig tunes the optimistic retry loop of review submission.
type EngineConfig struct {
	MaxAttempts      int `mapstructure:"max_attempts" validate:"required,gte=1,lte=10"`
	RetryBaseDelayMS int `mapstructure:"retry_base_delay_ms" validate:"required,gte=1"`
}

// RetryBaseDelay returns the first backoff delay as a duration.
func (c EngineConfig) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMS) * time.Millisecond
}

// ReminderConfig controls the periodic due-review reminder job.
type ReminderConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalMinutes int  `mapstructure:"interval_minutes" validate:"required,gte=1"`
}

// RateLimitConfig sets the per-user request budget on the API.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"required,gt=0"`
	Burst             int     `mapstructure:"burst" validate:"required,gte=1"`
}
