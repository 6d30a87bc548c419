// Package config defines the global configuration structure for the
// Tickwise daemon. Configuration is loaded once at process initialization
// and is immutable thereafter; values come from the OS environment with an
// optional .env file underneath.
package config

import "time"

// Config is the top-level configuration struct. Sub-components receive only
// the specific config subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"tickwise-sensord"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Database DatabaseConfig
	Daemon   DaemonConfig
}

// DatabaseConfig holds PostgreSQL connection settings for the event log,
// cursor and run tables.
type DatabaseConfig struct {
	URL             string        `envconfig:"DATABASE_URL" validate:"required"`
	MaxConns        int32         `envconfig:"DATABASE_MAX_CONNS" default:"8" validate:"min=1"`
	MinConns        int32         `envconfig:"DATABASE_MIN_CONNS" default:"1" validate:"min=0"`
	MaxConnLifetime time.Duration `envconfig:"DATABASE_MAX_CONN_LIFETIME" default:"30m"`
	ConnectTimeout  time.Duration `envconfig:"DATABASE_CONNECT_TIMEOUT" default:"10s"`
}

// DaemonConfig holds evaluation-loop settings.
type DaemonConfig struct {
	// RepositoryName labels the definition set this daemon serves.
	RepositoryName string `envconfig:"REPOSITORY_NAME" default:"default"`
	// Timezone is the zone schedule cron expressions are evaluated in.
	// Empty means UTC.
	Timezone string `envconfig:"SCHEDULE_TIMEZONE" default:""`
	// Schedules is an optional JSON array of schedule entries
	// ([{"name":..., "cron_schedule":[...], "job_name":...}]) fired by the
	// daemon alongside compiled-in sensors.
	Schedules string `envconfig:"SCHEDULES" default:""`
	// ShutdownGrace bounds how long in-flight evaluations may run after a
	// termination signal.
	ShutdownGrace time.Duration `envconfig:"SHUTDOWN_GRACE" default:"10s"`
}
