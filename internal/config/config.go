// Package config loads service and CLI settings from environment variables.
// Every field carries its variable name and default in struct tags; Load
// fills the struct and Validate reports every problem at once so a bad
// deployment fails on startup rather than on the first run.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Run      RunConfig
	Pipeline PipelineConfig
	Schedule ScheduleConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Google   GoogleConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds non-run requests; runs use RUN_TIMEOUT.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// Database backends.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// DatabaseConfig selects and tunes the store.
type DatabaseConfig struct {
	// Backend is postgres or sqlite (default: postgres)
	Backend string `env:"DB_BACKEND" default:"postgres"`

	// URL is the PostgreSQL connection string, required for the postgres backend.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// SQLitePath is the database file for the sqlite backend
	SQLitePath string `env:"SQLITE_PATH" default:"sheet2neon.db"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// RunConfig bounds pipeline runs started by the service.
type RunConfig struct {
	// MaxConcurrent is the number of runs allowed in flight (default: 2)
	MaxConcurrent int `env:"RUN_MAX_CONCURRENT" default:"2"`

	// MaxWait is how long a run waits for a slot (default: 30s)
	MaxWait time.Duration `env:"RUN_MAX_WAIT" default:"30s"`

	// MaxFileSize is the largest accepted upload in bytes (default: 50MB)
	MaxFileSize int64 `env:"RUN_MAX_FILE_SIZE" default:"52428800"`

	// Timeout is the maximum duration of one run (default: 10m)
	Timeout time.Duration `env:"RUN_TIMEOUT" default:"10m"`
}

// Lookup sources for reference tables.
const (
	LookupFromStore = "store"
	LookupFromRules = "rules"
	LookupNone      = "none"
)

// PipelineConfig holds pipeline settings.
type PipelineConfig struct {
	// RulesFile is an optional TOML rule set
	RulesFile string `env:"RULES_FILE"`

	// ReportDir receives one JSON report per run; empty disables the files
	ReportDir string `env:"REPORT_DIR" default:"logs"`

	// LookupSource decides where department ids come from: store, rules or none.
	// With none, unknown references are rejected by the database.
	LookupSource string `env:"LOOKUP_SOURCE" default:"store"`
}

// ScheduleConfig drives unattended re-runs.
type ScheduleConfig struct {
	// Sources is a list of entity=path pairs; empty disables scheduled runs
	Sources []string `env:"SCHEDULE_SOURCES"`

	// Interval between scheduled runs (default: 1h)
	Interval time.Duration `env:"SCHEDULE_INTERVAL" default:"1h"`

	// HistoryRetentionDays is how long run history is kept (default: 90)
	HistoryRetentionDays int `env:"HISTORY_RETENTION_DAYS" default:"90"`
}

// SecurityConfig guards the HTTP surface.
type SecurityConfig struct {
	// APIKeys, when set, are required in X-API-Key on endpoints that load or read data
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Real-IP and X-Forwarded-For headers are believed
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequestsPerMinute per client IP; 0 disables rate limiting (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// GoogleConfig holds Sheets API credentials. Inline JSON wins over the file.
type GoogleConfig struct {
	CredentialsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	CredentialsJSON string `env:"GOOGLE_CREDENTIALS_JSON"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
