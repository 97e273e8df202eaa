package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/guillermoBallester/queryguard/internal/adapter/sqlite"
)

// Backend is the database family behind DATABASE_URL.
type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendSQLite   Backend = "sqlite"
)

type Config struct {
	// Database connection.
	DatabaseURL  string
	Backend      Backend // derived from DatabaseURL
	MaxRows      int
	QueryTimeout time.Duration
	FetchLimit   int // rows read from the database before truncation

	// Retry schedule.
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// Validation.
	SQLParser bool // chain the Postgres parser after the keyword scan

	// Schema filtering.
	Schemas    []string // empty means all non-system schemas
	PolicyFile string   // optional path to policy YAML

	// Logging.
	LogLevel slog.Level

	// Transport.
	Transport       string // "stdio" (default) or "http"
	HTTPAddr        string // listen address for HTTP transport (default ":8080")
	HTTPBearerToken string // required when transport=http

	// Connection pool.
	PoolMaxConns        int32         // default: 5
	PoolMinConns        int32         // default: 1
	PoolMaxConnLifetime time.Duration // default: 30m
	PoolMaxConnIdleTime time.Duration // default: 5m

	// Observability.
	OTelEnabled bool // enable OpenTelemetry tracing and metrics
	AuditLog    string

	// CLI-only.
	DryRun bool
}

// Overrides holds CLI flag values that override environment variables.
// Pointer fields distinguish "not set" from zero values.
type Overrides struct {
	DatabaseURL     *string
	LogLevel        *string
	MaxRows         *int
	QueryTimeout    *time.Duration
	FetchLimit      *int
	MaxAttempts     *int
	RetryBaseDelay  *time.Duration
	RetryMaxDelay   *time.Duration
	SQLParser       *bool
	Schemas         []string
	PolicyFile      *string
	Transport       *string
	HTTPAddr        *string
	HTTPBearerToken *string
	AuditLog        *string
	OTelEnabled     bool
	DryRun          bool

	// Connection pool overrides.
	PoolMaxConns        *int32
	PoolMinConns        *int32
	PoolMaxConnLifetime *time.Duration
}

// Load builds a Config from environment variables, then applies CLI overrides,
// then validates the result.
func Load(overrides Overrides) (*Config, error) {
	return load(overrides, true)
}

// LoadOffline is Load for commands that never connect, such as validating
// SQL: DATABASE_URL may be empty.
func LoadOffline(overrides Overrides) (*Config, error) {
	return load(overrides, false)
}

func load(overrides Overrides, needDatabase bool) (*Config, error) {
	cfg := defaults()

	if err := loadEnvVars(cfg); err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	cfg.Backend = backendFor(cfg.DatabaseURL)
	if !needDatabase && cfg.DatabaseURL == "" {
		cfg.Backend = ""
	} else if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaults returns a Config populated with default values.
func defaults() *Config {
	return &Config{
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		MaxRows:             100,
		QueryTimeout:        30 * time.Second,
		FetchLimit:          1000,
		MaxAttempts:         3,
		RetryBaseDelay:      time.Second,
		RetryMaxDelay:       30 * time.Second,
		SQLParser:           true,
		LogLevel:            slog.LevelInfo,
		Transport:           "stdio",
		HTTPAddr:            ":8080",
		PoolMaxConns:        5,
		PoolMinConns:        1,
		PoolMaxConnLifetime: 30 * time.Minute,
		PoolMaxConnIdleTime: 5 * time.Minute,
	}
}

func backendFor(dsn string) Backend {
	if sqlite.IsDSN(dsn) {
		return BackendSQLite
	}
	return BackendPostgres
}

// loadEnvVars reads all supported environment variables into cfg.
func loadEnvVars(cfg *Config) error {
	var err error
	if cfg.MaxRows, err = envPositiveInt("MAX_ROWS", cfg.MaxRows); err != nil {
		return err
	}
	if cfg.FetchLimit, err = envPositiveInt("FETCH_LIMIT", cfg.FetchLimit); err != nil {
		return err
	}
	if cfg.MaxAttempts, err = envPositiveInt("MAX_ATTEMPTS", cfg.MaxAttempts); err != nil {
		return err
	}
	if cfg.QueryTimeout, err = envDuration("QUERY_TIMEOUT", cfg.QueryTimeout); err != nil {
		return err
	}
	if cfg.RetryBaseDelay, err = envDuration("RETRY_BASE_DELAY", cfg.RetryBaseDelay); err != nil {
		return err
	}
	if cfg.RetryMaxDelay, err = envDuration("RETRY_MAX_DELAY", cfg.RetryMaxDelay); err != nil {
		return err
	}
	if cfg.SQLParser, err = envBool("SQL_PARSER", cfg.SQLParser); err != nil {
		return err
	}
	if cfg.OTelEnabled, err = envBool("OTEL_ENABLED", cfg.OTelEnabled); err != nil {
		return err
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}

	if v := os.Getenv("SCHEMAS"); v != "" {
		cfg.Schemas = splitList(v)
	}

	cfg.PolicyFile = os.Getenv("POLICY_FILE")
	cfg.AuditLog = os.Getenv("AUDIT_LOG")

	if v := os.Getenv("TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	cfg.HTTPBearerToken = os.Getenv("HTTP_BEARER_TOKEN")

	return loadPoolEnvVars(cfg)
}

// loadPoolEnvVars reads connection pool environment variables.
func loadPoolEnvVars(cfg *Config) error {
	if v := os.Getenv("POOL_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid POOL_MAX_CONNS value %q: must be a positive integer", v)
		}
		cfg.PoolMaxConns = int32(n)
	}
	if v := os.Getenv("POOL_MIN_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid POOL_MIN_CONNS value %q: must be a non-negative integer", v)
		}
		cfg.PoolMinConns = int32(n)
	}
	var err error
	if cfg.PoolMaxConnLifetime, err = envDuration("POOL_MAX_CONN_LIFETIME", cfg.PoolMaxConnLifetime); err != nil {
		return err
	}
	if cfg.PoolMaxConnIdleTime, err = envDuration("POOL_MAX_CONN_IDLE_TIME", cfg.PoolMaxConnIdleTime); err != nil {
		return err
	}
	return nil
}

func envPositiveInt(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be a positive integer", name, v)
	}
	return n, nil
}

func envDuration(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, v, err)
	}
	return d, nil
}

func envBool(name string, def bool) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", name, v, err)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// applyOverrides applies CLI flag values on top of the env-loaded config.
func applyOverrides(cfg *Config, o Overrides) error {
	if o.DatabaseURL != nil {
		cfg.DatabaseURL = *o.DatabaseURL
	}
	if o.LogLevel != nil {
		level, err := parseLogLevel(*o.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if o.MaxRows != nil {
		if *o.MaxRows <= 0 {
			return fmt.Errorf("invalid --max-rows value: must be a positive integer")
		}
		cfg.MaxRows = *o.MaxRows
	}
	if o.FetchLimit != nil {
		if *o.FetchLimit <= 0 {
			return fmt.Errorf("invalid --fetch-limit value: must be a positive integer")
		}
		cfg.FetchLimit = *o.FetchLimit
	}
	if o.MaxAttempts != nil {
		if *o.MaxAttempts <= 0 {
			return fmt.Errorf("invalid --max-attempts value: must be a positive integer")
		}
		cfg.MaxAttempts = *o.MaxAttempts
	}
	if o.QueryTimeout != nil {
		cfg.QueryTimeout = *o.QueryTimeout
	}
	if o.RetryBaseDelay != nil {
		cfg.RetryBaseDelay = *o.RetryBaseDelay
	}
	if o.RetryMaxDelay != nil {
		cfg.RetryMaxDelay = *o.RetryMaxDelay
	}
	if o.SQLParser != nil {
		cfg.SQLParser = *o.SQLParser
	}
	if o.Schemas != nil {
		cfg.Schemas = o.Schemas
	}
	if o.PolicyFile != nil {
		cfg.PolicyFile = *o.PolicyFile
	}
	if o.Transport != nil {
		cfg.Transport = *o.Transport
	}
	if o.HTTPAddr != nil {
		cfg.HTTPAddr = *o.HTTPAddr
	}
	if o.HTTPBearerToken != nil {
		cfg.HTTPBearerToken = *o.HTTPBearerToken
	}
	if o.AuditLog != nil {
		cfg.AuditLog = *o.AuditLog
	}

	if err := applyPoolOverrides(cfg, o); err != nil {
		return err
	}

	cfg.DryRun = o.DryRun
	cfg.OTelEnabled = cfg.OTelEnabled || o.OTelEnabled

	return nil
}

// applyPoolOverrides applies connection pool CLI flag overrides.
func applyPoolOverrides(cfg *Config, o Overrides) error {
	if o.PoolMaxConns != nil {
		if *o.PoolMaxConns <= 0 {
			return fmt.Errorf("invalid --pool-max-conns value: must be a positive integer")
		}
		cfg.PoolMaxConns = *o.PoolMaxConns
	}
	if o.PoolMinConns != nil {
		if *o.PoolMinConns < 0 {
			return fmt.Errorf("invalid --pool-min-conns value: must be a non-negative integer")
		}
		cfg.PoolMinConns = *o.PoolMinConns
	}
	if o.PoolMaxConnLifetime != nil {
		cfg.PoolMaxConnLifetime = *o.PoolMaxConnLifetime
	}
	return nil
}

// validate checks cross-field constraints on the final config.
func validate(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required (set via env var or --database-url flag)")
	}

	if cfg.QueryTimeout <= 0 {
		return fmt.Errorf("QUERY_TIMEOUT must be positive, got %s", cfg.QueryTimeout)
	}
	if cfg.RetryBaseDelay < 0 {
		return fmt.Errorf("RETRY_BASE_DELAY must not be negative, got %s", cfg.RetryBaseDelay)
	}
	if cfg.RetryMaxDelay > 0 && cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		return fmt.Errorf("RETRY_MAX_DELAY (%s) must not be below RETRY_BASE_DELAY (%s)", cfg.RetryMaxDelay, cfg.RetryBaseDelay)
	}
	if cfg.FetchLimit < cfg.MaxRows {
		return fmt.Errorf("FETCH_LIMIT (%d) must be at least MAX_ROWS (%d)", cfg.FetchLimit, cfg.MaxRows)
	}

	switch cfg.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid TRANSPORT value %q: must be \"stdio\" or \"http\"", cfg.Transport)
	}

	if cfg.Transport == "http" && cfg.HTTPBearerToken == "" {
		return fmt.Errorf("HTTP_BEARER_TOKEN is required when transport is \"http\" (set via env var or --http-bearer-token flag)")
	}

	if cfg.PoolMinConns > cfg.PoolMaxConns {
		return fmt.Errorf("POOL_MIN_CONNS (%d) must not exceed POOL_MAX_CONNS (%d)", cfg.PoolMinConns, cfg.PoolMaxConns)
	}

	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL value %q: must be debug, info, warn, or error", s)
	}
}
