package main

import (
	"io"
	"time"

	"github.com/guillermoBallester/queryguard/internal/config"
	"github.com/spf13/pflag"
)

// registerFlags adds the flags every command shares. Defaults shown in help
// are the built-in ones; a flag only overrides the environment when set.
func registerFlags(fs *pflag.FlagSet) {
	fs.String("database-url", "", "database URL: postgres://... or sqlite:///path/to.db (env DATABASE_URL)")
	fs.String("log-level", "info", "log level: debug, info, warn, error (env LOG_LEVEL)")
	fs.Int("max-rows", 100, "rows returned per query (env MAX_ROWS)")
	fs.Duration("query-timeout", 30*time.Second, "per-attempt timeout (env QUERY_TIMEOUT)")
	fs.Int("fetch-limit", 1000, "rows read from the database before truncation (env FETCH_LIMIT)")
	fs.Int("max-attempts", 3, "attempts per query, including the first (env MAX_ATTEMPTS)")
	fs.Duration("retry-base-delay", time.Second, "wait before the second attempt (env RETRY_BASE_DELAY)")
	fs.Duration("retry-max-delay", 30*time.Second, "cap on the wait between attempts (env RETRY_MAX_DELAY)")
	fs.Bool("sql-parser", true, "also validate with the PostgreSQL parser (env SQL_PARSER)")
	fs.StringSlice("schemas", nil, "schemas exposed to the agent, default all (env SCHEMAS)")
	fs.String("policy-file", "", "policy YAML with deny lists, retry, masking and context (env POLICY_FILE)")
	fs.String("audit-log", "", "append one NDJSON line per attempt to this file (env AUDIT_LOG)")
	fs.Bool("otel", false, "export OpenTelemetry traces and metrics (env OTEL_ENABLED)")
	fs.Bool("dry-run", false, "return query plans instead of data")
	fs.Int32("pool-max-conns", 5, "maximum pool connections (env POOL_MAX_CONNS)")
	fs.Int32("pool-min-conns", 1, "minimum pool connections (env POOL_MIN_CONNS)")
	fs.Duration("pool-max-conn-lifetime", 30*time.Minute, "maximum connection lifetime (env POOL_MAX_CONN_LIFETIME)")
}

func registerServeFlags(fs *pflag.FlagSet) {
	fs.String("transport", "stdio", "MCP transport: stdio or http (env TRANSPORT)")
	fs.String("http-addr", ":8080", "listen address for the http transport (env HTTP_ADDR)")
	fs.String("http-bearer-token", "", "bearer token required by the http transport (env HTTP_BEARER_TOKEN)")
}

// overridesFromFlags turns the flags the user actually set into config
// overrides. Flags that were not registered on fs are ignored.
func overridesFromFlags(fs *pflag.FlagSet) (config.Overrides, error) {
	var (
		o   config.Overrides
		err error
	)

	str := func(name string) *string {
		if err != nil || !fs.Changed(name) {
			return nil
		}
		var v string
		v, err = fs.GetString(name)
		return &v
	}
	integer := func(name string) *int {
		if err != nil || !fs.Changed(name) {
			return nil
		}
		var v int
		v, err = fs.GetInt(name)
		return &v
	}
	int32Val := func(name string) *int32 {
		if err != nil || !fs.Changed(name) {
			return nil
		}
		var v int32
		v, err = fs.GetInt32(name)
		return &v
	}
	duration := func(name string) *time.Duration {
		if err != nil || !fs.Changed(name) {
			return nil
		}
		var v time.Duration
		v, err = fs.GetDuration(name)
		return &v
	}
	boolean := func(name string) *bool {
		if err != nil || !fs.Changed(name) {
			return nil
		}
		var v bool
		v, err = fs.GetBool(name)
		return &v
	}

	o.DatabaseURL = str("database-url")
	o.LogLevel = str("log-level")
	o.MaxRows = integer("max-rows")
	o.QueryTimeout = duration("query-timeout")
	o.FetchLimit = integer("fetch-limit")
	o.MaxAttempts = integer("max-attempts")
	o.RetryBaseDelay = duration("retry-base-delay")
	o.RetryMaxDelay = duration("retry-max-delay")
	o.SQLParser = boolean("sql-parser")
	o.PolicyFile = str("policy-file")
	o.AuditLog = str("audit-log")
	o.Transport = str("transport")
	o.HTTPAddr = str("http-addr")
	o.HTTPBearerToken = str("http-bearer-token")
	o.PoolMaxConns = int32Val("pool-max-conns")
	o.PoolMinConns = int32Val("pool-min-conns")
	o.PoolMaxConnLifetime = duration("pool-max-conn-lifetime")

	if v := boolean("otel"); v != nil {
		o.OTelEnabled = *v
	}
	if v := boolean("dry-run"); v != nil {
		o.DryRun = *v
	}
	if err == nil && fs.Changed("schemas") {
		o.Schemas, err = fs.GetStringSlice("schemas")
	}

	if err != nil {
		return config.Overrides{}, err
	}
	return o, nil
}

// parseFlags parses args against every flag the CLI knows.
func parseFlags(args []string) (config.Overrides, error) {
	fs := pflag.NewFlagSet("queryguard", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	registerFlags(fs)
	registerServeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return config.Overrides{}, err
	}
	return overridesFromFlags(fs)
}
