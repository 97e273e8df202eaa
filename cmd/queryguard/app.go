package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/guillermoBallester/queryguard/internal/adapter/policy"
	"github.com/guillermoBallester/queryguard/internal/adapter/postgres"
	"github.com/guillermoBallester/queryguard/internal/adapter/sqlite"
	"github.com/guillermoBallester/queryguard/internal/audit"
	"github.com/guillermoBallester/queryguard/internal/config"
	"github.com/guillermoBallester/queryguard/internal/core/domain"
	"github.com/guillermoBallester/queryguard/internal/core/port"
	"github.com/guillermoBallester/queryguard/internal/core/service"
	"github.com/guillermoBallester/queryguard/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
)

const (
	sqliteBusyTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// app is the wired guard plus everything that must be closed with it.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	guard   *service.Guard
	catalog *service.CatalogService
	tracer  trace.Tracer
	inst    *telemetry.Instruments

	closers []func() error
}

// loadPolicy returns nil when no policy file is configured; every Policy
// method treats nil as "use the defaults".
func loadPolicy(cfg *config.Config, logger *slog.Logger) (*policy.Policy, error) {
	if cfg.PolicyFile == "" {
		return nil, nil
	}
	pol, err := policy.LoadFromFile(cfg.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("loading policy: %w", err)
	}
	logger.Info("policy loaded", slog.String("file", cfg.PolicyFile))
	return pol, nil
}

// newValidator chains the PostgreSQL parser after the keyword scan unless the
// backend speaks another dialect. Offline checks with no backend use it too.
func newValidator(cfg *config.Config, pol *policy.Policy) port.QueryValidator {
	keyword := domain.NewKeywordValidator(pol.DenyList())
	if !cfg.SQLParser || cfg.Backend == config.BackendSQLite {
		return keyword
	}
	return domain.NewChainValidator(keyword, domain.NewParserValidator())
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.tracer = telemetry.NoopTracer()
	a.inst = telemetry.NoopInstruments()
	if cfg.OTelEnabled {
		provider, err := telemetry.Init(ctx, "queryguard", version)
		if err != nil {
			return nil, fmt.Errorf("initialising telemetry: %w", err)
		}
		a.closers = append(a.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return provider.Shutdown(ctx)
		})
		a.tracer = telemetry.Tracer()
		a.inst = telemetry.NewInstruments()
		logger.Info("opentelemetry enabled")
	}

	pol, err := loadPolicy(cfg, logger)
	if err != nil {
		return nil, err
	}

	runner, catalog, err := a.openBackend(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.DryRun {
		runner = postgres.NewExplainOnlyRunner(runner)
		logger.Info("dry-run: queries return plans only")
	}

	retry := pol.RetryPolicy(service.RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	})
	if err := retry.Validate(); err != nil {
		return nil, fmt.Errorf("retry policy: %w", err)
	}

	masker := pol.Masker()
	opts := []service.Option{
		service.WithRetryPolicy(retry),
		service.WithClassification(pol.Classification()),
		service.WithMasker(masker),
		service.WithTracer(a.tracer),
		service.WithInstrumentation(a.inst),
		service.WithObserver(a.inst),
		service.WithDefaults(cfg.MaxRows, cfg.QueryTimeout),
	}

	if cfg.AuditLog != "" {
		auditor, err := audit.NewFileAuditor(cfg.AuditLog)
		if err != nil {
			return nil, fmt.Errorf("opening audit log: %w", err)
		}
		a.closers = append(a.closers, auditor.Close)
		opts = append(opts, service.WithObserver(auditor))
		logger.Info("audit log enabled", slog.String("file", cfg.AuditLog))
	}

	a.guard = service.NewGuard(newValidator(cfg, pol), runner, logger, opts...)
	a.catalog = service.NewCatalogService(policy.NewCatalog(catalog, pol), masker, logger)

	logger.Info("guard ready",
		slog.Int("max_attempts", retry.MaxAttempts),
		slog.Duration("retry_base_delay", retry.BaseDelay),
		slog.Any("transient_kinds", pol.Classification().Transient()),
		slog.Bool("sql_parser", cfg.SQLParser && cfg.Backend != config.BackendSQLite),
	)
	return a, nil
}

func (a *app) openBackend(ctx context.Context) (port.QueryRunner, port.SchemaCatalog, error) {
	cfg := a.cfg
	switch cfg.Backend {
	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, cfg.DatabaseURL, sqliteBusyTimeout)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.logger.Info("database opened",
			slog.String("db.system", "sqlite"),
			slog.String("path", sqlite.Path(cfg.DatabaseURL)),
		)
		return sqlite.NewRunner(db, cfg.FetchLimit), sqlite.NewCatalog(db), nil

	default:
		pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
			URL:             cfg.DatabaseURL,
			MaxConns:        cfg.PoolMaxConns,
			MinConns:        cfg.PoolMinConns,
			MaxConnLifetime: cfg.PoolMaxConnLifetime,
			MaxConnIdleTime: cfg.PoolMaxConnIdleTime,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		a.logger.Info("database pool connected",
			slog.String("db.system", "postgresql"),
			slog.String("database_url", redactDSN(cfg.DatabaseURL)),
			slog.Int("pool.max_conns", int(cfg.PoolMaxConns)),
		)
		return postgres.NewRunner(pool, cfg.FetchLimit), postgres.NewCatalog(pool, cfg.Schemas), nil
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
