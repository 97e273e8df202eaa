package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/guillermoBallester/queryguard/internal/core/domain"
	"github.com/guillermoBallester/queryguard/internal/core/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type toolNameKey struct{}

type requestIDKey struct{}

// WithToolName returns a context carrying the MCP tool name for audit logging.
func WithToolName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, toolNameKey{}, name)
}

func toolNameFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(toolNameKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRequestID pins the id that correlates the attempts of one execution.
// Without it the guard generates one per call.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok && v != "" {
		return v
	}
	return uuid.NewString()
}

// Guard sits between agent-generated SQL and the database: it refuses
// anything but reads, runs admitted statements under a deadline and retries
// transient failures on a fixed backoff schedule. It keeps no per-request
// state, so one Guard serves any number of concurrent sessions.
type Guard struct {
	validator port.QueryValidator
	runner    port.QueryRunner
	logger    *slog.Logger

	retry     RetryPolicy
	classes   domain.Classification
	observers port.Observers
	masker    *domain.Masker
	tracer    trace.Tracer
	inst      port.Instrumentation
	sleep     SleepFunc

	defaultMaxRows int
	defaultTimeout time.Duration
}

// Option customises a Guard.
type Option func(*Guard)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(g *Guard) { g.retry = p }
}

func WithClassification(c domain.Classification) Option {
	return func(g *Guard) { g.classes = c }
}

// WithObserver adds an attempt observer; repeated calls accumulate.
func WithObserver(o port.AttemptObserver) Option {
	return func(g *Guard) {
		if o != nil {
			g.observers = append(g.observers, o)
		}
	}
}

func WithMasker(m *domain.Masker) Option {
	return func(g *Guard) { g.masker = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(g *Guard) {
		if t != nil {
			g.tracer = t
		}
	}
}

func WithInstrumentation(inst port.Instrumentation) Option {
	return func(g *Guard) {
		if inst != nil {
			g.inst = inst
		}
	}
}

// WithSleep replaces the backoff sleep, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(g *Guard) {
		if fn != nil {
			g.sleep = fn
		}
	}
}

// WithDefaults fills in MaxRows and Timeout for requests that leave them zero.
func WithDefaults(maxRows int, timeout time.Duration) Option {
	return func(g *Guard) {
		g.defaultMaxRows = maxRows
		g.defaultTimeout = timeout
	}
}

// NewGuard panics on a nil validator. runner may be nil when the guard is
// only used for validation or with explicit RunFuncs.
func NewGuard(validator port.QueryValidator, runner port.QueryRunner, logger *slog.Logger, opts ...Option) *Guard {
	if validator == nil {
		panic("service: NewGuard requires a validator")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	g := &Guard{
		validator:      validator,
		runner:         runner,
		logger:         logger,
		retry:          DefaultRetry,
		classes:        domain.DefaultClassification(),
		tracer:         noop.NewTracerProvider().Tracer("noop"),
		inst:           port.NoopInstrumentation{},
		sleep:          sleepContext,
		defaultMaxRows: 100,
		defaultTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Validate checks sql against the configured validator and records
// rejections. The verdict itself is a pure function of sql.
func (g *Guard) Validate(ctx context.Context, sql string) domain.Verdict {
	verdict := g.validator.Validate(sql)
	if !verdict.Allowed {
		g.logger.WarnContext(ctx, "query validation rejected",
			slog.String("db.statement", sql),
			slog.String("error.type", "validation_error"),
			slog.String("reason", string(verdict.Reason)),
			slog.String("keyword", verdict.Keyword),
		)
		g.inst.IncrementRejections(ctx, verdict.Reason)
	}
	return verdict
}

// Execute validates req.SQL and, if admitted, runs it through the
// configured runner with retries.
func (g *Guard) Execute(ctx context.Context, req domain.QueryRequest) domain.QueryResult {
	if g.runner == nil {
		panic("service: Guard.Execute called without a runner")
	}

	ctx, span := g.tracer.Start(ctx, "Guard.Execute",
		trace.WithAttributes(
			attribute.String("db.operation.name", "query"),
			attribute.String("db.statement", req.SQL),
		),
	)
	defer span.End()

	var res domain.QueryResult
	if verdict := g.Validate(ctx, req.SQL); !verdict.Allowed {
		res = domain.PolicyViolation(verdict)
	} else {
		res = g.ExecuteWithRetry(ctx, req, g.runner.Run)
	}

	g.inst.RecordResult(ctx, res)
	span.SetAttributes(attribute.Int("queryguard.attempts", res.Attempts))
	if res.OK() {
		span.SetAttributes(
			attribute.Int("db.response.rows", res.RowCount),
			attribute.Bool("queryguard.truncated", res.Truncated),
		)
	} else {
		span.SetStatus(codes.Error, string(res.Failure.Kind))
	}
	return res
}

// ExecuteWithRetry runs an admitted statement through run, retrying
// transient failures. The statement is validated again first; a rejected
// statement is reported as a policy violation without calling run.
func (g *Guard) ExecuteWithRetry(ctx context.Context, req domain.QueryRequest, run port.RunFunc) domain.QueryResult {
	if verdict := g.validator.Validate(req.SQL); !verdict.Allowed {
		return domain.PolicyViolation(verdict)
	}
	if req.MaxRows <= 0 {
		req.MaxRows = g.defaultMaxRows
	}
	if req.Timeout <= 0 {
		req.Timeout = g.defaultTimeout
	}

	requestID := requestIDFromCtx(ctx)
	logger := g.logger.With(slog.String("request_id", requestID))
	masker := g.masker.ForQuery(req.SQL)

	var (
		lastKind domain.ErrorKind
		lastMsg  string
	)
	for n := 1; n <= g.retry.MaxAttempts; n++ {
		if n > 1 {
			delay := g.retry.Backoff(n)
			logger.DebugContext(ctx, "retrying after backoff",
				slog.Int("attempt_number", n),
				slog.Duration("backoff", delay),
			)
			g.inst.IncrementRetries(ctx)
			if err := g.sleep(ctx, delay); err != nil {
				return domain.Failed(domain.KindCancelled, err.Error(), n-1)
			}
		} else if err := ctx.Err(); err != nil {
			return domain.Failed(domain.KindCancelled, err.Error(), 0)
		}

		attempt := domain.Attempt{
			RequestID: requestID,
			Tool:      toolNameFromCtx(ctx),
			SQL:       req.SQL,
			Number:    n,
			StartedAt: time.Now(),
		}
		set, err := run(ctx, req.SQL, req.Timeout)
		attempt.Elapsed = time.Since(attempt.StartedAt)

		if err == nil {
			res := domain.Succeeded(set, req.MaxRows, n)
			attempt.Outcome = domain.OutcomeSuccess
			attempt.RowCount = res.RowCount
			g.observe(ctx, logger, attempt)
			masker.Apply(res.Rows)
			return res
		}

		kind := domain.Classify(err)
		if ctx.Err() != nil {
			kind = domain.KindCancelled
		}
		attempt.Kind = kind
		attempt.Message = err.Error()
		attempt.Outcome = domain.OutcomeFatal
		if kind != domain.KindCancelled && g.classes.IsTransient(kind) {
			attempt.Outcome = domain.OutcomeTransient
		}
		g.observe(ctx, logger, attempt)

		if attempt.Outcome == domain.OutcomeFatal {
			return domain.Failed(kind, attempt.Message, n)
		}
		lastKind, lastMsg = kind, attempt.Message
	}

	return domain.Exhausted(lastKind, fmt.Sprintf("%s: %s", lastKind, lastMsg), g.retry.MaxAttempts)
}

// observe reports an attempt to the log, the active span and the observers.
// Observer errors and panics never reach the retry loop.
func (g *Guard) observe(ctx context.Context, logger *slog.Logger, a domain.Attempt) {
	level := slog.LevelInfo
	if a.Outcome != domain.OutcomeSuccess {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		slog.Int("attempt_number", a.Number),
		slog.Duration("elapsed", a.Elapsed),
		slog.String("outcome_kind", string(a.Outcome)),
	}
	if a.Kind != "" {
		attrs = append(attrs,
			slog.String("error.type", string(a.Kind)),
			slog.String("error.message", a.Message),
		)
	}
	logger.LogAttrs(ctx, level, "query attempt", attrs...)

	trace.SpanFromContext(ctx).AddEvent("query.attempt", trace.WithAttributes(
		attribute.Int("attempt_number", a.Number),
		attribute.String("outcome_kind", string(a.Outcome)),
		attribute.String("error.type", string(a.Kind)),
		attribute.Int64("elapsed_ms", a.Elapsed.Milliseconds()),
	))

	defer func() {
		if r := recover(); r != nil {
			logger.DebugContext(ctx, "attempt observer panicked", slog.Any("panic", r))
		}
	}()
	if err := g.observers.ObserveAttempt(ctx, a); err != nil {
		logger.DebugContext(ctx, "attempt observer failed", slog.String("error", err.Error()))
	}
}
