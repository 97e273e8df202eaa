package telemetry

import (
	"context"
	"strconv"

	"github.com/guillermoBallester/queryguard/internal/core/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/guillermoBallester/queryguard"

// Instruments holds pre-created OTel metric instruments. It serves both as
// the guard's Instrumentation and as an attempt observer.
type Instruments struct {
	Attempts        metric.Int64Counter
	AttemptDuration metric.Float64Histogram
	Retries         metric.Int64Counter
	Rejections      metric.Int64Counter
	Results         metric.Int64Counter
	ToolDuration    metric.Float64Histogram
}

// NewInstruments creates metric instruments from the global MeterProvider.
func NewInstruments() *Instruments {
	return NewInstrumentsFromMeter(otel.Meter(meterName))
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	return NewInstrumentsFromMeter(noop.NewMeterProvider().Meter(meterName))
}

func NewInstrumentsFromMeter(meter metric.Meter) *Instruments {
	// OTel SDK returns noop instruments on error; safe to discard.
	attempts, _ := meter.Int64Counter("queryguard.attempts",
		metric.WithDescription("Execution attempts by outcome and error kind"),
	)
	attemptDuration, _ := meter.Float64Histogram("queryguard.attempt.duration",
		metric.WithDescription("Duration of a single execution attempt in milliseconds"),
		metric.WithUnit("ms"),
	)
	retries, _ := meter.Int64Counter("queryguard.retries",
		metric.WithDescription("Attempts started after a transient failure"),
	)
	rejections, _ := meter.Int64Counter("queryguard.rejections",
		metric.WithDescription("Statements refused by validation"),
	)
	results, _ := meter.Int64Counter("queryguard.results",
		metric.WithDescription("Guarded executions by final status"),
	)
	toolDuration, _ := meter.Float64Histogram("queryguard.tool.duration",
		metric.WithDescription("MCP tool call duration in milliseconds"),
		metric.WithUnit("ms"),
	)

	return &Instruments{
		Attempts:        attempts,
		AttemptDuration: attemptDuration,
		Retries:         retries,
		Rejections:      rejections,
		Results:         results,
		ToolDuration:    toolDuration,
	}
}

func (i *Instruments) ObserveAttempt(ctx context.Context, a domain.Attempt) error {
	attrs := metric.WithAttributes(
		attribute.String("outcome", string(a.Outcome)),
		attribute.String("kind", kindOrNone(a.Kind)),
	)
	i.Attempts.Add(ctx, 1, attrs)
	i.AttemptDuration.Record(ctx, float64(a.Elapsed.Microseconds())/1000, attrs)
	return nil
}

func (i *Instruments) IncrementRejections(ctx context.Context, reason domain.RejectReason) {
	i.Rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(reason))))
}

func (i *Instruments) IncrementRetries(ctx context.Context) {
	i.Retries.Add(ctx, 1)
}

func (i *Instruments) RecordResult(ctx context.Context, res domain.QueryResult) {
	status := "ok"
	if !res.OK() {
		status = string(res.Failure.Kind)
	}
	i.Results.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
		attribute.String("attempts", strconv.Itoa(res.Attempts)),
	))
}

func (i *Instruments) RecordToolDuration(ctx context.Context, ms float64) {
	i.ToolDuration.Record(ctx, ms)
}

func kindOrNone(k domain.ErrorKind) string {
	if k == "" {
		return "none"
	}
	return string(k)
}
