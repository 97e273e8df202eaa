package port

import (
	"context"

	"github.com/guillermoBallester/queryguard/internal/core/domain"
)

// Instrumentation records application-level metrics.
type Instrumentation interface {
	IncrementRejections(ctx context.Context, reason domain.RejectReason)
	IncrementRetries(ctx context.Context)
	RecordResult(ctx context.Context, result domain.QueryResult)
	RecordToolDuration(ctx context.Context, ms float64)
}

// NoopInstrumentation discards all metrics.
type NoopInstrumentation struct{}

func (NoopInstrumentation) IncrementRejections(context.Context, domain.RejectReason) {}
func (NoopInstrumentation) IncrementRetries(context.Context)                         {}
func (NoopInstrumentation) RecordResult(context.Context, domain.QueryResult)         {}
func (NoopInstrumentation) RecordToolDuration(context.Context, float64)              {}
