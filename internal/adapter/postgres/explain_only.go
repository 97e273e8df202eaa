package postgres

import (
	"context"
	"time"

	"github.com/guillermoBallester/queryguard/internal/core/domain"
	"github.com/guillermoBallester/queryguard/internal/core/port"
)

// ExplainOnlyRunner wraps a QueryRunner and returns query plans instead of
// data. Statements are prefixed with "EXPLAIN " unless they already are one.
type ExplainOnlyRunner struct {
	inner port.QueryRunner
}

func NewExplainOnlyRunner(inner port.QueryRunner) *ExplainOnlyRunner {
	return &ExplainOnlyRunner{inner: inner}
}

func (e *ExplainOnlyRunner) Run(ctx context.Context, sql string, timeout time.Duration) (*domain.RowSet, error) {
	if !isExplain(sql) {
		sql = "EXPLAIN " + sql
	}
	return e.inner.Run(ctx, sql, timeout)
}
