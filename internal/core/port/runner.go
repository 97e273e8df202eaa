package port

import (
	"context"
	"time"

	"github.com/guillermoBallester/queryguard/internal/core/domain"
)

// RunFunc executes one attempt of a statement. It must enforce timeout
// itself and should return a *domain.DBError on failure.
type RunFunc func(ctx context.Context, sql string, timeout time.Duration) (*domain.RowSet, error)

// QueryRunner is the database side of the guard.
type QueryRunner interface {
	Run(ctx context.Context, sql string, timeout time.Duration) (*domain.RowSet, error)
}

// SchemaCatalog describes the database to the agent that writes SQL.
type SchemaCatalog interface {
	ListTables(ctx context.Context) ([]domain.TableRef, error)
	DescribeTable(ctx context.Context, table domain.TableRef) (*domain.TableSchema, error)
	SampleRows(ctx context.Context, table domain.TableRef, limit int) (*domain.RowSet, error)
}
