package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/guillermoBallester/queryguard/internal/core/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Runner executes admitted statements in read-only transactions. It never
// fetches more than fetchLimit rows; one extra row is requested so the
// caller can tell the result was cut.
type Runner struct {
	pool       *pgxpool.Pool
	fetchLimit int
}

func NewRunner(pool *pgxpool.Pool, fetchLimit int) *Runner {
	return &Runner{pool: pool, fetchLimit: fetchLimit}
}

// Run errors are always *domain.DBError.
func (r *Runner) Run(ctx context.Context, sql string, timeout time.Duration) (*domain.RowSet, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, ClassifyError(fmt.Errorf("beginning transaction: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Enforce the deadline server-side too, so Postgres stops working on the
	// statement even if the client goes away. SET LOCAL is scoped to tx.
	if timeout > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", timeout.Milliseconds())); err != nil {
			return nil, ClassifyError(fmt.Errorf("setting statement timeout: %w", err))
		}
	}

	rows, err := tx.Query(ctx, wrapLimit(sql, r.fetchLimit))
	if err != nil {
		return nil, ClassifyError(fmt.Errorf("executing query: %w", err))
	}
	set, err := rowsToSet(rows)
	if err != nil {
		return nil, ClassifyError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, ClassifyError(fmt.Errorf("committing transaction: %w", err))
	}

	if r.fetchLimit > 0 && len(set.Rows) > r.fetchLimit {
		set.Rows = set.Rows[:r.fetchLimit]
		set.TotalRows = r.fetchLimit + 1
	}
	return set, nil
}

// wrapLimit bounds the statement at limit+1 rows. EXPLAIN cannot be used as
// a subquery and is passed through. A non-positive limit disables wrapping.
func wrapLimit(sql string, limit int) string {
	if limit <= 0 || isExplain(sql) {
		return sql
	}
	body := domain.TrimTrailingNoise(sql)
	return fmt.Sprintf("SELECT * FROM (%s\n) AS _q LIMIT %d", body, limit+1)
}

func isExplain(sql string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sql)), "EXPLAIN")
}
