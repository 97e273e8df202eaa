package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/guillermoBallester/queryguard/internal/core/domain"
	"github.com/jmoiron/sqlx"
)

// Runner executes admitted statements against a read-only SQLite handle.
type Runner struct {
	db         *sqlx.DB
	fetchLimit int
}

func NewRunner(db *sqlx.DB, fetchLimit int) *Runner {
	return &Runner{db: db, fetchLimit: fetchLimit}
}

// Run errors are always *domain.DBError. A statement cut short by timeout
// is reported as a timeout even when the driver says "interrupted".
func (r *Runner) Run(ctx context.Context, sql string, timeout time.Duration) (*domain.RowSet, error) {
	parent := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	set, err := r.query(ctx, sql)
	if err != nil {
		if parent.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, domain.NewDBError(domain.KindTimeout, "", fmt.Errorf("statement exceeded %s: %w", timeout, err))
		}
		return nil, ClassifyError(err)
	}

	if r.fetchLimit > 0 && len(set.Rows) > r.fetchLimit {
		set.Rows = set.Rows[:r.fetchLimit]
		set.TotalRows = r.fetchLimit + 1
	}
	return set, nil
}

func (r *Runner) query(ctx context.Context, sql string) (*domain.RowSet, error) {
	rows, err := r.db.QueryxContext(ctx, wrapLimit(sql, r.fetchLimit))
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return scanRows(rows)
}

func scanRows(rows *sqlx.Rows) (*domain.RowSet, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}
	set := &domain.RowSet{Columns: cols}
	for rows.Next() {
		row := make(map[string]any, len(cols))
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		set.Rows = append(set.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return set, nil
}

// wrapLimit bounds the statement at limit+1 rows. EXPLAIN output is not a
// table SQLite can select from, so it is passed through.
func wrapLimit(sql string, limit int) string {
	if limit <= 0 || strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sql)), "EXPLAIN") {
		return sql
	}
	body := domain.TrimTrailingNoise(sql)
	return fmt.Sprintf("SELECT * FROM (%s\n) AS _q LIMIT %d", body, limit+1)
}
