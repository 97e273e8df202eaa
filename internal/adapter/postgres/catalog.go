package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/guillermoBallester/queryguard/internal/core/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Catalog reads table and column metadata from information_schema.
type Catalog struct {
	pool    *pgxpool.Pool
	schemas []string // empty means all non-system schemas
}

func NewCatalog(pool *pgxpool.Pool, schemas []string) *Catalog {
	return &Catalog{pool: pool, schemas: schemas}
}

func (c *Catalog) ListTables(ctx context.Context) ([]domain.TableRef, error) {
	filter, args := schemaFilter(c.schemas, "t.table_schema", 1)
	query := fmt.Sprintf(queryListTables, filter)

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", ClassifyError(err))
	}
	tables, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TableRef, error) {
		var t domain.TableRef
		err := row.Scan(&t.Schema, &t.Name)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning table row: %w", err)
	}
	return tables, nil
}

// DescribeTable returns the columns of table in ordinal order. An empty
// Schema is resolved against the configured schemas, preferring public.
func (c *Catalog) DescribeTable(ctx context.Context, table domain.TableRef) (*domain.TableSchema, error) {
	table, err := c.resolve(ctx, table)
	if err != nil {
		return nil, err
	}

	rows, err := c.pool.Query(ctx, queryColumns, table.Schema, table.Name)
	if err != nil {
		return nil, fmt.Errorf("describing %s: %w", table, ClassifyError(err))
	}
	cols, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ColumnSchema, error) {
		var col domain.ColumnSchema
		err := row.Scan(&col.Name, &col.DataType, &col.IsNullable, &col.Description)
		return col, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning column row: %w", err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s: %w", table, domain.ErrNotFound)
	}

	out := &domain.TableSchema{TableRef: table, Columns: cols}
	if err := c.pool.QueryRow(ctx, queryTableComment, table.Schema, table.Name).Scan(&out.Description); err != nil {
		return nil, fmt.Errorf("reading comment of %s: %w", table, ClassifyError(err))
	}
	return out, nil
}

// SampleRows reads up to limit rows from table in a read-only transaction.
func (c *Catalog) SampleRows(ctx context.Context, table domain.TableRef, limit int) (*domain.RowSet, error) {
	table, err := c.resolve(ctx, table)
	if err != nil {
		return nil, err
	}

	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, ClassifyError(fmt.Errorf("beginning transaction: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ident := pgx.Identifier{table.Schema, table.Name}.Sanitize()
	rows, err := tx.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", ident, max(limit, 0)))
	if err != nil {
		return nil, ClassifyError(fmt.Errorf("sampling %s: %w", table, err))
	}
	set, err := rowsToSet(rows)
	if err != nil {
		return nil, ClassifyError(err)
	}
	return set, nil
}

func (c *Catalog) resolve(ctx context.Context, table domain.TableRef) (domain.TableRef, error) {
	if table.Schema != "" {
		return table, nil
	}

	filter, args := schemaFilter(c.schemas, "t.table_schema", 2)
	query := fmt.Sprintf(queryResolveSchema, filter)

	err := c.pool.QueryRow(ctx, query, append([]any{table.Name}, args...)...).Scan(&table.Schema)
	if errors.Is(err, pgx.ErrNoRows) {
		return table, fmt.Errorf("table %s: %w", table.Name, domain.ErrNotFound)
	}
	if err != nil {
		return table, fmt.Errorf("resolving schema of %s: %w", table.Name, ClassifyError(err))
	}
	return table, nil
}
