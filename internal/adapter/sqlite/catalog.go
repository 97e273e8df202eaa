package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/guillermoBallester/queryguard/internal/core/domain"
	"github.com/jmoiron/sqlx"
)

const queryListTables = `
	SELECT name FROM sqlite_master
	WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
	ORDER BY name`

const queryColumns = `
	SELECT name, type, "notnull" FROM pragma_table_info(?)
	ORDER BY cid`

// Catalog reads table metadata from sqlite_master and pragma_table_info.
// SQLite has no schemas, so TableRef.Schema is always empty.
type Catalog struct {
	db *sqlx.DB
}

func NewCatalog(db *sqlx.DB) *Catalog {
	return &Catalog{db: db}
}

func (c *Catalog) ListTables(ctx context.Context) ([]domain.TableRef, error) {
	var names []string
	if err := c.db.SelectContext(ctx, &names, queryListTables); err != nil {
		return nil, fmt.Errorf("listing tables: %w", ClassifyError(err))
	}
	tables := make([]domain.TableRef, len(names))
	for i, n := range names {
		tables[i] = domain.TableRef{Name: n}
	}
	return tables, nil
}

type columnRow struct {
	Name    string `db:"name"`
	Type    string `db:"type"`
	NotNull bool   `db:"notnull"`
}

func (c *Catalog) DescribeTable(ctx context.Context, table domain.TableRef) (*domain.TableSchema, error) {
	var rows []columnRow
	if err := c.db.SelectContext(ctx, &rows, queryColumns, table.Name); err != nil {
		return nil, fmt.Errorf("describing %s: %w", table, ClassifyError(err))
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("table %s: %w", table, domain.ErrNotFound)
	}

	out := &domain.TableSchema{TableRef: domain.TableRef{Name: table.Name}}
	for _, r := range rows {
		out.Columns = append(out.Columns, domain.ColumnSchema{
			Name:       r.Name,
			DataType:   r.Type,
			IsNullable: !r.NotNull,
		})
	}
	return out, nil
}

func (c *Catalog) SampleRows(ctx context.Context, table domain.TableRef, limit int) (*domain.RowSet, error) {
	rows, err := c.db.QueryxContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(table.Name), max(limit, 0)))
	if err != nil {
		return nil, ClassifyError(fmt.Errorf("sampling %s: %w", table, err))
	}
	set, err := scanRows(rows)
	if err != nil {
		return nil, ClassifyError(err)
	}
	return set, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
