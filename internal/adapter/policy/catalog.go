package policy

import (
	"context"

	"github.com/guillermoBallester/queryguard/internal/core/domain"
	"github.com/guillermoBallester/queryguard/internal/core/port"
)

// Catalog decorates a SchemaCatalog with business descriptions from the
// policy file.
type Catalog struct {
	inner  port.SchemaCatalog
	tables map[string]TableContext
}

func NewCatalog(inner port.SchemaCatalog, pol *Policy) *Catalog {
	c := &Catalog{inner: inner}
	if pol != nil {
		c.tables = pol.Context.Tables
	}
	return c
}

func (c *Catalog) ListTables(ctx context.Context) ([]domain.TableRef, error) {
	return c.inner.ListTables(ctx)
}

func (c *Catalog) DescribeTable(ctx context.Context, table domain.TableRef) (*domain.TableSchema, error) {
	schema, err := c.inner.DescribeTable(ctx, table)
	if err != nil {
		return nil, err
	}
	MergeTableSchema(schema, c.tables)
	return schema, nil
}

func (c *Catalog) SampleRows(ctx context.Context, table domain.TableRef, limit int) (*domain.RowSet, error) {
	return c.inner.SampleRows(ctx, table, limit)
}

// MergeTableSchema fills empty descriptions from the policy. Descriptions
// the database already carries (COMMENT ON) take precedence.
func MergeTableSchema(schema *domain.TableSchema, tables map[string]TableContext) {
	if schema == nil {
		return
	}
	tc, ok := tables[schema.TableRef.String()]
	if !ok {
		return
	}

	if schema.Description == "" {
		schema.Description = tc.Description
	}
	for i, col := range schema.Columns {
		if cc, ok := tc.Columns[col.Name]; ok && col.Description == "" {
			schema.Columns[i].Description = cc.Description
		}
	}
}
