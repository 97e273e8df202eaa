package postgres

import (
	"fmt"

	"github.com/guillermoBallester/queryguard/internal/core/domain"
	"github.com/jackc/pgx/v5"
)

// rowsToSet drains rows into a RowSet keyed by column name, keeping the
// column order of the result. rows is closed on return.
func rowsToSet(rows pgx.Rows) (*domain.RowSet, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	set := &domain.RowSet{Columns: make([]string, len(fields))}
	for i, fd := range fields {
		set.Columns[i] = fd.Name
	}

	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("reading row values: %w", err)
		}
		row := make(map[string]any, len(fields))
		for i, col := range set.Columns {
			row[col] = vals[i]
		}
		set.Rows = append(set.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return set, nil
}
