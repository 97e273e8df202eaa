package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/guillermoBallester/queryguard/internal/core/domain"
	"github.com/olekukonko/tablewriter"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatCSV   = "csv"
)

// render writes a successful result in the requested format.
func render(w io.Writer, format string, res domain.QueryResult) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case formatCSV:
		return renderCSV(w, domain.ToTable(res))
	case formatTable, "":
		return renderTable(w, domain.ToTable(res))
	default:
		return fmt.Errorf("unknown output format %q: must be table, json or csv", format)
	}
}

func renderTable(w io.Writer, t domain.Table) error {
	if len(t.Columns) == 0 {
		_, err := fmt.Fprintln(w, "(no columns)")
		return err
	}
	table := tablewriter.NewWriter(w)
	table.SetBorder(false)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader(t.Columns)
	for _, row := range t.Rows {
		table.Append(cells(row))
	}
	table.Render()
	return nil
}

func renderCSV(w io.Writer, t domain.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, row := range t.Rows {
		if err := cw.Write(cells(row)); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func cells(row []any) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = formatCell(v)
	}
	return out
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

// footer summarises a result for humans, e.g. "showing 100 of 1,001 rows
// (truncated), 2 attempts in 1.2s".
func footer(res domain.QueryResult, elapsed time.Duration) string {
	rows := fmt.Sprintf("%s %s", humanize.Comma(int64(res.RowCount)), plural(res.RowCount, "row", "rows"))
	if res.Truncated {
		rows = fmt.Sprintf("showing %s of %s rows (truncated)",
			humanize.Comma(int64(res.RowCount)), humanize.Comma(int64(res.TotalRows)))
	}
	return fmt.Sprintf("%s, %d %s in %s", rows, res.Attempts, plural(res.Attempts, "attempt", "attempts"),
		elapsed.Round(time.Millisecond))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
