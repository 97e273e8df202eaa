package domain

import "time"

// QueryRequest is one agent turn's candidate SQL plus its row and time budget.
type QueryRequest struct {
	SQL     string
	MaxRows int
	Timeout time.Duration
}

// NewQueryRequest builds a request from a timeout expressed in (possibly
// fractional) seconds, which is how agents usually supply it.
func NewQueryRequest(sql string, maxRows int, timeoutSeconds float64) QueryRequest {
	return QueryRequest{
		SQL:     sql,
		MaxRows: maxRows,
		Timeout: time.Duration(timeoutSeconds * float64(time.Second)),
	}
}

// RowSet is what a runner hands back for a successful call.
// TotalRows is an optional hint: when the runner knows more rows exist than
// it returned, it reports the larger number here. Zero means "no hint".
type RowSet struct {
	Columns   []string
	Rows      []map[string]any
	TotalRows int
}
