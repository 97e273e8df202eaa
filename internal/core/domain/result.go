package domain

import (
	"fmt"
	"time"
)

// Outcome classifies a single execution attempt.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeTransient Outcome = "transient_failure"
	OutcomeFatal     Outcome = "fatal_failure"
)

// Attempt records one iteration of the retry loop. Kind and Message are set
// for failed attempts only.
type Attempt struct {
	RequestID string
	Tool      string
	SQL       string
	Number    int
	StartedAt time.Time
	Elapsed   time.Duration
	Outcome   Outcome
	Kind      ErrorKind
	Message   string
	RowCount  int
}

// Failure is the terminal error value of a guarded execution. LastKind is
// the kind of the final attempt when Kind is KindRetriesExhausted; Verdict
// is set when Kind is KindPolicyViolation.
type Failure struct {
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message,omitempty"`
	Attempts int       `json:"attempts_made"`
	LastKind ErrorKind `json:"last_kind,omitempty"`
	Verdict  *Verdict  `json:"verdict,omitempty"`
}

// Err exposes the failure as an error for callers that prefer one.
func (f *Failure) Err() error {
	if f == nil {
		return nil
	}
	if f.Message == "" {
		return fmt.Errorf("%s after %d attempt(s)", f.Kind, f.Attempts)
	}
	return fmt.Errorf("%s after %d attempt(s): %s", f.Kind, f.Attempts, f.Message)
}

// QueryResult is what the guard returns to the agent: rows on success, a
// Failure otherwise. RowCount always equals len(Rows).
type QueryResult struct {
	Columns   []string         `json:"columns,omitempty"`
	Rows      []map[string]any `json:"rows,omitempty"`
	RowCount  int              `json:"row_count"`
	TotalRows int              `json:"total_rows,omitempty"`
	Truncated bool             `json:"truncated,omitempty"`
	Attempts  int              `json:"attempts_made"`
	Failure   *Failure         `json:"failure,omitempty"`
}

func (r QueryResult) OK() bool {
	return r.Failure == nil
}

// Succeeded builds a success result, cutting rows down to maxRows. A
// non-positive maxRows means no cap.
func Succeeded(set *RowSet, maxRows, attempts int) QueryResult {
	if set == nil {
		set = &RowSet{}
	}
	rows := set.Rows
	total := max(len(rows), set.TotalRows)
	truncated := total > len(rows)
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
		truncated = true
	}
	res := QueryResult{
		Columns:   set.Columns,
		Rows:      rows,
		RowCount:  len(rows),
		Truncated: truncated,
		Attempts:  attempts,
	}
	if truncated {
		res.TotalRows = total
	}
	return res
}

func Failed(kind ErrorKind, message string, attempts int) QueryResult {
	return QueryResult{
		Attempts: attempts,
		Failure:  &Failure{Kind: kind, Message: message, Attempts: attempts},
	}
}

// Exhausted is the failure after every attempt ended in a transient error.
func Exhausted(last ErrorKind, message string, attempts int) QueryResult {
	res := Failed(KindRetriesExhausted, message, attempts)
	res.Failure.LastKind = last
	return res
}

// PolicyViolation is the failure for a statement the validator refused.
// No attempt is made.
func PolicyViolation(v Verdict) QueryResult {
	res := Failed(KindPolicyViolation, string(v.Reason), 0)
	res.Failure.Verdict = &v
	return res
}

// Table is the tabular form of a result for UIs and exports: column order is
// preserved and each row is a positional slice.
type Table struct {
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
	RowCount int      `json:"row_count"`
}

// ToTable flattens a successful result. RowCount reports the rows available
// before truncation so a UI can say "showing 10 of 25".
func ToTable(r QueryResult) Table {
	t := Table{Columns: r.Columns, Rows: make([][]any, 0, len(r.Rows)), RowCount: r.RowCount}
	if r.TotalRows > t.RowCount {
		t.RowCount = r.TotalRows
	}
	if len(t.Columns) == 0 && len(r.Rows) > 0 {
		t.Columns = sortedKeys(r.Rows[0])
	}
	for _, row := range r.Rows {
		vals := make([]any, len(t.Columns))
		for i, col := range t.Columns {
			vals[i] = row[col]
		}
		t.Rows = append(t.Rows, vals)
	}
	return t
}
