package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberedRows(n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{"n": i}
	}
	return out
}

func TestSucceeded(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		set           *RowSet
		maxRows       int
		wantCount     int
		wantTotal     int
		wantTruncated bool
	}{
		{"under cap", &RowSet{Rows: numberedRows(3)}, 10, 3, 0, false},
		{"at cap", &RowSet{Rows: numberedRows(10)}, 10, 10, 0, false},
		{"over cap", &RowSet{Rows: numberedRows(25)}, 10, 10, 25, true},
		{"runner hint", &RowSet{Rows: numberedRows(10), TotalRows: 11}, 10, 10, 11, true},
		{"hint below count ignored", &RowSet{Rows: numberedRows(4), TotalRows: 2}, 10, 4, 0, false},
		{"no cap", &RowSet{Rows: numberedRows(25)}, 0, 25, 0, false},
		{"nil set", nil, 10, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := Succeeded(tt.set, tt.maxRows, 2)
			assert.True(t, res.OK())
			assert.Equal(t, tt.wantCount, res.RowCount)
			assert.Len(t, res.Rows, tt.wantCount)
			assert.Equal(t, tt.wantTotal, res.TotalRows)
			assert.Equal(t, tt.wantTruncated, res.Truncated)
			assert.Equal(t, 2, res.Attempts)
		})
	}
}

func TestSucceeded_KeepsFirstRows(t *testing.T) {
	t.Parallel()

	res := Succeeded(&RowSet{Rows: numberedRows(25)}, 10, 1)
	assert.Equal(t, 0, res.Rows[0]["n"])
	assert.Equal(t, 9, res.Rows[9]["n"])
}

func TestFailureResults(t *testing.T) {
	t.Parallel()

	f := Failed(KindSyntaxError, "syntax error at or near \"FORM\"", 1)
	assert.False(t, f.OK())
	assert.Equal(t, 1, f.Attempts)
	assert.Equal(t, KindSyntaxError, f.Failure.Kind)
	assert.Empty(t, f.Failure.LastKind)

	e := Exhausted(KindTimeout, "timeout: statement timeout", 3)
	assert.Equal(t, KindRetriesExhausted, e.Failure.Kind)
	assert.Equal(t, KindTimeout, e.Failure.LastKind)
	assert.Equal(t, 3, e.Failure.Attempts)

	p := PolicyViolation(RejectKeyword("DROP"))
	assert.Equal(t, KindPolicyViolation, p.Failure.Kind)
	assert.Equal(t, 0, p.Failure.Attempts)
	assert.Equal(t, "disallowed_keyword", p.Failure.Message)
	require.NotNil(t, p.Failure.Verdict)
	assert.Equal(t, "DROP", p.Failure.Verdict.Keyword)
}

func TestFailure_Err(t *testing.T) {
	t.Parallel()

	var nilFailure *Failure
	assert.NoError(t, nilFailure.Err())

	err := Failed(KindTimeout, "too slow", 1).Failure.Err()
	assert.EqualError(t, err, "timeout after 1 attempt(s): too slow")

	err = Failed(KindCancelled, "", 0).Failure.Err()
	assert.EqualError(t, err, "cancelled after 0 attempt(s)")
}

func TestQueryResult_JSON(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(Exhausted(KindDeadlock, "deadlock: x", 3))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"row_count": 0,
		"attempts_made": 3,
		"failure": {"kind": "retries_exhausted", "message": "deadlock: x", "attempts_made": 3, "last_kind": "deadlock"}
	}`, string(b))
}

func TestToTable(t *testing.T) {
	t.Parallel()

	res := Succeeded(&RowSet{
		Columns: []string{"name", "id"},
		Rows: []map[string]any{
			{"id": 1, "name": "alice"},
			{"id": 2, "name": "bob"},
			{"id": 3, "name": "carol"},
		},
	}, 2, 1)

	tbl := ToTable(res)
	assert.Equal(t, []string{"name", "id"}, tbl.Columns)
	assert.Equal(t, [][]any{{"alice", 1}, {"bob", 2}}, tbl.Rows)
	assert.Equal(t, 3, tbl.RowCount, "row count reflects rows before truncation")
}

func TestToTable_InfersColumns(t *testing.T) {
	t.Parallel()

	tbl := ToTable(Succeeded(&RowSet{Rows: []map[string]any{{"b": 2, "a": 1}}}, 0, 1))
	assert.Equal(t, []string{"a", "b"}, tbl.Columns)
	assert.Equal(t, [][]any{{1, 2}}, tbl.Rows)
	assert.Equal(t, 1, tbl.RowCount)

	empty := ToTable(Succeeded(nil, 10, 1))
	assert.Empty(t, empty.Columns)
	assert.Empty(t, empty.Rows)
	assert.Equal(t, 0, empty.RowCount)
}
