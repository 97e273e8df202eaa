package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/guillermoBallester/queryguard/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() domain.QueryResult {
	return domain.QueryResult{
		Columns: []string{"id", "name", "note"},
		Rows: []map[string]any{
			{"id": int64(1), "name": "alice", "note": nil},
			{"id": int64(2), "name": "bob, jr", "note": []byte("vip")},
		},
		RowCount: 2,
		Attempts: 1,
	}
}

func TestRender_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, formatTable, sampleResult()))

	out := buf.String()
	assert.Contains(t, out, "id")
	assert.Contains(t, out, "name")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "NULL")
	assert.Contains(t, out, "vip")
}

func TestRender_TableNoColumns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, formatTable, domain.QueryResult{Attempts: 1}))
	assert.Equal(t, "(no columns)\n", buf.String())
}

func TestRender_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, formatCSV, sampleResult()))
	assert.Equal(t, "id,name,note\n1,alice,NULL\n2,\"bob, jr\",vip\n", buf.String())
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, render(&buf, formatJSON, sampleResult()))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, float64(2), got["row_count"])
	assert.Equal(t, float64(1), got["attempts_made"])
	assert.Len(t, got["rows"], 2)
}

func TestRender_UnknownFormat(t *testing.T) {
	err := render(&bytes.Buffer{}, "xml", sampleResult())
	assert.ErrorContains(t, err, `unknown output format "xml"`)
}

func TestFormatCell(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "NULL"},
		{"string", "x", "x"},
		{"bytes", []byte("raw"), "raw"},
		{"time", ts, "2024-03-01T12:00:00Z"},
		{"named string", domain.KindTimeout, "timeout"},
		{"stringer", 1500 * time.Millisecond, "1.5s"},
		{"int", 42, "42"},
		{"float", 1.5, "1.5"},
		{"bool", true, "true"},
		{"error", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, formatCell(tt.in))
		})
	}
}

func TestFooter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		res     domain.QueryResult
		elapsed time.Duration
		want    string
	}{
		{
			name:    "single row single attempt",
			res:     domain.QueryResult{RowCount: 1, Attempts: 1},
			elapsed: 12 * time.Millisecond,
			want:    "1 row, 1 attempt in 12ms",
		},
		{
			name:    "truncated",
			res:     domain.QueryResult{RowCount: 100, TotalRows: 1001, Truncated: true, Attempts: 2},
			elapsed: 1234 * time.Millisecond,
			want:    "showing 100 of 1,001 rows (truncated), 2 attempts in 1.234s",
		},
		{
			name:    "empty",
			res:     domain.QueryResult{Attempts: 1},
			elapsed: 0,
			want:    "0 rows, 1 attempt in 0s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, footer(tt.res, tt.elapsed))
		})
	}
}
