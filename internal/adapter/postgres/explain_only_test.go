package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/guillermoBallester/queryguard/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

type capturingRunner struct {
	lastSQL     string
	lastTimeout time.Duration
}

func (c *capturingRunner) Run(_ context.Context, sql string, timeout time.Duration) (*domain.RowSet, error) {
	c.lastSQL = sql
	c.lastTimeout = timeout
	return &domain.RowSet{}, nil
}

func TestExplainOnlyRunner(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		input       string
		expectedSQL string
	}{
		{"plain SELECT gets EXPLAIN prefix", "SELECT 1", "EXPLAIN SELECT 1"},
		{"EXPLAIN is passed through", "EXPLAIN SELECT 1", "EXPLAIN SELECT 1"},
		{"lowercase explain is passed through", "explain SELECT 1", "explain SELECT 1"},
		{"leading whitespace SELECT", "  SELECT 1", "EXPLAIN   SELECT 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			inner := &capturingRunner{}
			r := NewExplainOnlyRunner(inner)

			_, _ = r.Run(context.Background(), tt.input, 3*time.Second)
			assert.Equal(t, tt.expectedSQL, inner.lastSQL)
			assert.Equal(t, 3*time.Second, inner.lastTimeout)
		})
	}
}

func TestWrapLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		sql   string
		limit int
		want  string
	}{
		{"wraps select", "SELECT id FROM t", 10, "SELECT * FROM (SELECT id FROM t\n) AS _q LIMIT 11"},
		{"strips trailing semicolon", "SELECT id FROM t; ", 5, "SELECT * FROM (SELECT id FROM t\n) AS _q LIMIT 6"},
		{"trailing line comment dropped", "SELECT 1 -- one", 1, "SELECT * FROM (SELECT 1\n) AS _q LIMIT 2"},
		{"semicolon before comment", "SELECT 1; -- done", 1, "SELECT * FROM (SELECT 1\n) AS _q LIMIT 2"},
		{"semicolon before block comment", "SELECT 1; /* done */\n", 1, "SELECT * FROM (SELECT 1\n) AS _q LIMIT 2"},
		{"explain untouched", "EXPLAIN SELECT 1", 10, "EXPLAIN SELECT 1"},
		{"no limit", "SELECT 1", 0, "SELECT 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, wrapLimit(tt.sql, tt.limit))
		})
	}
}
