package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordValidator_Validate(t *testing.T) {
	t.Parallel()

	v := NewKeywordValidator(DefaultDenyList())
	tests := []struct {
		name    string
		sql     string
		allowed bool
		reason  RejectReason
		keyword string
	}{
		{name: "simple select", sql: "SELECT * FROM users", allowed: true},
		{name: "lowercase select", sql: "select id from users", allowed: true},
		{name: "leading whitespace", sql: "  \n\tSELECT 1", allowed: true},
		{name: "line comment first", sql: "-- top customers\nSELECT id FROM customers", allowed: true},
		{name: "block comment first", sql: "/* report */ SELECT 1", allowed: true},
		{name: "substring of keyword", sql: "SELECT updated_at, created_by FROM executions", allowed: true},
		{name: "empty", sql: "", reason: ReasonEmpty},
		{name: "whitespace only", sql: " \n\t ", reason: ReasonEmpty},
		{name: "comment only", sql: "-- nothing here", reason: ReasonEmpty},
		{name: "unterminated block comment", sql: "/* SELECT 1", reason: ReasonEmpty},
		{name: "insert", sql: "INSERT INTO users (name) VALUES ('bob')", reason: ReasonNotASelect},
		{name: "cte", sql: "WITH x AS (SELECT 1) SELECT * FROM x", reason: ReasonNotASelect},
		{name: "parenthesised", sql: "(SELECT 1)", reason: ReasonNotASelect},
		{name: "prefix word", sql: "SELECTED 1", reason: ReasonNotASelect},
		{name: "piggybacked drop", sql: "SELECT * FROM t; DrOp TABLE t", reason: ReasonDisallowedKeyword, keyword: "DROP"},
		{name: "keyword in literal", sql: "SELECT * FROM t WHERE note = 'delete me'", reason: ReasonDisallowedKeyword, keyword: "DELETE"},
		{name: "stored procedure prefix", sql: "SELECT * FROM t; exec sp_who", reason: ReasonDisallowedKeyword, keyword: "EXEC"},
		{name: "procedure prefix alone", sql: "SELECT xp_cmdshell('dir')", reason: ReasonDisallowedKeyword, keyword: "XP_CMDSHELL"},
		{name: "grant", sql: "select 1; grant all on t to bob", reason: ReasonDisallowedKeyword, keyword: "GRANT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := v.Validate(tt.sql)
			assert.Equal(t, tt.allowed, got.Allowed, "verdict: %s", got)
			if !tt.allowed {
				assert.Equal(t, tt.reason, got.Reason)
				assert.Equal(t, tt.keyword, got.Keyword)
			}
		})
	}
}

func TestKeywordValidator_Idempotent(t *testing.T) {
	t.Parallel()

	v := NewKeywordValidator(DefaultDenyList())
	for _, sql := range []string{"SELECT 1", "DROP TABLE t", "SELECT 1; TRUNCATE t", ""} {
		assert.Equal(t, v.Validate(sql), v.Validate(sql), sql)
	}
}

func TestKeywordValidator_CustomDenyList(t *testing.T) {
	t.Parallel()

	v := NewKeywordValidator(NewDenyList([]string{" pg_sleep ", ""}, []string{"dblink"}))

	got := v.Validate("SELECT pg_sleep(10)")
	assert.Equal(t, RejectKeyword("PG_SLEEP"), got)

	got = v.Validate("SELECT * FROM dblink_connect('x')")
	assert.Equal(t, RejectKeyword("DBLINK_CONNECT"), got)

	// Defaults are replaced, not extended.
	assert.True(t, v.Validate("SELECT * FROM t WHERE a = 'drop'").Allowed)
}

func TestDenyList_Accessors(t *testing.T) {
	t.Parallel()

	d := DefaultDenyList()
	kw := d.Keywords()
	assert.Len(t, kw, 12)
	assert.IsIncreasing(t, kw)
	assert.Contains(t, kw, "TRUNCATE")
	assert.Equal(t, []string{"SP_", "XP_"}, d.Prefixes())

	p := d.Prefixes()
	p[0] = "ZZ_"
	assert.Equal(t, "SP_", d.Prefixes()[0], "Prefixes returns a copy")
}

func TestParserValidator_Validate(t *testing.T) {
	t.Parallel()

	v := NewParserValidator()
	tests := []struct {
		name    string
		sql     string
		allowed bool
		reason  RejectReason
		keyword string
	}{
		{name: "select", sql: "SELECT id FROM users WHERE id = 1", allowed: true},
		{name: "cte", sql: "WITH x AS (SELECT 1 AS n) SELECT n FROM x", allowed: true},
		{name: "union", sql: "SELECT 1 UNION ALL SELECT 2", allowed: true},
		{name: "empty", sql: "  ", reason: ReasonEmpty},
		{name: "comment only", sql: "-- nothing", reason: ReasonEmpty},
		{name: "multiple", sql: "SELECT 1; SELECT 2", reason: ReasonMultipleStatements},
		{name: "delete", sql: "DELETE FROM users", reason: ReasonNotASelect},
		{name: "explain", sql: "EXPLAIN SELECT 1", reason: ReasonNotASelect},
		{name: "select into", sql: "SELECT * INTO backup FROM users", reason: ReasonDisallowedKeyword, keyword: "INTO"},
		{name: "modifying cte", sql: "WITH d AS (DELETE FROM users RETURNING *) SELECT * FROM d", reason: ReasonNotASelect},
		{name: "garbage", sql: "SELEC 1 FRM", reason: ReasonParseFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := v.Validate(tt.sql)
			assert.Equal(t, tt.allowed, got.Allowed, "verdict: %s", got)
			if !tt.allowed {
				assert.Equal(t, tt.reason, got.Reason)
				assert.Equal(t, tt.keyword, got.Keyword)
			}
		})
	}
}

func TestChainValidator(t *testing.T) {
	t.Parallel()

	v := NewChainValidator(NewKeywordValidator(DefaultDenyList()), NewParserValidator())

	assert.True(t, v.Validate("SELECT 1").Allowed)
	assert.Equal(t, Reject(ReasonMultipleStatements), v.Validate("SELECT 1; SELECT 2"))
	assert.Equal(t, RejectKeyword("INTO"), v.Validate("SELECT * INTO t2 FROM t"))
	// The first validator's verdict wins.
	assert.Equal(t, RejectKeyword("DELETE"), v.Validate("SELECT 1; DELETE FROM t"))
	assert.True(t, NewChainValidator().Validate("anything").Allowed)
}

func TestTrimTrailingNoise(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		sql  string
		want string
	}{
		{"plain", "SELECT 1", "SELECT 1"},
		{"terminator", "SELECT 1;  ", "SELECT 1"},
		{"repeated terminators", "SELECT 1;;\n", "SELECT 1"},
		{"line comment after terminator", "SELECT 1; -- done", "SELECT 1"},
		{"block comment after terminator", "SELECT 1; /* done */", "SELECT 1"},
		{"comment then terminator", "SELECT 1 /* a */ ; -- b\n", "SELECT 1"},
		{"dashes inside string kept", "SELECT '--not a comment'", "SELECT '--not a comment'"},
		{"comment on earlier line kept", "SELECT 1 -- one\nFROM t;", "SELECT 1 -- one\nFROM t"},
		{"unterminated block", "SELECT 1 */", "SELECT 1 */"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, TrimTrailingNoise(tt.sql))
		})
	}
}
