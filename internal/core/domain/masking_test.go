package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskType_Valid(t *testing.T) {
	t.Parallel()
	for _, mt := range []MaskType{"", MaskRedact, MaskHash, MaskPartial, MaskNull} {
		assert.True(t, mt.Valid(), "expected %q to be valid", mt)
	}
	for _, mt := range []MaskType{"encrypt", "REDACT", "sha256"} {
		assert.False(t, mt.Valid(), "expected %q to be invalid", mt)
	}
}

func TestMaskType_Apply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		mask  MaskType
		value any
		want  any
	}{
		{"redact string", MaskRedact, "secret@email.com", "***"},
		{"redact int", MaskRedact, 12345, "***"},
		{"redact nil", MaskRedact, nil, nil},
		{"partial long", MaskPartial, "1234567890", "******7890"},
		{"partial short", MaskPartial, "ab", "***ab"},
		{"partial exactly four", MaskPartial, "abcd", "***abcd"},
		{"partial int", MaskPartial, 12345, "*2345"},
		{"partial empty", MaskPartial, "", "***"},
		{"null", MaskNull, "secret", nil},
		{"unknown keeps value", MaskType("encrypt"), "keep-me", "keep-me"},
		{"none keeps value", MaskType(""), "keep-me", "keep-me"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.mask.Apply(tt.value))
		})
	}
}

func TestMaskType_ApplyHash(t *testing.T) {
	t.Parallel()

	h := MaskHash.Apply("secret@email.com")
	s, ok := h.(string)
	assert.True(t, ok)
	assert.Len(t, s, 64)
	assert.Equal(t, h, MaskHash.Apply("secret@email.com"))
	assert.NotEqual(t, h, MaskHash.Apply("other@email.com"))

	// Formatting with %v makes an int and its string form hash alike.
	assert.Equal(t, MaskHash.Apply(12345), MaskHash.Apply("12345"))
	assert.Nil(t, MaskHash.Apply(nil))
}

func TestMaskType_ApplyPartialUnicode(t *testing.T) {
	t.Parallel()

	s, ok := MaskPartial.Apply("café résumé").(string)
	assert.True(t, ok)
	assert.True(t, strings.HasSuffix(s, "sumé"))
	runes := []rune(s)
	assert.Len(t, runes, 11)
	for i := range 7 {
		assert.Equal(t, '*', runes[i])
	}
}

func TestMasker_Apply(t *testing.T) {
	t.Parallel()

	rows := []map[string]any{
		{"id": 1, "Email": "alice@example.com", "name": "Alice"},
		{"id": 2, "Email": "bob@example.com", "name": "Bob"},
	}
	NewMasker(map[string]MaskType{"EMAIL": MaskRedact}).Apply(rows)

	assert.Equal(t, "***", rows[0]["Email"])
	assert.Equal(t, "***", rows[1]["Email"])
	assert.Equal(t, "Alice", rows[0]["name"])
	assert.Equal(t, 1, rows[0]["id"])
}

func TestMasker_Empty(t *testing.T) {
	t.Parallel()

	var nilMasker *Masker
	assert.True(t, nilMasker.Empty())
	assert.True(t, NewMasker(nil).Empty())
	assert.True(t, NewMasker(map[string]MaskType{"email": ""}).Empty())

	rows := []map[string]any{{"email": "alice@example.com"}}
	nilMasker.Apply(rows)
	assert.Equal(t, "alice@example.com", rows[0]["email"])
	assert.Nil(t, nilMasker.ForQuery("SELECT email FROM t"))
}

func TestMasker_MissingColumn(t *testing.T) {
	t.Parallel()

	rows := []map[string]any{{"id": 1, "name": "Alice"}}
	NewMasker(map[string]MaskType{"ssn": MaskRedact}).Apply(rows)
	assert.Equal(t, "Alice", rows[0]["name"])
}

func TestMasker_ForQueryFollowsAliases(t *testing.T) {
	t.Parallel()

	base := NewMasker(map[string]MaskType{"account_number": MaskPartial})
	m := base.ForQuery("SELECT a.account_number AS acct, name AS who FROM accounts a")

	rows := []map[string]any{{"acct": "1234567890", "who": "alice"}}
	m.Apply(rows)
	assert.Equal(t, "******7890", rows[0]["acct"])
	assert.Equal(t, "alice", rows[0]["who"])

	// The base masker is not modified.
	other := []map[string]any{{"acct": "1234567890"}}
	base.Apply(other)
	assert.Equal(t, "1234567890", other[0]["acct"])
}

func TestMasker_ForQueryMasksEveryAlias(t *testing.T) {
	t.Parallel()

	base := NewMasker(map[string]MaskType{"account_number": MaskRedact})
	m := base.ForQuery("SELECT account_number AS a, account_number AS b FROM accounts")

	rows := []map[string]any{{"a": "1234567890", "b": "1234567890"}}
	m.Apply(rows)
	assert.Equal(t, "***", rows[0]["a"])
	assert.Equal(t, "***", rows[0]["b"])
}

func TestMasker_ForQueryUnparseable(t *testing.T) {
	t.Parallel()

	base := NewMasker(map[string]MaskType{"email": MaskRedact})
	assert.Same(t, base, base.ForQuery("SELECT FROM WHERE ("))
}
