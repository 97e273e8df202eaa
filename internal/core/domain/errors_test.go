package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindUnknown},
		{"structured", NewDBError(KindPermissionDenied, "42501", errors.New("boom")), KindPermissionDenied},
		{"wrapped structured", fmt.Errorf("run: %w", NewDBError(KindDeadlock, "40P01", errors.New("x"))), KindDeadlock},
		{"structured beats message", NewDBError(KindSyntaxError, "", errors.New("connection timeout")), KindSyntaxError},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), KindTimeout},
		{"canceled", context.Canceled, KindCancelled},
		{"deadlock text", errors.New("ERROR: deadlock detected"), KindDeadlock},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), KindDeadlock},
		{"timeout text", errors.New("Query Timeout expired"), KindTimeout},
		{"timed out", errors.New("dial tcp: i/o timed out"), KindTimeout},
		{"connection text", errors.New("connection refused"), KindConnectionError},
		{"network text", errors.New("network is unreachable"), KindConnectionError},
		{"broken pipe", errors.New("write: broken pipe"), KindConnectionError},
		{"permission", errors.New("permission denied for table payroll"), KindPermissionDenied},
		{"syntax", errors.New("syntax error at or near \"FORM\""), KindSyntaxError},
		{"missing relation", errors.New("relation \"nope\" does not exist"), KindObjectNotFound},
		{"sqlite missing table", errors.New("no such table: nope"), KindObjectNotFound},
		{"missing table named like a transient", errors.New("SQL logic error: no such table: connections (1)"), KindObjectNotFound},
		{"missing column named like a transient", errors.New("no such column: network_id"), KindObjectNotFound},
		{"syntax near timeout column", errors.New(`near "timeout_ms": syntax error`), KindSyntaxError},
		{"missing relation named deadlocks", errors.New(`relation "deadlocks" does not exist`), KindObjectNotFound},
		{"other", errors.New("division by zero"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassifyMessage_OrderMatters(t *testing.T) {
	t.Parallel()

	// Both "deadlock" and "timeout" appear; deadlock is checked first.
	assert.Equal(t, KindDeadlock, ClassifyMessage("lock timeout: deadlock victim"))
	// Missing objects are fatal even when the quoted name reads as transient.
	assert.Equal(t, KindObjectNotFound, ClassifyMessage("connection to database \"x\" does not exist"))
	assert.Equal(t, KindSyntaxError, ClassifyMessage(`near "network": syntax error`))
}

func TestDBError(t *testing.T) {
	t.Parallel()

	cause := errors.New("canceling statement due to statement timeout")
	err := NewDBError(KindTimeout, "57014", cause)
	assert.Equal(t, "timeout (57014): canceling statement due to statement timeout", err.Error())
	assert.ErrorIs(t, err, cause)

	noCode := NewDBError(KindConnectionError, "", cause)
	assert.Equal(t, "connection_error: canceling statement due to statement timeout", noCode.Error())

	assert.Equal(t, "unknown: ", NewDBError(KindUnknown, "", nil).Error())
}

func TestParseErrorKind(t *testing.T) {
	t.Parallel()

	k, err := ParseErrorKind(" Deadlock ")
	require.NoError(t, err)
	assert.Equal(t, KindDeadlock, k)

	_, err = ParseErrorKind("flaky")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flaky")
}

func TestClassification(t *testing.T) {
	t.Parallel()

	def := DefaultClassification()
	for _, k := range []ErrorKind{KindTimeout, KindConnectionError, KindDeadlock} {
		assert.True(t, def.IsTransient(k), k)
	}
	for _, k := range []ErrorKind{KindSyntaxError, KindPermissionDenied, KindObjectNotFound, KindUnknown, KindCancelled} {
		assert.False(t, def.IsTransient(k), k)
	}
	assert.ElementsMatch(t, []ErrorKind{KindTimeout, KindConnectionError, KindDeadlock}, def.Transient())

	none := NewClassification()
	assert.False(t, none.IsTransient(KindTimeout))
	assert.Empty(t, none.Transient())

	var zero Classification
	assert.False(t, zero.IsTransient(KindTimeout))
}
