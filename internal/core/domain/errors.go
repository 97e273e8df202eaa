package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the stable, machine-readable category of a failure.
type ErrorKind string

const (
	KindPolicyViolation  ErrorKind = "policy_violation"
	KindTimeout          ErrorKind = "timeout"
	KindConnectionError  ErrorKind = "connection_error"
	KindDeadlock         ErrorKind = "deadlock"
	KindSyntaxError      ErrorKind = "syntax_error"
	KindPermissionDenied ErrorKind = "permission_denied"
	KindObjectNotFound   ErrorKind = "object_not_found"
	KindRetriesExhausted ErrorKind = "retries_exhausted"
	KindCancelled        ErrorKind = "cancelled"
	KindUnknown          ErrorKind = "unknown"
)

// ParseErrorKind accepts the string form of a kind (as found in policy files).
func ParseErrorKind(s string) (ErrorKind, error) {
	k := ErrorKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindPolicyViolation, KindTimeout, KindConnectionError, KindDeadlock,
		KindSyntaxError, KindPermissionDenied, KindObjectNotFound,
		KindRetriesExhausted, KindCancelled, KindUnknown:
		return k, nil
	}
	return "", fmt.Errorf("unknown error kind %q", s)
}

// DBError is the structured error a runner returns. Code carries the
// driver's native code (SQLSTATE, SQLite result code) when there is one.
type DBError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *DBError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DBError) Unwrap() error {
	return e.Err
}

// NewDBError wraps err with kind, keeping err's text as the message.
func NewDBError(kind ErrorKind, code string, err error) *DBError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &DBError{Kind: kind, Code: code, Message: msg, Err: err}
}

// Classify derives the kind of a runner error. Structured errors win;
// context errors come next; the message is inspected only as a last resort.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var dbErr *DBError
	if errors.As(err, &dbErr) && dbErr.Kind != "" {
		return dbErr.Kind
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	}

	return ClassifyMessage(err.Error())
}

// messageRules is ordered: the first matching substring decides. Fatal
// phrases come first because they quote identifiers, and an identifier such
// as "connections" must not read as a transient failure.
var messageRules = []struct {
	needle string
	kind   ErrorKind
}{
	{"no such table", KindObjectNotFound},
	{"no such column", KindObjectNotFound},
	{"no such function", KindObjectNotFound},
	{"invalid object name", KindObjectNotFound},
	{"does not exist", KindObjectNotFound},
	{"syntax error", KindSyntaxError},
	{"permission denied", KindPermissionDenied},
	{"access denied", KindPermissionDenied},
	{"deadlock", KindDeadlock},
	{"lock wait", KindDeadlock},
	{"database is locked", KindDeadlock},
	{"timeout", KindTimeout},
	{"timed out", KindTimeout},
	{"connection", KindConnectionError},
	{"network", KindConnectionError},
	{"broken pipe", KindConnectionError},
}

// ClassifyMessage is the fallback for drivers that expose no error codes.
func ClassifyMessage(msg string) ErrorKind {
	lower := strings.ToLower(msg)
	for _, r := range messageRules {
		if strings.Contains(lower, r.needle) {
			return r.kind
		}
	}
	return KindUnknown
}

// Classification decides which kinds are worth retrying. Kinds it does not
// list are fatal, so unknown failures are never retried.
type Classification struct {
	transient map[ErrorKind]struct{}
}

func NewClassification(transient ...ErrorKind) Classification {
	c := Classification{transient: make(map[ErrorKind]struct{}, len(transient))}
	for _, k := range transient {
		c.transient[k] = struct{}{}
	}
	return c
}

func DefaultClassification() Classification {
	return NewClassification(KindTimeout, KindConnectionError, KindDeadlock)
}

func (c Classification) IsTransient(kind ErrorKind) bool {
	_, ok := c.transient[kind]
	return ok
}

// Transient lists the retryable kinds in no particular order.
func (c Classification) Transient() []ErrorKind {
	out := make([]ErrorKind, 0, len(c.transient))
	for k := range c.transient {
		out = append(out, k)
	}
	return out
}
