package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyQuery        = errors.New("empty query")
	ErrNotASelect        = errors.New("only SELECT queries are allowed")
	ErrDisallowedKeyword = errors.New("query contains a disallowed keyword")
	ErrMultiStatement    = errors.New("multiple statements are not allowed")
	ErrParseFailed       = errors.New("failed to parse SQL")
	ErrNotFound          = errors.New("not found")
)

// RejectReason is the stable key explaining why a statement was refused.
type RejectReason string

const (
	ReasonEmpty              RejectReason = "empty"
	ReasonNotASelect         RejectReason = "not_a_select"
	ReasonDisallowedKeyword  RejectReason = "disallowed_keyword"
	ReasonMultipleStatements RejectReason = "multiple_statements"
	ReasonParseFailed        RejectReason = "parse_failed"
)

// Verdict is the outcome of validating a statement. The zero value is a
// rejection with no reason and should not be produced by validators.
type Verdict struct {
	Allowed bool         `json:"allowed"`
	Reason  RejectReason `json:"reason,omitempty"`
	// Keyword is the offending word for ReasonDisallowedKeyword.
	Keyword string `json:"keyword,omitempty"`
}

func Allow() Verdict {
	return Verdict{Allowed: true}
}

func Reject(reason RejectReason) Verdict {
	return Verdict{Reason: reason}
}

func RejectKeyword(keyword string) Verdict {
	return Verdict{Reason: ReasonDisallowedKeyword, Keyword: keyword}
}

// Err converts a rejection into an error wrapping the matching sentinel.
// Allowed verdicts return nil.
func (v Verdict) Err() error {
	if v.Allowed {
		return nil
	}
	switch v.Reason {
	case ReasonEmpty:
		return ErrEmptyQuery
	case ReasonNotASelect:
		return ErrNotASelect
	case ReasonDisallowedKeyword:
		return fmt.Errorf("%w: %s", ErrDisallowedKeyword, v.Keyword)
	case ReasonMultipleStatements:
		return ErrMultiStatement
	case ReasonParseFailed:
		return ErrParseFailed
	default:
		return fmt.Errorf("query rejected: %s", v.Reason)
	}
}

func (v Verdict) String() string {
	if v.Allowed {
		return "allowed"
	}
	if v.Keyword != "" {
		return fmt.Sprintf("rejected(%s: %s)", v.Reason, v.Keyword)
	}
	return fmt.Sprintf("rejected(%s)", v.Reason)
}
