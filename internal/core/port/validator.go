package port

import "github.com/guillermoBallester/queryguard/internal/core/domain"

// QueryValidator decides whether a statement may be executed.
type QueryValidator interface {
	Validate(sql string) domain.Verdict
}
