package port

import (
	"context"

	"github.com/guillermoBallester/queryguard/internal/core/domain"
)

// QueryAuditor persists the attempt trail of guarded executions.
type QueryAuditor interface {
	AttemptObserver
	Close() error
}

// NoopAuditor discards all audit entries.
type NoopAuditor struct{}

func (NoopAuditor) ObserveAttempt(context.Context, domain.Attempt) error { return nil }
func (NoopAuditor) Close() error                                         { return nil }
