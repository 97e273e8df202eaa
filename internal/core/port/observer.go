package port

import (
	"context"
	"errors"

	"github.com/guillermoBallester/queryguard/internal/core/domain"
)

// AttemptObserver receives one event per execution attempt. Returned errors
// are ignored by the guard; observers must not rely on them being handled.
type AttemptObserver interface {
	ObserveAttempt(ctx context.Context, attempt domain.Attempt) error
}

// AttemptObserverFunc adapts a function to AttemptObserver.
type AttemptObserverFunc func(ctx context.Context, attempt domain.Attempt) error

func (f AttemptObserverFunc) ObserveAttempt(ctx context.Context, attempt domain.Attempt) error {
	return f(ctx, attempt)
}

// Observers fans an attempt out to every observer, continuing past failures.
type Observers []AttemptObserver

func (o Observers) ObserveAttempt(ctx context.Context, attempt domain.Attempt) error {
	var errs []error
	for _, obs := range o {
		if obs == nil {
			continue
		}
		if err := obs.ObserveAttempt(ctx, attempt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NoopObserver discards all attempts.
type NoopObserver struct{}

func (NoopObserver) ObserveAttempt(context.Context, domain.Attempt) error { return nil }
