package services

import (
	"context"
	"errors"
	"time"

	"github.com/stwalsh4118/covenant/internal/clock"
	"github.com/stwalsh4118/covenant/internal/database"
	"github.com/stwalsh4118/covenant/internal/logger"
	"github.com/stwalsh4118/covenant/internal/metrics"
	"github.com/stwalsh4118/covenant/internal/notify"
	"github.com/stwalsh4118/covenant/internal/repository"
)

// Service-level errors
var (
	ErrPropertyNotFound       = errors.New("property not found")
	ErrInvalidProperty        = errors.New("invalid property")
	ErrViolationNotFound      = errors.New("violation not found")
	ErrViolationNotActionable = errors.New("violation not found or already actioned")
	ErrInvalidViolation       = errors.New("invalid violation")
	ErrInvalidTransition      = errors.New("invalid violation status transition")
	ErrNotPendingReview       = errors.New("violation is not pending review")
	ErrBillNotFound           = errors.New("bill not found")
	ErrBillAlreadyPaid        = errors.New("bill already paid")
	ErrAnalysisUnavailable    = errors.New("violation analysis unavailable")

	// ErrInvariant marks a state the conditional writes should make
	// impossible. It is a programming fault, never a user error.
	ErrInvariant = errors.New("billing invariant violated")

	errNotifierMissing = errors.New("no notifier configured")
)

// Deps are the collaborators shared by every service.
type Deps struct {
	Store    *repository.Store
	Clock    clock.Clock
	Retrier  *database.Retrier
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Log      *logger.Logger
}

// now returns the current time at the store's timestamp precision, so a value
// written and read back compares equal.
func (d Deps) now() time.Time {
	return d.Clock.Now().UTC().Truncate(time.Microsecond)
}

// call runs a store operation under the retry policy.
func call[T any](ctx context.Context, d Deps, op func(ctx context.Context) (T, error)) (T, error) {
	return database.Retry(ctx, d.Retrier, op)
}

// exec runs a store operation that returns only an error under the retry policy.
func exec(ctx context.Context, d Deps, op func(ctx context.Context) error) error {
	return d.Retrier.Do(ctx, op)
}

func (d Deps) withDefaults(component string) Deps {
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	d.Log = d.Log.Component(component)
	return d
}
