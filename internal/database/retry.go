package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stwalsh4118/covenant/internal/config"
)

// ErrStoreUnavailable is returned once a transient store failure outlives its retries.
var ErrStoreUnavailable = errors.New("store unavailable")

// Postgres error codes that are safe to retry as a whole statement.
var retryableCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
	"53300": true, // too_many_connections
}

// IsRetryable reports whether err is a transient store failure: a lost or
// refused connection, a timeout, or a Postgres error that resolves on retry.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08") || retryableCodes[pgErr.Code]
	}

	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// Retrier runs store calls under a per-attempt timeout and retries transient
// failures with exponential backoff. A nil *Retrier runs the call once with
// the caller's context.
type Retrier struct {
	Attempts        int
	Timeout         time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// NewRetrier builds a Retrier from the store settings.
func NewRetrier(cfg config.DatabaseConfig) *Retrier {
	return &Retrier{
		Attempts:        cfg.RetryAttempts,
		Timeout:         cfg.Timeout,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
	}
}

// Do runs op until it succeeds, fails permanently, or runs out of attempts.
// Exhausted transient failures are wrapped with ErrStoreUnavailable.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if r == nil {
		return op(ctx)
	}

	var transient bool
	attempt := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}

		actx, cancel := r.attemptContext(ctx)
		err := op(actx)
		cancel()
		if err == nil {
			return nil
		}

		// A per-attempt deadline is transient as long as the caller is still waiting.
		if IsRetryable(err) || (errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil) {
			transient = true
			return err
		}
		transient = false
		return backoff.Permanent(err)
	}

	err := backoff.Retry(attempt, backoff.WithContext(r.policy(), ctx))
	if err != nil && transient && ctx.Err() == nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}

// Retry is Do for calls that return a value.
func Retry[T any](ctx context.Context, r *Retrier, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (r *Retrier) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.Timeout)
}

func (r *Retrier) policy() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if r.InitialInterval > 0 {
		exp.InitialInterval = r.InitialInterval
	}
	if r.MaxInterval > 0 {
		exp.MaxInterval = r.MaxInterval
	}
	exp.MaxElapsedTime = 0

	retries := r.Attempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(exp, uint64(retries))
}
