package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRetrier(attempts int) *Retrier {
	return &Retrier{
		Attempts:        attempts,
		Timeout:         time.Second,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"connection exception class", &pgconn.PgError{Code: "08006"}, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"check violation", &pgconn.PgError{Code: "23514"}, false},
		{"wrapped serialization failure", fmt.Errorf("update: %w", &pgconn.PgError{Code: "40001"}), true},
		{"network error", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestRetrier_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := testRetrier(3).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrier_ExhaustedIsUnavailable(t *testing.T) {
	calls := 0
	err := testRetrier(3).Do(context.Background(), func(context.Context) error {
		calls++
		return &pgconn.PgError{Code: "08006"}
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, 3, calls)

	var pgErr *pgconn.PgError
	assert.ErrorAs(t, err, &pgErr)
}

func TestRetrier_PermanentErrorNotRetried(t *testing.T) {
	sentinel := errors.New("not found")
	calls := 0
	err := testRetrier(5).Do(context.Background(), func(context.Context) error {
		calls++
		return sentinel
	})

	assert.ErrorIs(t, err, sentinel)
	assert.NotErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, 1, calls)
}

func TestRetrier_AttemptTimeoutIsRetried(t *testing.T) {
	r := testRetrier(2)
	r.Timeout = 5 * time.Millisecond

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})

	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, 2, calls)
}

func TestRetrier_CanceledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := testRetrier(3).Do(ctx, func(context.Context) error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestRetrier_Nil(t *testing.T) {
	var r *Retrier
	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return &pgconn.PgError{Code: "40001"}
	})

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, 1, calls)
}

func TestRetry_ReturnsValue(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), testRetrier(2), func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, &pgconn.PgError{Code: "40P01"}
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
}
