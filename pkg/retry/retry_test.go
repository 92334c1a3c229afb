package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "membersync/pkg/errors"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2,
	}
}

func TestRetryWithCallback_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	var retried []int

	err := RetryWithCallback(context.Background(), fastPolicy(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("temporary")
		}
		return nil
	}, func(attempt int, err error, _ time.Duration) {
		retried = append(retried, attempt)
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(2), func() error {
		calls++
		return errors.New("still down")
	})

	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetry_StopsOnFatal(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(5), func() error {
		calls++
		return apperrors.ErrValidation.WithDetail("message", "malformed event")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, apperrors.IsValidation(err))
}

func TestRetry_RetriesDataAccessErrors(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		return apperrors.Wrap(errors.New("timeout"), apperrors.ErrDataAccess)
	})

	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

type classified struct {
	fatal bool
}

func (c classified) Error() string     { return "classified" }
func (c classified) IsFatal() bool     { return c.fatal }
func (c classified) IsRetryable() bool { return !c.fatal }

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(classified{fatal: true}))
	assert.False(t, IsFatal(classified{fatal: false}))
	assert.False(t, IsFatal(errors.New("plain")))
	assert.True(t, IsFatal(apperrors.ErrNotFound))
	assert.False(t, IsFatal(apperrors.ErrDataAccess))
}

func TestRetryWithCallback_ReportsGrowingDelays(t *testing.T) {
	var delays []time.Duration
	policy := Policy{MaxAttempts: 4, InitialInterval: time.Millisecond, MaxInterval: time.Second, Multiplier: 4}

	_ = RetryWithCallback(context.Background(), policy, func() error {
		return errors.New("down")
	}, func(_ int, _ error, next time.Duration) {
		delays = append(delays, next)
	})

	require.Len(t, delays, 3)
	assert.Greater(t, delays[2], delays[0])
}

func TestRetry_StopsWhenContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Retry(ctx, Policy{MaxAttempts: 10, InitialInterval: 50 * time.Millisecond}, func() error {
		calls++
		cancel()
		return errors.New("down")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
