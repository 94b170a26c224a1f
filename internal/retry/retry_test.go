package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTransient = errors.New("transient")
	errPermanent = errors.New("permanent")
)

func isTransient(err error) bool { return errors.Is(err, errTransient) }

// recordingPolicy returns the default policy with a sleep that records delays.
func recordingPolicy(delays *[]time.Duration) Policy {
	p := Default(isTransient)
	p.Sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return p
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	var delays []time.Duration
	calls := 0

	err := Do(context.Background(), recordingPolicy(&delays), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestDo_StopsAfterMaxRetries(t *testing.T) {
	var delays []time.Duration
	calls := 0

	err := Do(context.Background(), recordingPolicy(&delays), func(context.Context) error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, delays)
}

func TestDo_PermanentErrorIsNotRetried(t *testing.T) {
	var delays []time.Duration
	calls := 0

	err := Do(context.Background(), recordingPolicy(&delays), func(context.Context) error {
		calls++
		return errPermanent
	})

	assert.ErrorIs(t, err, errPermanent)
	assert.Equal(t, 1, calls)
	assert.Empty(t, delays)
}

func TestDoValue_ReturnsValue(t *testing.T) {
	var delays []time.Duration
	calls := 0

	v, err := DoValue(context.Background(), recordingPolicy(&delays), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errTransient
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestDo_CancelledContextStopsWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := Default(isTransient)
	p.BaseDelay = time.Hour
	calls := 0

	err := Do(ctx, p, func(context.Context) error {
		calls++
		return errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestDo_OnRetry(t *testing.T) {
	var attempts []int
	p := recordingPolicy(new([]time.Duration))
	p.OnRetry = func(attempt int, _ time.Duration, _ error) {
		attempts = append(attempts, attempt)
	}

	_ = Do(context.Background(), p, func(context.Context) error { return errTransient })
	assert.Equal(t, []int{1, 2, 3}, attempts)
}

func TestPolicyDelay(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, p.Delay(0))
	assert.Equal(t, 400*time.Millisecond, p.Delay(2))

	flat := Policy{BaseDelay: time.Second}
	assert.Equal(t, time.Second, flat.Delay(5))
}

func TestDo_NilClassifierNeverRetries(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxRetries: 3}, func(context.Context) error {
		calls++
		return errTransient
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
