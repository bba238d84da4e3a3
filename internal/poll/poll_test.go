package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSleep never blocks and remembers every requested duration.
type recordingSleep struct {
	calls []time.Duration
}

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.calls = append(r.calls, d)
	return nil
}

func TestMaxAttempts(t *testing.T) {
	tests := []struct {
		timeout, interval time.Duration
		want              int
	}{
		{300 * time.Second, 10 * time.Second, 30},
		{305 * time.Second, 10 * time.Second, 31},
		{5 * time.Second, 10 * time.Second, 1},
		{0, 10 * time.Second, 1},
		{10 * time.Second, 0, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaxAttempts(tt.timeout, tt.interval), "timeout=%s interval=%s", tt.timeout, tt.interval)
	}
}

func TestUntil_NeverSatisfied(t *testing.T) {
	rs := &recordingSleep{}
	calls := 0
	res := Loop{Interval: 10 * time.Second, Timeout: 300 * time.Second, Sleep: rs.sleep}.
		Until(context.Background(), func(context.Context) (bool, error) {
			calls++
			return false, nil
		})

	assert.Equal(t, TimedOut, res.Outcome)
	assert.Equal(t, 30, res.Attempts)
	assert.Equal(t, 30, calls)
	// Sleeps happen between calls, not after the last one.
	assert.Len(t, rs.calls, 29)
	for _, d := range rs.calls {
		assert.Equal(t, 10*time.Second, d)
	}
	assert.NoError(t, res.Err)
}

func TestUntil_SatisfiedFirstTry(t *testing.T) {
	rs := &recordingSleep{}
	res := Loop{Interval: time.Second, Timeout: time.Minute, Sleep: rs.sleep}.
		Until(context.Background(), func(context.Context) (bool, error) { return true, nil })

	assert.Equal(t, Satisfied, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, rs.calls)
}

func TestUntil_SatisfiedLater(t *testing.T) {
	rs := &recordingSleep{}
	calls := 0
	res := Loop{Interval: time.Second, Timeout: time.Minute, Sleep: rs.sleep}.
		Until(context.Background(), func(context.Context) (bool, error) {
			calls++
			return calls == 4, nil
		})

	assert.Equal(t, Satisfied, res.Outcome)
	assert.Equal(t, 4, res.Attempts)
	assert.Len(t, rs.calls, 3)
}

func TestUntil_PredicateErrorStopsImmediately(t *testing.T) {
	rs := &recordingSleep{}
	boom := errors.New("throttled")
	calls := 0
	res := Loop{Interval: time.Second, Timeout: time.Minute, Sleep: rs.sleep}.
		Until(context.Background(), func(context.Context) (bool, error) {
			calls++
			if calls == 2 {
				return false, boom
			}
			return false, nil
		})

	assert.Equal(t, Failed, res.Outcome)
	assert.Equal(t, 2, res.Attempts)
	assert.ErrorIs(t, res.Err, boom)
	assert.Len(t, rs.calls, 1)
}

func TestUntil_ContextCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sleep := func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	res := Loop{Interval: time.Second, Timeout: time.Minute, Sleep: sleep}.
		Until(ctx, func(context.Context) (bool, error) { return false, nil })

	assert.Equal(t, TimedOut, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestUntil_ContextAlreadyDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	res := Until(ctx, time.Second, time.Minute, func(context.Context) (bool, error) {
		called = true
		return true, nil
	})
	assert.False(t, called)
	assert.Equal(t, TimedOut, res.Outcome)
	assert.Equal(t, 0, res.Attempts)
}

func TestSleep_ReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "satisfied", Satisfied.String())
	assert.Equal(t, "timed_out", TimedOut.String())
	assert.Equal(t, "failed", Failed.String())
}
