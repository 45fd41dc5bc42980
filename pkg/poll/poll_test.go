package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntil_ImmediateSuccess(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	w := NewWaiter(clock)

	calls := 0
	err := w.Until(context.Background(), time.Second, 10*time.Second, func(ctx context.Context) (bool, error) {
		calls++
		return true, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clock.Sleeps(), "no sleep before a condition that already holds")
}

func TestUntil_SucceedsAfterPolls(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	w := NewWaiter(clock)

	calls := 0
	err := w.Until(context.Background(), 2*time.Second, time.Minute, func(ctx context.Context) (bool, error) {
		calls++
		return calls == 4, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.Len(t, clock.Sleeps(), 3)
}

func TestUntil_Timeout(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	w := NewWaiter(clock)

	calls := 0
	err := w.Until(context.Background(), 2*time.Second, 10*time.Second, func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	})

	assert.ErrorIs(t, err, ErrTimeout)
	// 5 polls fit in the 10s window at a 2s interval
	assert.Equal(t, 5, calls)
	// Never slept past the deadline
	assert.LessOrEqual(t, clock.Now().Sub(time.Unix(0, 0)), 10*time.Second)
}

func TestUntil_ConditionError(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	w := NewWaiter(clock)

	boom := errors.New("boom")
	err := w.Until(context.Background(), time.Second, time.Minute, func(ctx context.Context) (bool, error) {
		return false, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, clock.Sleeps())
}

func TestUntil_ContextCancelled(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	w := NewWaiter(clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Until(ctx, time.Second, time.Minute, func(ctx context.Context) (bool, error) {
		t.Fatal("condition must not run after cancellation")
		return false, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewWaiter_NilClockDefaultsToSystem(t *testing.T) {
	w := NewWaiter(nil)
	_, ok := w.Clock().(SystemClock)
	assert.True(t, ok)
}

func TestSystemClock_SleepCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := SystemClock{}.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
