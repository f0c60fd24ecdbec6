package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	rec := &recordingSleeper{}
	calls := 0
	res := Retry(context.Background(), Policy{MaxAttempts: 5, InitialDelay: 10 * time.Millisecond}, rec.sleep, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("busy")
		}
		return nil
	})

	assert.Equal(t, Succeeded, res.State)
	assert.Equal(t, 3, res.Attempts)
	assert.NoError(t, res.Err)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, rec.waits)
}

func TestRetryGivesUp(t *testing.T) {
	rec := &recordingSleeper{}
	boom := errors.New("boom")
	res := Retry(context.Background(), Policy{MaxAttempts: 3}, rec.sleep, func(context.Context) error {
		return boom
	})

	assert.Equal(t, Failed, res.State)
	assert.Equal(t, 3, res.Attempts)
	assert.ErrorIs(t, res.Err, boom)
	assert.Len(t, rec.waits, 2)
}

func TestRetryStopsOnPermanent(t *testing.T) {
	rec := &recordingSleeper{}
	bad := errors.New("bad input")
	res := Retry(context.Background(), Policy{}, rec.sleep, func(context.Context) error {
		return Permanent(bad)
	})

	assert.Equal(t, Failed, res.State)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, bad, res.Err)
	assert.Empty(t, rec.waits)
}

func TestRetryCanceledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	res := Retry(ctx, Policy{MaxAttempts: 5}, func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}, func(context.Context) error {
		return errors.New("not yet")
	})

	assert.Equal(t, Canceled, res.State)
	assert.Equal(t, 1, res.Attempts)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestRetryCanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	res := Retry(ctx, Policy{}, nil, func(context.Context) error {
		called = true
		return nil
	})

	assert.False(t, called)
	assert.Equal(t, Canceled, res.State)
	assert.Equal(t, 0, res.Attempts)
}

func TestDelayIsCapped(t *testing.T) {
	p := Policy{InitialDelay: time.Second, MaxDelay: 5 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 5*time.Second, p.Delay(4))
	assert.Equal(t, 5*time.Second, p.Delay(10))
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, SleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}
