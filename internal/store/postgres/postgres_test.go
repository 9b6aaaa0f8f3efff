package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyPinger struct {
	failures int
	calls    int
}

func (p *flakyPinger) PingContext(context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestPingWithRetry_SucceedsAfterFailures(t *testing.T) {
	p := &flakyPinger{failures: 2}
	err := pingWithRetry(context.Background(), p, PoolOptions{PingAttempts: 3, PingInterval: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 3, p.calls)
}

func TestPingWithRetry_NoWaitAfterLastAttempt(t *testing.T) {
	p := &flakyPinger{failures: 10}
	opts := PoolOptions{PingAttempts: 2, PingInterval: 200 * time.Millisecond}

	start := time.Now()
	err := pingWithRetry(context.Background(), p, opts)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, 2, p.calls)
	assert.Less(t, elapsed, 2*opts.PingInterval, "only the gap between attempts is waited")
}

func TestPingWithRetry_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &flakyPinger{failures: 10}
	err := pingWithRetry(ctx, p, PoolOptions{PingAttempts: 5, PingInterval: time.Hour})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, p.calls)
}
