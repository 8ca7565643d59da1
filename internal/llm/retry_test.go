package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr int

func (s statusErr) Error() string { return "status" }

func statusOf(err error) int {
	var s statusErr
	if errors.As(err, &s) {
		return int(s)
	}
	return 0
}

func fastPolicy() RetryPolicy {
	p := DefaultRetryPolicy()
	p.InitialDelay = time.Millisecond
	p.MaxDelay = 5 * time.Millisecond
	return p
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 5, p.Attempts)
	assert.Equal(t, 7.0, p.ExpBase)
	assert.True(t, p.Retryable(429))
	assert.True(t, p.Retryable(504))
	assert.False(t, p.Retryable(400))
	assert.False(t, p.Retryable(0))
}

func TestDoRetriesTransientStatus(t *testing.T) {
	calls := 0
	attempts, err := fastPolicy().Do(context.Background(), "score_agent", statusOf, func(context.Context) error {
		calls++
		if calls < 3 {
			return statusErr(503)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoStopsAfterAttempts(t *testing.T) {
	attempts, err := fastPolicy().Do(context.Background(), "score_agent", statusOf, func(context.Context) error {
		return statusErr(429)
	})
	assert.Equal(t, statusErr(429), err)
	assert.Equal(t, 5, attempts)
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	attempts, err := fastPolicy().Do(context.Background(), "score_agent", statusOf, func(context.Context) error {
		return statusErr(400)
	})
	assert.Equal(t, statusErr(400), err)
	assert.Equal(t, 1, attempts)
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts, err := fastPolicy().Do(ctx, "score_agent", statusOf, func(context.Context) error {
		cancel()
		return statusErr(503)
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoKeepsDeadlineVisible(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := fastPolicy().Do(ctx, "score_agent", statusOf, func(ctx context.Context) error {
		<-ctx.Done()
		return errors.New("transport closed")
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "transport closed")
}
