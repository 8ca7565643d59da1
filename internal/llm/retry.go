// Package llm holds what every model backend shares: the retry policy and
// status classification.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"stockiq/internal/logger"
)

// RetryPolicy retries transient model API failures with exponential backoff.
type RetryPolicy struct {
	Attempts     int
	InitialDelay time.Duration
	ExpBase      float64
	MaxDelay     time.Duration
	StatusCodes  []int
}

// DefaultRetryPolicy waits 1s, 7s, 49s, 60s between five attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:     5,
		InitialDelay: time.Second,
		ExpBase:      7,
		MaxDelay:     60 * time.Second,
		StatusCodes:  []int{429, 500, 503, 504},
	}
}

// StatusFunc extracts the HTTP status from a backend error, or 0.
type StatusFunc func(error) int

// Retryable reports whether status is in the policy's retry set.
func (p RetryPolicy) Retryable(status int) bool {
	for _, c := range p.StatusCodes {
		if c == status {
			return true
		}
	}
	return false
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.Multiplier = p.ExpBase
	b.RandomizationFactor = 0
	b.MaxInterval = p.MaxDelay
	b.MaxElapsedTime = 0

	retries := p.Attempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Do runs op until it succeeds, fails with a non-retryable status, the
// attempts run out or ctx ends. It returns the number of attempts made and
// the last error.
func (p RetryPolicy) Do(ctx context.Context, name string, status StatusFunc, op func(context.Context) error) (int, error) {
	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !p.Retryable(status(err)) {
			return backoff.Permanent(err)
		}
		return err
	}, p.backOff(ctx), func(err error, wait time.Duration) {
		logger.Warn(ctx, "Retrying model call",
			"analyst", name,
			"attempt", attempts,
			"status", status(err),
			"backoff_ms", wait.Milliseconds(),
			"error", err,
		)
	})

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	// SDK transports do not always wrap the context error they observed.
	if cerr := ctx.Err(); err != nil && cerr != nil && !errors.Is(err, cerr) {
		err = fmt.Errorf("%w: %v", cerr, err)
	}
	return attempts, err
}
