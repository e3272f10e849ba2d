package engine

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"github.com/librarydesk/lending-engine/lending"
)

const (
	defaultMaxAttempts  = 4
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
)

type retryConfig struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
}

func defaultRetryConfig() retryConfig {
	return retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}
}

// withRetry runs fn until it succeeds, fails permanently or the attempts are used up.
//
// Retry schedule (default): 0 ms, 10 ms, 20 ms, 40 ms (with 30% jitter).
func (e *Engine) withRetry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < e.retry.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := e.retry.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * e.retry.jitterFactor //nolint:gosec // math/rand is sufficient for jitter
			backoffDelay := delay + time.Duration(jitter)

			e.recordRetry(ctx, operation, attempt, lastErr, backoffDelay)

			select {
			case <-time.After(backoffDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil || !isRetryable(lastErr) {
			return lastErr
		}
	}

	e.incrementCounter(ctx, metricRetriesExhausted, map[string]string{labelOperation: operation})

	return lastErr
}

// isRetryable reports whether the failed transaction is known to have left no writes behind
// and failed for a reason that may go away.
func isRetryable(err error) bool {
	if !lending.IsTransient(err) {
		return false
	}

	var commitErr *lending.CommitError
	if errors.As(err, &commitErr) {
		return commitErr.RolledBack
	}

	return !errors.Is(err, lending.ErrCommitFailed)
}

func (e *Engine) recordRetry(ctx context.Context, operation string, attempt int, cause error, delay time.Duration) {
	labels := map[string]string{
		labelOperation:     operation,
		labelAttemptNumber: strconv.Itoa(attempt),
	}

	e.incrementCounter(ctx, metricTransactionRetries, labels)
	e.recordDuration(ctx, metricRetryDelay, delay, labels)
	e.logWarn(ctx, logMsgRetrying,
		logAttrOperation, operation,
		logAttrAttempt, attempt,
		logAttrDelayMS, toMilliseconds(delay),
		logAttrError, cause.Error())
}
