package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/ayodeji-martins/gradeflow/internal/metrics"
)

// Retryable decides whether an error is worth another attempt. The recovery
// service supplies the real classifier; DefaultRetryable covers callers that
// have no opinion.
type Retryable func(error) bool

// DefaultRetryable retries timeouts only.
func DefaultRetryable(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// Do executes fn under the coordinator's current timeout for (service,
// operation), with jittered exponential backoff up to the configured attempt
// cap. Every attempt re-queries the timeout so a widening taken after a
// timeout is visible to the next try. The outcome of each attempt feeds the
// rolling window.
func (c *Coordinator) Do(ctx context.Context, service, operation string, retryable Retryable, fn func(ctx context.Context) error) error {
	if retryable == nil {
		retryable = DefaultRetryable
	}
	key := Key{service, operation}

	b := retry.NewExponential(c.cfg.InitialBackoff)
	if c.cfg.BackoffJitter > 0 {
		b = retry.WithJitter(c.cfg.BackoffJitter, b)
	}
	b = retry.WithMaxRetries(uint64(c.cfg.MaxAttempts-1), b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		timeout := c.GetTimeout(service, operation)
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		start := time.Now()
		err := fn(attemptCtx)
		elapsed := time.Since(start)
		c.RecordPerformance(service, operation, elapsed, err == nil)

		if err == nil {
			metrics.ExternalCalls.WithLabelValues(key.String(), "ok").Inc()
			return nil
		}
		metrics.ExternalCalls.WithLabelValues(key.String(), "error").Inc()

		if errors.Is(err, context.DeadlineExceeded) {
			c.AdjustTimeout(service, operation, "attempt timed out")
			return retry.RetryableError(err)
		}
		if retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
