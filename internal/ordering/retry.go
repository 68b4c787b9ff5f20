package ordering

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy bounds how often a transaction failing with a retryable
// error is attempted.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 25 * time.Millisecond}
}

func (e *Engine) run(ctx context.Context, op string, fn func(Store) error) error {
	attempts := e.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := e.retry.Backoff

	var err error
	for attempt := 1; ; attempt++ {
		err = e.tx.RunInTransaction(ctx, fn)
		if err == nil || !IsRetryable(err) || attempt == attempts {
			e.observe(op, attempt, err)
			return err
		}

		e.logger.Warn("retrying task transaction",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			err = fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			e.observe(op, attempt, err)
			return err
		case <-timer.C:
		}
		delay *= 2
	}
}

func (e *Engine) observe(op string, attempts int, err error) {
	if e.recorder != nil {
		e.recorder.ObserveTransaction(op, attempts, err)
	}
	if err != nil && IsRetryable(err) {
		e.logger.Error("task transaction failed",
			zap.String("op", op),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
	}
}
