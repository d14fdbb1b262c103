package shared

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryPolicy bounds a retry loop with exponential backoff.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	// Retryable decides whether an error is transient. Nil retries nothing.
	Retryable func(error) bool
}

// SQLiteWritePolicy makes up to three attempts at a SQLite write, backing
// off 100ms then 200ms on lock conflicts.
var SQLiteWritePolicy = RetryPolicy{
	Attempts:  3,
	BaseDelay: 100 * time.Millisecond,
	Retryable: IsSQLiteConflictError,
}

// Retry runs fn until it succeeds, returns a non-retryable error, the
// attempts are exhausted or ctx is done. op names the operation in logs
// and in the final error.
func Retry(ctx context.Context, p RetryPolicy, op string, fn func(context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) || i == attempts-1 {
			break
		}

		delay := p.BaseDelay * time.Duration(1<<i)
		slog.Debug("retrying after transient error",
			"op", op,
			"attempt", i+1,
			"delay", delay,
			"error", err,
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
