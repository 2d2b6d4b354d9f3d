package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "igleads/pkg/errors"
	"igleads/pkg/logger"
	"igleads/pkg/models"
	"igleads/pkg/retry"
)

// errWriteAbandoned marks an attempt that timed out while the backend was
// still writing. The write may yet land, so it is never retried.
var errWriteAbandoned = errors.New("write still in progress after attempt timeout")

// RetryingSink retries failed writes a bounded number of times. Each attempt
// gets its own timeout so a hung backend cannot stall the caller. The final
// error is a sink-stage error naming the lead's handle.
type RetryingSink struct {
	next    Sink
	retry   *retry.Config
	timeout time.Duration
}

// NewRetryingSink wraps next. attempts below 1 means a single attempt and a
// zero timeout disables the per-attempt deadline.
func NewRetryingSink(next Sink, attempts int, timeout time.Duration, log logger.Logger) *RetryingSink {
	return &RetryingSink{
		next: next,
		retry: &retry.Config{
			MaxAttempts: attempts,
			Backoff: &retry.ExponentialBackoff{
				BaseDelay:    100 * time.Millisecond,
				MaxDelay:     2 * time.Second,
				Multiplier:   2,
				JitterFactor: 0.1,
			},
			Logger: logger.OrDefault(log).WithField("component", "sink"),
		},
		timeout: timeout,
	}
}

// SetBackoff replaces the delay between attempts
func (r *RetryingSink) SetBackoff(b retry.BackoffStrategy) {
	r.retry.Backoff = b
}

func (r *RetryingSink) Emit(ctx context.Context, lead models.ClassifiedLead) error {
	cfg := *r.retry
	// only writes known to have failed are retried
	cfg.RetryIf = func(err error) bool {
		return ctx.Err() == nil && !errors.Is(err, ErrClosed) && !errors.Is(err, errWriteAbandoned)
	}

	err := retry.Do(ctx, &cfg, func(ctx context.Context) error {
		if r.timeout <= 0 {
			return r.next.Emit(ctx, lead)
		}
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		return r.emitWithin(attemptCtx, lead)
	})
	if err != nil {
		return errs.NewSinkWriteError(lead.Handle.String(), err)
	}
	return nil
}

// emitWithin returns when the write finishes or ctx expires, whichever is
// first. A write that outlives its deadline keeps running in the background
// and is reported as abandoned.
func (r *RetryingSink) emitWithin(ctx context.Context, lead models.ClassifiedLead) error {
	done := make(chan error, 1)
	go func() {
		done <- r.next.Emit(ctx, lead)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", errWriteAbandoned, ctx.Err())
	}
}

func (r *RetryingSink) Close() error {
	return r.next.Close()
}
