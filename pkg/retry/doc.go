// Package retry provides bounded retry with backoff for upstream HTTP calls
// and result sink writes.
//
//	err := retry.Do(ctx, &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     &retry.ConstantBackoff{Delay: time.Second},
//	}, func(ctx context.Context) error {
//		return sink.Emit(ctx, lead)
//	})
//
// Do never loops forever: MaxAttempts below 1 is treated as a single attempt.
package retry
