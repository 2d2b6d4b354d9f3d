package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for request rate limiting
type Limiter interface {
	// Allow reports whether a request may proceed right now
	Allow() bool
	// Wait blocks until a request may proceed or ctx is done
	Wait(ctx context.Context) error
	// Reset refills the limiter to its initial burst
	Reset()
}

// TokenBucket is a Limiter allowing requestsPerMinute on average with bursts
// of up to burst requests
type TokenBucket struct {
	limiter *rate.Limiter
	every   rate.Limit
	burst   int
}

// NewTokenBucket creates a token bucket limiter
func NewTokenBucket(requestsPerMinute, burst int) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	every := rate.Inf
	if requestsPerMinute > 0 {
		every = rate.Every(time.Minute / time.Duration(requestsPerMinute))
	}
	return &TokenBucket{
		limiter: rate.NewLimiter(every, burst),
		every:   every,
		burst:   burst,
	}
}

func (tb *TokenBucket) Allow() bool {
	return tb.limiter.Allow()
}

func (tb *TokenBucket) Wait(ctx context.Context) error {
	return tb.limiter.Wait(ctx)
}

func (tb *TokenBucket) Reset() {
	tb.limiter = rate.NewLimiter(tb.every, tb.burst)
}

// Unlimited never blocks
type Unlimited struct{}

func (Unlimited) Allow() bool                { return true }
func (Unlimited) Wait(context.Context) error { return nil }
func (Unlimited) Reset()                     {}
