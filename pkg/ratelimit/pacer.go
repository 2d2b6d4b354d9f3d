package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Pacer inserts the pause that must follow every upstream call
type Pacer interface {
	Pause(ctx context.Context) error
}

// RandomDelay pauses for a uniformly random duration in [Min, Max]
type RandomDelay struct {
	Min time.Duration
	Max time.Duration

	mu    sync.Mutex
	randN func(n int64) int64
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRandomDelay creates a pacer with the given bounds. Max below Min is
// treated as Min.
func NewRandomDelay(min, max time.Duration) *RandomDelay {
	if max < min {
		max = min
	}
	return &RandomDelay{Min: min, Max: max, randN: rand.Int64N, sleep: Sleep}
}

// Next returns the next delay without sleeping
func (p *RandomDelay) Next() time.Duration {
	span := int64(p.Max - p.Min)
	if span <= 0 {
		return p.Min
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Min + time.Duration(p.randN(span+1))
}

// Pause sleeps for the next delay or until ctx is done
func (p *RandomDelay) Pause(ctx context.Context) error {
	return p.sleep(ctx, p.Next())
}

// Sleep waits for d or until ctx is done, whichever comes first
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NoDelay is a Pacer that never waits
type NoDelay struct{}

func (NoDelay) Pause(ctx context.Context) error { return ctx.Err() }

// CountingPacer records how many pauses were requested; used in tests
type CountingPacer struct {
	mu    sync.Mutex
	count int
}

func (c *CountingPacer) Pause(ctx context.Context) error {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
	return ctx.Err()
}

// Count returns the number of pauses so far
func (c *CountingPacer) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
