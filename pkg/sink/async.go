package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"igleads/pkg/logger"
	"igleads/pkg/models"
)

// ErrQueueFull is returned when a lead cannot be queued in time
var ErrQueueFull = errors.New("sink queue is full")

// AsyncSink decouples the crawler from slow backends. Emit only enqueues;
// worker goroutines drain the queue into the wrapped sink. Write failures
// cannot be reported to the emitter, so they are counted and Close reports
// them.
type AsyncSink struct {
	next           Sink
	numWorkers     int
	jobQueue       chan models.ClassifiedLead
	enqueueTimeout time.Duration
	wg             sync.WaitGroup
	ctx            context.Context
	cancel         context.CancelFunc
	logger         logger.Logger

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool

	written atomic.Int64
	failed  atomic.Int64
}

// NewAsyncSink creates and starts an async sink. A single worker keeps
// leads in emission order.
func NewAsyncSink(next Sink, queueSize, numWorkers int, enqueueTimeout time.Duration, log logger.Logger) *AsyncSink {
	if queueSize < 1 {
		queueSize = 1
	}
	if numWorkers < 1 {
		numWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	a := &AsyncSink{
		next:           next,
		numWorkers:     numWorkers,
		jobQueue:       make(chan models.ClassifiedLead, queueSize),
		enqueueTimeout: enqueueTimeout,
		ctx:            ctx,
		cancel:         cancel,
		logger:         logger.OrDefault(log).WithField("component", "async_sink"),
	}
	a.start()
	return a
}

func (a *AsyncSink) start() {
	a.logger.DebugWithFields("Starting sink workers", map[string]interface{}{
		"num_workers": a.numWorkers,
		"queue_size":  cap(a.jobQueue),
	})
	for i := 0; i < a.numWorkers; i++ {
		a.wg.Add(1)
		go a.worker(i)
	}
}

// Emit queues the lead. It waits at most the enqueue timeout for room in
// the queue and never waits on the backend itself.
func (a *AsyncSink) Emit(ctx context.Context, lead models.ClassifiedLead) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}

	var timeout <-chan time.Time
	if a.enqueueTimeout > 0 {
		timer := time.NewTimer(a.enqueueTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case a.jobQueue <- lead:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout:
		return ErrQueueFull
	}
}

func (a *AsyncSink) worker(id int) {
	defer a.wg.Done()

	for lead := range a.jobQueue {
		if err := a.next.Emit(a.ctx, lead); err != nil {
			a.failed.Add(1)
			a.logger.WithError(err).WarnWithFields("Sink worker failed to write lead", map[string]interface{}{
				"worker_id": id,
				"handle":    lead.Handle.String(),
			})
			continue
		}
		a.written.Add(1)
	}
}

// Pending returns the number of queued leads not yet picked up
func (a *AsyncSink) Pending() int {
	return len(a.jobQueue)
}

// Written returns the number of leads the backend accepted
func (a *AsyncSink) Written() int64 {
	return a.written.Load()
}

// Failed returns the number of leads the backend rejected
func (a *AsyncSink) Failed() int64 {
	return a.failed.Load()
}

// Close drains the queue, closes the wrapped sink and reports how many
// queued leads could not be written
func (a *AsyncSink) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.jobQueue)
		a.mu.Unlock()

		a.wg.Wait()
		a.cancel()

		err = a.next.Close()
		if n := a.failed.Load(); n > 0 && err == nil {
			err = fmt.Errorf("%d queued leads failed to write", n)
		}
		a.logger.InfoWithFields("Sink workers stopped", map[string]interface{}{
			"written": a.written.Load(),
			"failed":  a.failed.Load(),
		})
	})
	return err
}
