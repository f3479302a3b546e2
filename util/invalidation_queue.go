package util

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	cordon_errors "github.com/cordon-dev/cordon/errors"
	logger "github.com/cordon-dev/cordon/logging"
)

// InvalidationKind names the invalidation an enqueued job performs.
type InvalidationKind int

const (
	InvalidateByAccount InvalidationKind = iota
	InvalidateByRole
	InvalidateByScope
)

// InvalidationJob is one unit of token-invalidation work.
type InvalidationJob struct {
	Kind  InvalidationKind
	ID    string
	IsApp bool
}

// InvalidationHandler performs one job. Handlers must be idempotent: jobs
// are delivered at least once.
type InvalidationHandler func(context.Context, InvalidationJob) error

// InvalidationQueue is a bounded work queue drained by a single worker.
// Every relation mutation that affects an account's authorization surface
// enqueues here instead of spawning ad-hoc goroutines, so backlog, retries
// and shutdown draining are observable in one place.
type InvalidationQueue struct {
	jobs    chan InvalidationJob
	handler InvalidationHandler
	retries int

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewInvalidationQueue(size, retries int, handler InvalidationHandler) *InvalidationQueue {
	if size <= 0 {
		size = 1024
	}
	if retries < 0 {
		retries = 0
	}
	return &InvalidationQueue{
		jobs:    make(chan InvalidationJob, size),
		handler: handler,
		retries: retries,
		done:    make(chan struct{}),
	}
}

// Start launches the worker loop. The loop keeps draining after ctx is
// cancelled until the queue is closed, so Stop can flush pending work.
func (q *InvalidationQueue) Start(ctx context.Context) {
	go q.process(ctx)
}

func (q *InvalidationQueue) process(ctx context.Context) {
	defer close(q.done)
	for job := range q.jobs {
		q.run(ctx, job)
	}
}

func (q *InvalidationQueue) run(ctx context.Context, job InvalidationJob) {
	var err error
	for attempt := 0; attempt <= q.retries; attempt++ {
		if err = q.handler(ctx, job); err == nil {
			return
		}
		logger.Warn("Invalidation attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Int("kind", int(job.Kind)),
			zap.String("id", job.ID),
			zap.Error(err))
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}
	logger.Error("Invalidation job dropped after retries",
		zap.Int("kind", int(job.Kind)),
		zap.String("id", job.ID),
		zap.Error(err))
}

// Enqueue submits a job. It blocks when the queue is full: backpressure on
// the mutating request is preferable to losing an invalidation. The read
// lock is held across the send so Stop cannot close the channel under a
// producer; the worker keeps draining until the close, so a blocked send
// always completes.
func (q *InvalidationQueue) Enqueue(job InvalidationJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return cordon_errors.ErrQueueClosed
	}
	q.jobs <- job
	return nil
}

// Pending reports the current backlog.
func (q *InvalidationQueue) Pending() int {
	return len(q.jobs)
}

// Stop closes the queue and waits for the worker to drain it, up to the
// given timeout.
func (q *InvalidationQueue) Stop(timeout time.Duration) {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
	case <-time.After(timeout):
		logger.Warn("Invalidation queue drain timed out",
			zap.Int("pending", len(q.jobs)))
	}
}
