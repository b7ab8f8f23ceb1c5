package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrQueueFull is returned by Submit when MaxPending jobs are already waiting.
	ErrQueueFull = errors.New("audit queue is full")
	// ErrShuttingDown is returned by Submit after Shutdown, and settles jobs
	// that were still pending when the scheduler stopped.
	ErrShuttingDown = errors.New("scheduler is shutting down")

	errQueueClosed = errors.New("queue closed")
)

// queue is a bounded in-memory FIFO with context-aware dequeue.
type queue struct {
	ch      chan *Job
	closeMu sync.RWMutex
	closed  bool
}

func newQueue(capacity int) *queue {
	return &queue{ch: make(chan *Job, capacity)}
}

// tryEnqueue appends job without blocking.
func (q *queue) tryEnqueue(job *Job) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return ErrShuttingDown
	}
	select {
	case q.ch <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// dequeue pops the oldest job, blocking until one arrives or ctx ends.
func (q *queue) dequeue(ctx context.Context) (*Job, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case job, ok := <-q.ch:
		if !ok {
			return nil, errQueueClosed
		}
		return job, nil
	}
}

func (q *queue) len() int {
	return len(q.ch)
}

// close rejects further enqueues. Buffered jobs stay available to drain.
func (q *queue) close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}

// drain returns every job still buffered. Only valid after close.
func (q *queue) drain() []*Job {
	var jobs []*Job
	for job := range q.ch {
		jobs = append(jobs, job)
	}
	return jobs
}
