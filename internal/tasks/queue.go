// Package tasks runs background collection work one task at a time. Sync jobs
// wait on the queue so that they never race a task that is still writing to
// the collection.
package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrQueueClosed is returned by Submit after Close
var ErrQueueClosed = errors.New("task queue is closed")

// Task is one unit of background work
type Task func(ctx context.Context) error

// Queue executes submitted tasks serially on a single goroutine
type Queue struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	cond    *sync.Cond
	pending int
	closed  bool

	work chan namedTask
	done chan struct{}

	completed atomic.Int64
}

type namedTask struct {
	name string
	fn   Task
}

// NewQueue starts a queue. Close must be called to stop its goroutine.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 16
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		ctx:    ctx,
		cancel: cancel,
		work:   make(chan namedTask, size),
		done:   make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.loop()
	return q
}

// Submit enqueues a task; it blocks while the queue is full
func (q *Queue) Submit(name string, fn Task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.pending++
	q.mu.Unlock()

	select {
	case q.work <- namedTask{name: name, fn: fn}:
		return nil
	case <-q.ctx.Done():
		q.finishOne()
		return ErrQueueClosed
	}
}

func (q *Queue) loop() {
	defer close(q.done)
	for {
		select {
		case t := <-q.work:
			if q.ctx.Err() != nil {
				q.finishOne()
				continue
			}
			q.run(t)
		case <-q.ctx.Done():
			return
		}
	}
}

func (q *Queue) run(t namedTask) {
	defer q.finishOne()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Background task panicked", "task", t.name, "panic", r)
		}
	}()

	start := time.Now()
	if err := t.fn(q.ctx); err != nil {
		slog.Warn("Background task failed", "task", t.name, "error", err)
		return
	}
	slog.Debug("Background task finished", "task", t.name, "duration", time.Since(start))
}

func (q *Queue) finishOne() {
	q.completed.Add(1)
	q.mu.Lock()
	q.pending--
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Pending returns how many tasks are queued or running
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// WaitToFinish blocks until every submitted task has finished, the timeout
// elapses or ctx is done. It reports whether the queue drained.
func (q *Queue) WaitToFinish(ctx context.Context, timeout time.Duration) bool {
	drained := make(chan struct{})
	stop := make(chan struct{})

	go func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		for q.pending > 0 {
			select {
			case <-stop:
				return
			default:
			}
			q.cond.Wait()
		}
		close(drained)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-drained:
		return true
	case <-timer.C:
	case <-ctx.Done():
	}
	close(stop)
	q.mu.Lock()
	q.cond.Broadcast()
	q.mu.Unlock()
	return false
}

// Close stops accepting tasks and waits for the running task to return.
// Tasks still queued are dropped.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	<-q.done

	for {
		select {
		case <-q.work:
			q.finishOne()
		default:
			return
		}
	}
}
