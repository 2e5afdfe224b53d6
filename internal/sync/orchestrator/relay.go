package orchestrator

import (
	"log/slog"
	"runtime/debug"
	stdsync "sync"
)

// relay delivers listener callbacks in order on its own goroutine, so the
// pipeline never runs listener code
type relay struct {
	listener Listener

	mu     stdsync.Mutex
	queue  []func(Listener)
	closed bool

	wake     chan struct{}
	finished chan struct{}
}

func newRelay(listener Listener) *relay {
	if listener == nil {
		listener = ListenerFuncs{}
	}
	r := &relay{
		listener: listener,
		wake:     make(chan struct{}, 1),
		finished: make(chan struct{}),
	}
	go r.loop()
	return r
}

// post enqueues a callback; posts after close are dropped
func (r *relay) post(event func(Listener)) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.queue = append(r.queue, event)
	r.mu.Unlock()
	r.signal()
}

// close posts the terminal callback and stops accepting events
func (r *relay) close(terminal func(Listener)) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.queue = append(r.queue, terminal)
	r.closed = true
	r.mu.Unlock()
	r.signal()
}

func (r *relay) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *relay) loop() {
	defer close(r.finished)
	for {
		r.mu.Lock()
		batch := r.queue
		r.queue = nil
		closed := r.closed
		r.mu.Unlock()

		for _, event := range batch {
			r.deliver(event)
		}
		if closed {
			r.mu.Lock()
			empty := len(r.queue) == 0
			r.mu.Unlock()
			if empty {
				return
			}
			continue
		}
		if len(batch) == 0 {
			<-r.wake
		}
	}
}

func (r *relay) deliver(event func(Listener)) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Sync listener panicked", "panic", p, "stack", string(debug.Stack()))
		}
	}()
	event(r.listener)
}

// wait blocks until the terminal callback has returned
func (r *relay) wait() {
	<-r.finished
}
