package orchestrator

import (
	"context"
	stdsync "sync"

	"github.com/google/uuid"

	"github.com/studykit/colsync/internal/sync"
)

// JobHandle tracks one accepted request from submission to its terminal callback
type JobHandle struct {
	id            string
	kind          sync.RequestKind
	predecessorID string

	mu          stdsync.Mutex
	cancelled   bool
	cancellable bool
	finished    bool
	outcome     sync.Outcome

	done chan struct{}
}

func newJobHandle(kind sync.RequestKind, predecessor *JobHandle) *JobHandle {
	h := &JobHandle{
		id:          uuid.NewString(),
		kind:        kind,
		cancellable: true,
		done:        make(chan struct{}),
	}
	if predecessor != nil {
		h.predecessorID = predecessor.id
	}
	return h
}

// ID returns the unique job id
func (h *JobHandle) ID() string {
	return h.id
}

// Kind returns the request kind
func (h *JobHandle) Kind() sync.RequestKind {
	return h.kind
}

// PredecessorID returns the id of the job that was current when this one was submitted
func (h *JobHandle) PredecessorID() string {
	return h.predecessorID
}

// Done is closed after the terminal callback has returned
func (h *JobHandle) Done() <-chan struct{} {
	return h.done
}

// Outcome returns the terminal outcome once the job is done
func (h *JobHandle) Outcome() (sync.Outcome, bool) {
	select {
	case <-h.done:
	default:
		return sync.Outcome{}, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outcome, true
}

// Wait blocks until the job is done or ctx ends
func (h *JobHandle) Wait(ctx context.Context) (sync.Outcome, error) {
	select {
	case <-h.done:
		out, _ := h.Outcome()
		return out, nil
	case <-ctx.Done():
		return sync.Outcome{}, ctx.Err()
	}
}

// Cancel requests cancellation. A request made before the job body starts stays
// pending until the first checkpoint. It is ignored, and returns false, during a
// full sync or after the job finished.
func (h *JobHandle) Cancel() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.cancellable || h.finished {
		return false
	}
	h.cancelled = true
	return true
}

// IsCancellable reports whether Cancel would currently be honored
func (h *JobHandle) IsCancellable() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancellable && !h.finished
}

// cancelRequested is the checkpoint drivers poll
func (h *JobHandle) cancelRequested() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled && h.cancellable
}

// setCancellable toggles the cancellable window. Closing it, which happens only
// when a full sync begins, drops any pending request.
func (h *JobHandle) setCancellable(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancellable = v
	if !v {
		h.cancelled = false
	}
}

// finish records the outcome and closes the cancellable window; done is closed separately
func (h *JobHandle) finish(outcome sync.Outcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outcome = outcome
	h.finished = true
	h.cancellable = false
}
