package orchestrator

import (
	"log/slog"
	stdsync "sync"
)

// lease is the stay-awake guarantee shared by all jobs of one orchestrator.
// The job that acquired it last owns it, and only the owner may release it.
type lease struct {
	mu    stdsync.Mutex
	lock  WakeLock
	owner *JobHandle
	held  bool
}

func newLease(lock WakeLock) *lease {
	return &lease{lock: lock}
}

// acquire transfers ownership to job, taking the wake lock if nobody holds it
func (l *lease) acquire(job *JobHandle) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.owner != nil && l.owner != job {
		slog.Debug("Stay-awake lease transferred", "from", l.owner.ID(), "to", job.ID())
	}
	l.owner = job
	if l.held {
		return
	}
	if err := l.lock.Acquire(); err != nil {
		slog.Warn("Failed to acquire wake lock", "job_id", job.ID(), "error", err)
		return
	}
	l.held = true
}

// release drops the wake lock if job still owns the lease
func (l *lease) release(job *JobHandle) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.owner != job {
		return false
	}
	l.owner = nil
	if !l.held {
		return true
	}
	if err := l.lock.Release(); err != nil {
		slog.Warn("Failed to release wake lock", "job_id", job.ID(), "error", err)
	}
	l.held = false
	return true
}

// holder returns the current owner, or nil
func (l *lease) holder() *JobHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner
}
