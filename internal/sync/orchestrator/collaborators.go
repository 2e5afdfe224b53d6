package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	stdsync "sync"
	"time"

	"github.com/studykit/colsync/internal/sync"
)

//go:generate mockgen -destination=mocks/mock_collaborators.go -package=mocks -source=collaborators.go WakeLock,Reporter,NetworkMonitor,TaskWaiter,StatusRecorder,Listener

// WakeLock keeps the machine awake while held
type WakeLock interface {
	Acquire() error
	Release() error
}

// Reporter forwards unexpected failures to crash reporting
type Reporter interface {
	Report(ctx context.Context, err error, origin string)
}

// NetworkMonitor answers the connectivity pre-check. transport.DialMonitor and
// transport.AlwaysOnline implement it.
type NetworkMonitor interface {
	Online(ctx context.Context) bool
}

// TaskWaiter is the background task layer a sync job waits on before touching the collection
type TaskWaiter interface {
	// WaitToFinish reports whether all pending tasks finished within timeout
	WaitToFinish(ctx context.Context, timeout time.Duration) bool
}

// StatusRecorder persists the progress and result of sync jobs
type StatusRecorder interface {
	RecordStart(ctx context.Context) error
	RecordOutcome(ctx context.Context, outcome sync.Outcome) error
}

// Listener receives the callbacks of one job, in order, on a goroutine owned by the job.
// Exactly one of OnFinish or OnDisconnected is called.
type Listener interface {
	OnStart()
	OnProgress(p sync.Progress)
	OnFinish(outcome sync.Outcome)
	OnDisconnected()
}

// ListenerFuncs adapts optional functions to Listener
type ListenerFuncs struct {
	Start        func()
	Progress     func(sync.Progress)
	Finish       func(sync.Outcome)
	Disconnected func()
}

// OnStart implements Listener
func (l ListenerFuncs) OnStart() {
	if l.Start != nil {
		l.Start()
	}
}

// OnProgress implements Listener
func (l ListenerFuncs) OnProgress(p sync.Progress) {
	if l.Progress != nil {
		l.Progress(p)
	}
}

// OnFinish implements Listener
func (l ListenerFuncs) OnFinish(outcome sync.Outcome) {
	if l.Finish != nil {
		l.Finish(outcome)
	}
}

// OnDisconnected implements Listener
func (l ListenerFuncs) OnDisconnected() {
	if l.Disconnected != nil {
		l.Disconnected()
	}
}

// NoopWakeLock does nothing
type NoopWakeLock struct{}

// Acquire implements WakeLock
func (NoopWakeLock) Acquire() error { return nil }

// Release implements WakeLock
func (NoopWakeLock) Release() error { return nil }

// InhibitWakeLock blocks system sleep by keeping a systemd-inhibit child running
type InhibitWakeLock struct {
	// Command defaults to "systemd-inhibit"
	Command string
	// Args replace the default inhibitor arguments when set
	Args []string

	mu  stdsync.Mutex
	cmd *exec.Cmd
}

// ErrWakeLockHeld is returned when Acquire is called twice
var ErrWakeLockHeld = errors.New("wake lock already held")

// Acquire starts the inhibitor process
func (w *InhibitWakeLock) Acquire() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cmd != nil {
		return ErrWakeLockHeld
	}

	name := w.Command
	if name == "" {
		name = "systemd-inhibit"
	}
	args := w.Args
	if len(args) == 0 {
		args = []string{"--what=sleep:idle", "--who=colsync", "--why=Synchronizing collection", "--mode=block",
			"sleep", "infinity"}
	}

	cmd := exec.Command(name, args...) // #nosec G204 -- command is operator configuration
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}
	w.cmd = cmd
	return nil
}

// Release stops the inhibitor process; releasing an unheld lock is a no-op
func (w *InhibitWakeLock) Release() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cmd == nil {
		return nil
	}
	cmd := w.cmd
	w.cmd = nil
	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("failed to stop inhibitor: %w", err)
	}
	_ = cmd.Wait()
	return nil
}

// Held reports whether the inhibitor is running
func (w *InhibitWakeLock) Held() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cmd != nil
}

// LogReporter writes reports to the structured log
type LogReporter struct{}

// Report implements Reporter
func (LogReporter) Report(ctx context.Context, err error, origin string) {
	slog.ErrorContext(ctx, "Unexpected sync failure", "origin", origin, "error", err)
}

// NoTasks is a TaskWaiter for processes without background tasks
type NoTasks struct{}

// WaitToFinish implements TaskWaiter
func (NoTasks) WaitToFinish(context.Context, time.Duration) bool { return true }

// noStatus discards status updates
type noStatus struct{}

func (noStatus) RecordStart(context.Context) error                 { return nil }
func (noStatus) RecordOutcome(context.Context, sync.Outcome) error { return nil }
