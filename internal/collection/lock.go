package collection

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gofrs/flock"
)

// fileLock is an advisory lock on a file next to the collection. It excludes
// other processes and other handles within this process.
type fileLock struct {
	flock   *flock.Flock
	timeout time.Duration
}

func newFileLock(path string, timeout time.Duration) *fileLock {
	return &fileLock{
		flock:   flock.New(path),
		timeout: timeout,
	}
}

// Lock retries with exponential backoff until the lock is taken or the timeout elapses
func (l *fileLock) Lock(ctx context.Context) error {
	if l.flock.Locked() {
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (bool, error) {
		ok, err := l.flock.TryLock()
		if err != nil {
			return false, backoff.Permanent(err)
		}
		if !ok {
			return false, ErrLocked
		}
		return true, nil
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(l.timeout),
	)
	if err != nil {
		return fmt.Errorf("failed to lock collection: %w", err)
	}
	return nil
}

// Unlock releases the lock; releasing an unheld lock is a no-op
func (l *fileLock) Unlock() error {
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock collection: %w", err)
	}
	return nil
}

// Locked reports whether this handle holds the lock
func (l *fileLock) Locked() bool {
	return l.flock.Locked()
}
