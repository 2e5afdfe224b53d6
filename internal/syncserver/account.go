package syncserver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	stdsync "sync"

	"github.com/studykit/colsync/internal/collection"
)

// account is the server-side state of one user. Requests for the same
// account are serialized on mu.
type account struct {
	name  string
	mu    stdsync.Mutex
	col   *collection.SQLiteCollection
	sess  *session
	media *mediaLibrary
}

// endSession rolls back any sync left open, for example by a client that went away
func (a *account) endSession(ctx context.Context) {
	if a.sess == nil {
		return
	}
	a.sess.rollback(context.WithoutCancel(ctx))
	a.sess = nil
}

// activeSession returns the open session or errNoSession
func (a *account) activeSession() (*session, error) {
	if a.sess == nil || a.sess.closed() {
		a.sess = nil
		return nil, errNoSession
	}
	return a.sess, nil
}

// replace installs a verified collection file in place of the current one
func (a *account) replace(ctx context.Context, data []byte) error {
	path := a.col.Path()
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create upload file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write upload file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close upload file: %w", err)
	}
	if err := collection.Verify(ctx, tmpPath); err != nil {
		return &rejection{msg: "uploaded collection failed its integrity check", err: err}
	}

	if err := a.col.Close(ctx, false); err != nil {
		return err
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove stale %s file: %w", suffix, err)
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to install uploaded collection: %w", err)
	}
	return a.col.Reopen(ctx)
}

// snapshot returns the collection file with every committed change in it
func (a *account) snapshot(ctx context.Context) ([]byte, error) {
	if err := a.col.Save(ctx); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(a.col.Path())
	if err != nil {
		return nil, fmt.Errorf("failed to read collection: %w", err)
	}
	return data, nil
}

func (a *account) close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.endSession(ctx)
	return a.col.Close(ctx, true)
}

// rejection is a refusal reported to the client as a 200 status text
type rejection struct {
	msg string
	err error
}

func (r *rejection) Error() string {
	return fmt.Sprintf("%s: %v", r.msg, r.err)
}

func (r *rejection) Unwrap() error {
	return r.err
}
