package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/studykit/colsync/internal/collection"
	"github.com/studykit/colsync/internal/config"
	"github.com/studykit/colsync/internal/credentials"
	"github.com/studykit/colsync/internal/status"
	"github.com/studykit/colsync/internal/sync"
	"github.com/studykit/colsync/internal/sync/orchestrator"
	"github.com/studykit/colsync/internal/tasks"
	"github.com/studykit/colsync/internal/telemetry"
)

// ErrSyncNotDue is returned by an automatic sync requested before the interval elapsed
var ErrSyncNotDue = errors.New("automatic sync is not due yet")

// SyncOptions are the per-invocation choices of a sync
type SyncOptions struct {
	Media        bool
	Resolution   sync.ConflictResolution
	AllowOffline bool

	// Automatic skips the sync with ErrSyncNotDue when the last successful
	// sync is more recent than the configured interval
	Automatic bool
}

// ClientApp runs login and sync jobs for one profile
type ClientApp struct {
	config      *config.Config
	orch        *orchestrator.Orchestrator
	credentials credentials.Store
	persistence status.StatusPersistence
	checker     sync.AutomaticSyncChecker
	tasks       *tasks.Queue

	telemetry     *telemetry.Telemetry
	ownsTelemetry bool
}

// Login authenticates and stores the session key on success
func (a *ClientApp) Login(
	ctx context.Context, username, password string, listener orchestrator.Listener,
) (sync.Outcome, error) {
	req := sync.Request{
		Kind:        sync.KindLogin,
		Credentials: sync.Credentials{Username: username, Password: password},
		HostRoute:   sync.HostRoute{HostNum: a.config.Server.HostNum},
	}
	job, err := a.orch.Login(ctx, req, listener)
	if err != nil {
		return sync.Outcome{}, err
	}
	out, err := job.Wait(ctx)
	if err != nil {
		return sync.Outcome{}, err
	}
	if out.Kind != sync.OutcomeSuccess {
		return out, nil
	}

	sess := credentials.Session{Username: out.Username, Key: out.SessionKey, HostNum: a.config.Server.HostNum}
	if err := a.credentials.Save(sess); err != nil {
		return out, err
	}
	slog.InfoContext(ctx, "Logged in", "profile", a.config.GetProfile(), "username", out.Username)
	return out, nil
}

// Logout forgets the stored session
func (a *ClientApp) Logout() error {
	return a.credentials.Clear()
}

// Session returns the stored session, or credentials.ErrNotLoggedIn
func (a *ClientApp) Session() (credentials.Session, error) {
	return a.credentials.Load()
}

// Sync runs one sync job with the stored session and waits for its outcome
func (a *ClientApp) Sync(ctx context.Context, opts SyncOptions, listener orchestrator.Listener) (sync.Outcome, error) {
	sess, err := a.credentials.Load()
	if err != nil {
		return sync.Outcome{}, err
	}

	if opts.Automatic {
		if err := a.checkDue(ctx); err != nil {
			return sync.Outcome{}, err
		}
	}

	req := sync.Request{
		Kind:               sync.KindSync,
		SessionKey:         sess.Key,
		SyncMedia:          opts.Media,
		ConflictResolution: opts.Resolution,
		FallbackResolution: a.config.FallbackResolution(),
		HostRoute:          sync.HostRoute{HostNum: sess.HostNum},
		AllowOffline:       opts.AllowOffline || a.config.Sync.AllowOffline,
	}
	job, err := a.orch.Sync(ctx, req, listener)
	if err != nil {
		return sync.Outcome{}, err
	}
	out, err := job.Wait(ctx)
	if err != nil {
		return sync.Outcome{}, err
	}

	if out.Kind == sync.OutcomeServerRejected && out.Reason == sync.ReasonBadAuth {
		slog.WarnContext(ctx, "Session key rejected, logging out", "profile", a.config.GetProfile())
		if err := a.credentials.Clear(); err != nil {
			slog.WarnContext(ctx, "Failed to clear rejected session", "error", err)
		}
	}
	return out, nil
}

// RunSync runs the configured automatic sync: incremental, media per sync.media,
// falling back to sync.onConflict. The due check is left to the caller.
func (a *ClientApp) RunSync(ctx context.Context) (sync.Outcome, error) {
	return a.Sync(ctx, SyncOptions{Media: a.config.Sync.Media}, nil)
}

func (a *ClientApp) checkDue(ctx context.Context) error {
	st, err := a.persistence.LoadStatus(ctx, a.config.GetProfile())
	if err != nil {
		return err
	}
	due, next, err := a.checker.IsIntervalSyncNeeded(a.config.AutoSyncInterval(), st)
	if err != nil {
		return err
	}
	if !due {
		return fmt.Errorf("%w: next sync at %s", ErrSyncNotDue, next.Format(time.RFC3339))
	}
	return nil
}

// Cancel asks the running job to stop
func (a *ClientApp) Cancel() bool {
	return a.orch.Cancel()
}

// Status returns the persisted status of the last job
func (a *ClientApp) Status(ctx context.Context) (*status.SyncStatus, error) {
	return a.persistence.LoadStatus(ctx, a.config.GetProfile())
}

// Check runs an integrity check of the local collection as a background task.
// Sync jobs started meanwhile wait for it before opening the collection.
func (a *ClientApp) Check(ctx context.Context) error {
	path := a.config.CollectionPath()
	result := make(chan error, 1)
	err := a.tasks.Submit("integrity-check", func(taskCtx context.Context) error {
		err := collection.Verify(taskCtx, path)
		result <- err
		return err
	})
	if err != nil {
		return err
	}

	select {
	case err := <-result:
		if err != nil {
			return fmt.Errorf("collection %s failed its integrity check: %w", path, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close waits for running jobs and stops background work
func (a *ClientApp) Close(ctx context.Context) error {
	var errs []error
	if err := a.orch.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	a.tasks.Close()
	if a.ownsTelemetry {
		if err := a.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
