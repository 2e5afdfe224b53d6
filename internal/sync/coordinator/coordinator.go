package coordinator

//go:generate mockgen -destination=mocks/mock_runner.go -package=mocks -source=coordinator.go Runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/studykit/colsync/internal/credentials"
	"github.com/studykit/colsync/internal/status"
	"github.com/studykit/colsync/internal/sync"
)

const (
	// DefaultPollingInterval is how often the coordinator checks whether a sync is due
	DefaultPollingInterval = time.Minute
)

// ErrLoggedOut stops the coordinator when no valid session is left
var ErrLoggedOut = errors.New("automatic sync stopped: not logged in")

// Runner runs one sync job for the profile and waits for its outcome
type Runner interface {
	RunSync(ctx context.Context) (sync.Outcome, error)
}

// Coordinator runs automatic syncs in the background
type Coordinator interface {
	// Start begins the polling loop. It blocks until the context is cancelled,
	// Stop is called or the session is no longer valid.
	Start(ctx context.Context) error

	// Stop gracefully stops the loop, waiting for a running sync to finish
	Stop() error
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	runner      Runner
	persistence status.StatusPersistence
	checker     sync.AutomaticSyncChecker
	profile     string
	interval    time.Duration

	pollingInterval time.Duration

	// Lifecycle management
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithPollingInterval sets how often the sync interval is checked
func WithPollingInterval(d time.Duration) Option {
	return func(c *defaultCoordinator) {
		if d > 0 {
			c.pollingInterval = d
		}
	}
}

// WithChecker replaces the interval check
func WithChecker(checker sync.AutomaticSyncChecker) Option {
	return func(c *defaultCoordinator) {
		if checker != nil {
			c.checker = checker
		}
	}
}

// New creates a coordinator syncing profile whenever interval has passed since
// its last successful sync
func New(
	runner Runner,
	persistence status.StatusPersistence,
	profile string,
	interval time.Duration,
	opts ...Option,
) Coordinator {
	c := &defaultCoordinator{
		runner:          runner,
		persistence:     persistence,
		checker:         &sync.DefaultAutomaticSyncChecker{},
		profile:         profile,
		interval:        interval,
		pollingInterval: DefaultPollingInterval,
		done:            make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// calculatePollingInterval returns the polling interval with up to ±25% jitter applied
func (c *defaultCoordinator) calculatePollingInterval() time.Duration {
	jitter := c.pollingInterval / 4
	if jitter <= 0 {
		return c.pollingInterval
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for polling jitter
	offset := time.Duration(rand.Int64N(int64(2*jitter))) - jitter
	return c.pollingInterval + offset
}

// Start begins background sync coordination
func (c *defaultCoordinator) Start(ctx context.Context) error {
	slog.Info("Starting automatic sync", "profile", c.profile, "interval", c.interval)

	coordCtx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	defer func() {
		cancel()
		close(c.done)
		slog.Info("Automatic sync shutting down", "profile", c.profile)
	}()

	ticker := time.NewTicker(c.calculatePollingInterval())
	defer ticker.Stop()

	// Perform initial sync check
	if err := c.processNextSyncJob(coordCtx); err != nil {
		return err
	}

	for {
		select {
		case <-ticker.C:
			if err := c.processNextSyncJob(coordCtx); err != nil {
				return err
			}
			ticker.Reset(c.calculatePollingInterval())
		case <-coordCtx.Done():
			return nil
		}
	}
}

// Stop gracefully stops the coordinator
func (c *defaultCoordinator) Stop() error {
	if c.cancelFunc != nil {
		slog.Info("Stopping automatic sync", "profile", c.profile)
		c.cancelFunc()
		<-c.done
	}
	return nil
}

// shouldSync decides from the persisted status whether a sync is due
func (c *defaultCoordinator) shouldSync(ctx context.Context) (bool, string) {
	syncStatus, err := c.persistence.LoadStatus(ctx, c.profile)
	if err != nil {
		slog.Warn("Failed to load sync status", "profile", c.profile, "error", err)
	}
	if syncStatus == nil {
		syncStatus = &status.SyncStatus{}
	}

	if syncStatus.FullSyncRequired {
		return false, "full sync required"
	}

	due, next, err := c.checker.IsIntervalSyncNeeded(c.interval, syncStatus)
	if err != nil {
		return false, err.Error()
	}
	if !due {
		return false, fmt.Sprintf("next sync at %s", next.Format(time.RFC3339))
	}
	return true, "interval elapsed"
}

// processNextSyncJob runs a sync when one is due. Only a lost session is returned as an error.
func (c *defaultCoordinator) processNextSyncJob(ctx context.Context) error {
	due, reason := c.shouldSync(ctx)
	if !due {
		slog.Debug("Sync not needed", "profile", c.profile, "reason", reason)
		return nil
	}

	slog.Info("Starting automatic sync operation", "profile", c.profile, "reason", reason)
	startTime := time.Now()

	outcome, err := c.runner.RunSync(ctx)
	if errors.Is(err, credentials.ErrNotLoggedIn) {
		return ErrLoggedOut
	}
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("Automatic sync failed to run", "profile", c.profile, "error", err)
		}
		return nil
	}

	switch {
	case outcome.Succeeded():
		slog.Info("Automatic sync completed",
			"profile", c.profile,
			"outcome", outcome.Kind.String(),
			"duration", time.Since(startTime))
	case outcome.Kind == sync.OutcomeServerRejected && outcome.Reason == sync.ReasonBadAuth:
		return ErrLoggedOut
	case outcome.Kind == sync.OutcomeConflictRequiresFullSync, outcome.Kind == sync.OutcomeSchemaInvalidated:
		slog.Warn("Automatic sync paused until a full sync runs",
			"profile", c.profile,
			"outcome", outcome.Kind.String())
	default:
		slog.Warn("Automatic sync failed",
			"profile", c.profile,
			"outcome", outcome.String())
	}
	return nil
}
