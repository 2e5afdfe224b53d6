package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/studykit/colsync/internal/collection"
	"github.com/studykit/colsync/internal/status"
)

// AutomaticSyncChecker decides whether an automatic sync is due
type AutomaticSyncChecker interface {
	IsIntervalSyncNeeded(interval time.Duration, syncStatus *status.SyncStatus) (bool, time.Time, error)
}

// LocalChangeDetector reports whether the local collection has unsynced changes
type LocalChangeDetector interface {
	HasLocalChanges(ctx context.Context, store collection.SyncStore) (bool, error)
}

// DefaultLocalChangeDetector implements LocalChangeDetector
type DefaultLocalChangeDetector struct{}

// HasLocalChanges compares the collection modification time with the last sync time
func (*DefaultLocalChangeDetector) HasLocalChanges(ctx context.Context, store collection.SyncStore) (bool, error) {
	meta, err := store.Meta(ctx)
	if err != nil {
		return true, fmt.Errorf("failed to read collection meta: %w", err)
	}
	return meta.Mod > meta.LastSync, nil
}

// DefaultAutomaticSyncChecker implements AutomaticSyncChecker
type DefaultAutomaticSyncChecker struct {
	// Now overrides the clock; nil means time.Now
	Now func() time.Time
}

// IsIntervalSyncNeeded checks if sync is needed based on time interval
// Returns: (syncNeeded, nextSyncTime, error)
// nextSyncTime is a future time when the next sync should occur, or zero time if no interval is configured
func (c *DefaultAutomaticSyncChecker) IsIntervalSyncNeeded(
	interval time.Duration, syncStatus *status.SyncStatus,
) (bool, time.Time, error) {
	if interval == 0 {
		return false, time.Time{}, nil
	}
	if interval < 0 {
		return false, time.Time{}, fmt.Errorf("sync interval must not be negative: %s", interval)
	}

	now := time.Now()
	if c.Now != nil {
		now = c.Now()
	}

	var lastSyncTime *time.Time
	if syncStatus != nil {
		lastSyncTime = syncStatus.LastSyncTime
	}

	if lastSyncTime == nil {
		return true, now.Add(interval), nil
	}

	nextSyncTime := lastSyncTime.Add(interval)

	if !now.Before(nextSyncTime) {
		return true, now.Add(interval), nil
	}

	return false, nextSyncTime, nil
}
