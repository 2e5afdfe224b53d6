package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/studykit/colsync/internal/status"
	"github.com/studykit/colsync/internal/sync"
)

// FileStatusRecorder persists the status of sync jobs for one profile. Updates
// go through StatusPersistence.UpdateStatus, so several processes may share it.
type FileStatusRecorder struct {
	persistence status.StatusPersistence
	profile     string
	now         func() time.Time
}

// NewFileStatusRecorder creates a recorder writing through persistence
func NewFileStatusRecorder(persistence status.StatusPersistence, profile string) *FileStatusRecorder {
	return &FileStatusRecorder{
		persistence: persistence,
		profile:     profile,
		now:         time.Now,
	}
}

// RecordStart marks the profile as syncing and counts the attempt
func (r *FileStatusRecorder) RecordStart(ctx context.Context) error {
	return r.update(ctx, func(s *status.SyncStatus) {
		now := r.now()
		s.Phase = status.SyncPhaseSyncing
		s.LastAttempt = &now
		s.AttemptCount++
	})
}

// RecordOutcome stores the terminal outcome of a job
func (r *FileStatusRecorder) RecordOutcome(ctx context.Context, outcome sync.Outcome) error {
	return r.update(ctx, func(s *status.SyncStatus) {
		s.LastOutcome = outcome.Kind.String()
		s.Message = outcome.UserMessage()
		s.MediaWarning = outcome.MediaWarning
		s.MediaUploaded, s.MediaDownloaded = 0, 0
		if outcome.Media != nil {
			s.MediaUploaded = outcome.Media.Uploaded
			s.MediaDownloaded = outcome.Media.Downloaded
		}

		switch outcome.Kind {
		case sync.OutcomeSuccess, sync.OutcomeNoChanges:
			now := r.now()
			s.Phase = status.SyncPhaseComplete
			s.LastSyncTime = &now
			s.AttemptCount = 0
			s.FullSyncRequired = false
		case sync.OutcomeConflictRequiresFullSync, sync.OutcomeSchemaInvalidated:
			s.Phase = status.SyncPhaseFailed
			s.FullSyncRequired = true
		default:
			s.Phase = status.SyncPhaseFailed
		}
	})
}

func (r *FileStatusRecorder) update(ctx context.Context, fn func(s *status.SyncStatus)) error {
	if _, err := r.persistence.UpdateStatus(ctx, r.profile, fn); err != nil {
		return fmt.Errorf("failed to record status of profile %s: %w", r.profile, err)
	}
	return nil
}
