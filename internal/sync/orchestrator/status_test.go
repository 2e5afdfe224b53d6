package orchestrator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/studykit/colsync/internal/status"
	statusmocks "github.com/studykit/colsync/internal/status/mocks"
	"github.com/studykit/colsync/internal/sync"
	"github.com/studykit/colsync/internal/sync/orchestrator"
)

func TestFileStatusRecorder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		outcome          sync.Outcome
		wantPhase        status.SyncPhase
		wantFullRequired bool
		wantAttempts     int
		wantSynced       bool
	}{
		{
			name:       "success resets attempts",
			outcome:    sync.Success(true),
			wantPhase:  status.SyncPhaseComplete,
			wantSynced: true,
		},
		{
			name:       "no changes counts as synced",
			outcome:    sync.NoChanges(),
			wantPhase:  status.SyncPhaseComplete,
			wantSynced: true,
		},
		{
			name:             "conflict requires full sync",
			outcome:          sync.Outcome{Kind: sync.OutcomeConflictRequiresFullSync},
			wantPhase:        status.SyncPhaseFailed,
			wantFullRequired: true,
			wantAttempts:     2,
		},
		{
			name:         "network error keeps counting",
			outcome:      sync.Outcome{Kind: sync.OutcomeNetworkError},
			wantPhase:    status.SyncPhaseFailed,
			wantAttempts: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			persistence := status.NewFileStatusPersistence(t.TempDir())
			rec := orchestrator.NewFileStatusRecorder(persistence, "default")

			// A failed attempt before this one
			require.NoError(t, rec.RecordStart(ctx))
			require.NoError(t, rec.RecordOutcome(ctx, sync.Outcome{Kind: sync.OutcomeNetworkError}))

			require.NoError(t, rec.RecordStart(ctx))
			st, err := persistence.LoadStatus(ctx, "default")
			require.NoError(t, err)
			assert.Equal(t, status.SyncPhaseSyncing, st.Phase)
			require.NotNil(t, st.LastAttempt)

			require.NoError(t, rec.RecordOutcome(ctx, tt.outcome))
			st, err = persistence.LoadStatus(ctx, "default")
			require.NoError(t, err)

			assert.Equal(t, tt.wantPhase, st.Phase)
			assert.Equal(t, tt.wantFullRequired, st.FullSyncRequired)
			assert.Equal(t, tt.wantAttempts, st.AttemptCount)
			assert.Equal(t, tt.wantSynced, st.LastSyncTime != nil)
			assert.Equal(t, tt.outcome.Kind.String(), st.LastOutcome)
			assert.Equal(t, tt.outcome.UserMessage(), st.Message)
		})
	}
}

func TestFileStatusRecorder_Media(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	persistence := status.NewFileStatusPersistence(t.TempDir())
	rec := orchestrator.NewFileStatusRecorder(persistence, "default")

	out := sync.Success(false)
	out.Media = &sync.MediaSummary{Uploaded: 4, Downloaded: 1, Outcome: sync.MediaSanityCheckFailed}
	out.MediaWarning = "media files were out of sync"
	require.NoError(t, rec.RecordOutcome(ctx, out))

	st, err := persistence.LoadStatus(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, 4, st.MediaUploaded)
	assert.Equal(t, 1, st.MediaDownloaded)
	assert.Equal(t, "media files were out of sync", st.MediaWarning)
}

func TestFileStatusRecorder_PersistenceErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ctrl := gomock.NewController(t)
	persistence := statusmocks.NewMockStatusPersistence(ctrl)
	rec := orchestrator.NewFileStatusRecorder(persistence, "default")

	persistence.EXPECT().
		UpdateStatus(gomock.Any(), "default", gomock.Any()).
		Return(nil, errors.New("permission denied"))
	assert.ErrorContains(t, rec.RecordStart(ctx), "permission denied")

	persistence.EXPECT().
		UpdateStatus(gomock.Any(), "default", gomock.Any()).
		Return(nil, errors.New("disk full"))
	assert.ErrorContains(t, rec.RecordOutcome(ctx, sync.NoChanges()), "disk full")
}
