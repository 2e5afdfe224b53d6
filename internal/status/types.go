package status

import "time"

// SyncPhase represents the current phase of a synchronization job
type SyncPhase string

const (
	// SyncPhaseSyncing means a job is currently running
	SyncPhaseSyncing SyncPhase = "Syncing"

	// SyncPhaseComplete means the last job succeeded
	SyncPhaseComplete SyncPhase = "Complete"

	// SyncPhaseFailed means the last job failed
	SyncPhaseFailed SyncPhase = "Failed"
)

// SyncStatus is the persisted record of the last sync job for one profile
type SyncStatus struct {
	// Phase represents the current synchronization phase
	Phase SyncPhase `json:"phase"`

	// Message is the user message of the last job
	Message string `json:"message,omitempty"`

	// LastAttempt is the timestamp of the last sync attempt
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`

	// AttemptCount is the number of sync attempts since last success
	AttemptCount int `json:"attemptCount,omitempty"`

	// LastSyncTime is the timestamp of the last successful sync
	LastSyncTime *time.Time `json:"lastSyncTime,omitempty"`

	// LastOutcome is the outcome kind of the last job
	LastOutcome string `json:"lastOutcome,omitempty"`

	// FullSyncRequired is set while only a full sync can make progress
	FullSyncRequired bool `json:"fullSyncRequired,omitempty"`

	// MediaUploaded and MediaDownloaded are the media counts of the last job
	MediaUploaded   int `json:"mediaUploaded,omitempty"`
	MediaDownloaded int `json:"mediaDownloaded,omitempty"`

	// MediaWarning is the media warning attached to the last job, if any
	MediaWarning string `json:"mediaWarning,omitempty"`
}
