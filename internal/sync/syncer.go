package sync

import (
	"context"

	"github.com/studykit/colsync/internal/collection"
)

//go:generate mockgen -destination=mocks/mock_syncer.go -package=mocks -source=syncer.go Authenticator,IncrementalSyncer,FullSyncer,MediaSyncer

// Phase names a step of a job, reported through progress updates
type Phase string

const (
	PhaseAwaitingPriorTask Phase = "awaiting-prior-task"
	PhaseLogin             Phase = "login"
	PhaseAuthenticated     Phase = "authenticated"
	PhaseDiffing           Phase = "diffing"
	PhaseApplying          Phase = "applying"
	PhaseFullUpload        Phase = "full-upload"
	PhaseFullDownload      Phase = "full-download"
	PhaseMedia             Phase = "media"
)

// Progress is one progress update
type Progress struct {
	Phase      Phase
	Message    string
	Uploaded   int
	Downloaded int
}

// Session is what a driver needs from the running job
type Session struct {
	Key       string
	Route     HostRoute
	progress  func(Progress)
	cancelled func() bool
}

// NewSession creates a session. Nil callbacks are allowed.
func NewSession(key string, route HostRoute, progress func(Progress), cancelled func() bool) Session {
	return Session{Key: key, Route: route, progress: progress, cancelled: cancelled}
}

// Report publishes a progress update
func (s Session) Report(p Progress) {
	if s.progress != nil {
		s.progress(p)
	}
}

// Cancelled reports whether the user asked to cancel
func (s Session) Cancelled() bool {
	return s.cancelled != nil && s.cancelled()
}

// Checkpoint returns ErrUserCancelled once cancellation was requested
func (s Session) Checkpoint() error {
	if s.Cancelled() {
		return ErrUserCancelled
	}
	return nil
}

// LoginResult is the result of a successful login
type LoginResult struct {
	SessionKey string
	Username   string
}

// IncrementalStatus is the structural result of an incremental sync
type IncrementalStatus int

const (
	// IncrementalSuccess means changes were exchanged and committed
	IncrementalSuccess IncrementalStatus = iota
	// IncrementalNoChanges means both sides already agreed
	IncrementalNoChanges
	// IncrementalFullSyncRequired means the schemas differ
	IncrementalFullSyncRequired
	// IncrementalBasicCheckFailed means the local collection failed its integrity check
	IncrementalBasicCheckFailed
	// IncrementalSanityCheckFailed means the remote found the merged data inconsistent
	IncrementalSanityCheckFailed
)

// String returns the name of the status
func (s IncrementalStatus) String() string {
	switch s {
	case IncrementalSuccess:
		return "success"
	case IncrementalNoChanges:
		return "no-changes"
	case IncrementalFullSyncRequired:
		return "full-sync-required"
	case IncrementalBasicCheckFailed:
		return "basic-check-failed"
	case IncrementalSanityCheckFailed:
		return "sanity-check-failed"
	default:
		return "unknown"
	}
}

// IncrementalResult is the result of an incremental sync
type IncrementalResult struct {
	Status        IncrementalStatus
	ServerMessage string
}

// UploadResult carries the remote's verdict on a full upload
type UploadResult struct {
	Status string
}

// UploadAccepted is the status the remote returns for an accepted upload
const UploadAccepted = "OK"

// Accepted reports whether the remote took the upload
func (r UploadResult) Accepted() bool {
	return r.Status == UploadAccepted
}

// DownloadResult describes how far a full download got
type DownloadResult struct {
	// Touched is true once local data was modified
	Touched bool
}

// MediaResult is the result of the media phase. Counts are valid even when an error is returned.
type MediaResult struct {
	Outcome    MediaOutcome
	Uploaded   int
	Downloaded int
	Detail     string
}

// Authenticator exchanges credentials for a session key
type Authenticator interface {
	Login(ctx context.Context, creds Credentials, route HostRoute) (LoginResult, error)
}

// IncrementalSyncer runs the two-way diff-and-merge protocol
type IncrementalSyncer interface {
	Sync(ctx context.Context, col collection.Collection, sess Session) (IncrementalResult, error)
}

// FullSyncer replaces one side's collection with the other's
type FullSyncer interface {
	Upload(ctx context.Context, col collection.Collection, sess Session) (UploadResult, error)
	Download(ctx context.Context, col collection.Collection, sess Session) (DownloadResult, error)
}

// MediaSyncer reconciles the media directory
type MediaSyncer interface {
	Sync(ctx context.Context, col collection.Collection, sess Session) (MediaResult, error)
}
