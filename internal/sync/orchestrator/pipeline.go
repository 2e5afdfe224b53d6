package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/studykit/colsync/internal/collection"
	"github.com/studykit/colsync/internal/otel"
	"github.com/studykit/colsync/internal/sync"
)

const (
	mediaCorruptWarning = "media database could not be read; media was not synced"
	mediaSanityWarning  = "media files were out of sync and will be re-sent on the next sync"
)

func (o *Orchestrator) login(ctx context.Context, job *JobHandle, req sync.Request, sess sync.Session) sync.Outcome {
	job.setCancellable(true)
	sess.Report(sync.Progress{Phase: sync.PhaseLogin})

	if sess.Cancelled() {
		return sync.UserCancelled()
	}

	res, err := o.deps.Authenticator.Login(ctx, req.Credentials, req.HostRoute)
	if err != nil {
		return sync.Classify(err)
	}
	if sess.Cancelled() {
		return sync.UserCancelled()
	}

	username := res.Username
	if username == "" {
		username = req.Credentials.Username
	}
	return sync.Outcome{Kind: sync.OutcomeSuccess, SessionKey: res.SessionKey, Username: username}
}

// syncCollection runs the sync pipeline. The collection is unlocked and
// closed on every return path.
func (o *Orchestrator) syncCollection(
	ctx context.Context,
	job *JobHandle,
	req sync.Request,
	sess sync.Session,
) sync.Outcome {
	job.setCancellable(true)
	sess.Report(sync.Progress{Phase: sync.PhaseAwaitingPriorTask})

	tasksDone := o.tasks.WaitToFinish(ctx, o.priorTaskTimeout)
	if !tasksDone {
		o.logger.Warn("Background tasks still running, syncing anyway", "job_id", job.ID(), "timeout", o.priorTaskTimeout)
	}
	if sess.Cancelled() {
		return sync.UserCancelled()
	}

	col, openErr := o.deps.Collections.Open(ctx)
	if openErr != nil || col == nil {
		if req.ConflictResolution != sync.ResolutionFullDownload || col == nil {
			if col != nil {
				if err := col.Close(ctx, false); err != nil {
					o.logger.Warn("Failed to close collection", "job_id", job.ID(), "error", err)
				}
			}
			detail := "collection could not be opened"
			err := errors.Join(sync.ErrCollectionUnavailable, openErr)
			if !tasksDone {
				detail += " after a background task did not finish in time"
				err = errors.Join(err, ErrPriorTaskTimeout)
			}
			return sync.UnknownFailure(detail, err)
		}
		o.logger.Warn("Collection unavailable, replacing it with a full download",
			"job_id", job.ID(),
			"prior_tasks_done", tasksDone,
			"error", openErr)
	}

	if err := col.Lock(ctx); err != nil {
		if cerr := col.Close(ctx, false); cerr != nil {
			o.logger.Warn("Failed to close collection", "job_id", job.ID(), "error", cerr)
		}
		return sync.UnknownFailure("collection is locked", err)
	}
	defer func() {
		if err := col.Unlock(); err != nil {
			o.logger.Warn("Failed to unlock collection", "job_id", job.ID(), "error", err)
		}
		if err := col.Close(ctx, false); err != nil {
			o.logger.Warn("Failed to close collection", "job_id", job.ID(), "error", err)
		}
	}()

	resolution := req.ConflictResolution
	changed, noChanges := false, false
	var serverMessage string

	if resolution == sync.ResolutionNone {
		res, err := o.deps.Incremental.Sync(ctx, col, sess)
		if err != nil {
			return sync.Classify(err)
		}
		serverMessage = res.ServerMessage

		switch res.Status {
		case sync.IncrementalSuccess:
			changed = true
		case sync.IncrementalNoChanges:
			noChanges = true
		case sync.IncrementalSanityCheckFailed:
			out := o.invalidateSchema(ctx, col)
			out.ServerMessage = serverMessage
			return out
		case sync.IncrementalFullSyncRequired, sync.IncrementalBasicCheckFailed:
			if err := o.requireFullSync(ctx, col); err != nil {
				out := sync.UnknownFailure("failed to mark collection for full sync", err)
				out.ServerMessage = serverMessage
				return out
			}
			if req.FallbackResolution == sync.ResolutionNone {
				return sync.Outcome{
					Kind:          sync.OutcomeConflictRequiresFullSync,
					Detail:        res.Status.String(),
					ServerMessage: serverMessage,
				}
			}
			o.logger.Info("Falling back to full sync",
				"job_id", job.ID(),
				"status", res.Status.String(),
				"resolution", req.FallbackResolution.String())
			resolution = req.FallbackResolution
		default:
			return sync.UnknownFailure(fmt.Sprintf("unexpected incremental status %d", res.Status), nil)
		}
	}

	if resolution != sync.ResolutionNone {
		if sess.Cancelled() {
			return sync.UserCancelled()
		}
		if out, ok := o.fullSync(ctx, job, col, resolution, sess); !ok {
			out.ServerMessage = serverMessage
			return out
		}
		changed = true
	}

	if err := col.ClearUndo(ctx); err != nil {
		o.logger.Warn("Failed to clear undo history", "job_id", job.ID(), "error", err)
	}

	job.setCancellable(true)

	outcome := sync.Success(changed)
	outcome.Resolution = resolution
	outcome.ServerMessage = serverMessage

	if !req.SyncMedia {
		if noChanges {
			return sync.Outcome{Kind: sync.OutcomeNoChanges, ServerMessage: serverMessage}
		}
		return outcome
	}

	sess.Report(sync.Progress{Phase: sync.PhaseMedia})
	res, err := o.deps.Media.Sync(ctx, col, sess)
	summary := &sync.MediaSummary{Uploaded: res.Uploaded, Downloaded: res.Downloaded, Outcome: res.Outcome}
	if err != nil {
		out := mediaFailure(err, summary)
		out.ChangedCollection = changed
		out.Resolution = resolution
		out.ServerMessage = serverMessage
		return out
	}

	switch res.Outcome {
	case sync.MediaCorrupt:
		outcome.MediaWarning = mediaCorruptWarning
	case sync.MediaSanityCheckFailed:
		outcome.MediaWarning = mediaSanityWarning
	}

	if noChanges && (res.Outcome == sync.MediaNoChanges || res.Outcome == sync.MediaCorrupt) {
		outcome.Kind = sync.OutcomeNoChanges
	}
	outcome.Media = summary
	return outcome
}

// invalidateSchema makes every following sync a full sync
func (o *Orchestrator) invalidateSchema(ctx context.Context, col collection.Collection) sync.Outcome {
	if err := o.requireFullSync(ctx, col); err != nil {
		return sync.UnknownFailure("failed to invalidate collection schema", err)
	}
	return sync.Outcome{Kind: sync.OutcomeSchemaInvalidated}
}

// requireFullSync bumps the schema marker and saves it, so the requirement
// survives a crash or a reopen
func (*Orchestrator) requireFullSync(ctx context.Context, col collection.Collection) error {
	if err := col.ModSchemaNoCheck(ctx); err != nil {
		return err
	}
	return col.Save(ctx)
}

// fullSync replaces one side. The job is not cancellable until it returns and
// the caller's cancellation does not reach the driver.
func (o *Orchestrator) fullSync(
	ctx context.Context,
	job *JobHandle,
	col collection.Collection,
	resolution sync.ConflictResolution,
	sess sync.Session,
) (sync.Outcome, bool) {
	job.setCancellable(false)
	ctx, span := otel.StartSpan(context.WithoutCancel(ctx), o.tracer, "orchestrator.fullSync")
	span.SetAttributes(otel.AttrResolution.String(resolution.String()))
	defer span.End()

	fail := func(err error) (sync.Outcome, bool) {
		otel.RecordError(span, err)
		out := sync.Classify(err)
		out.Resolution = resolution
		return out, false
	}

	switch resolution {
	case sync.ResolutionFullUpload:
		sess.Report(sync.Progress{Phase: sync.PhaseFullUpload})
		res, err := o.deps.Full.Upload(ctx, col, sess)
		if rerr := col.Reopen(ctx); rerr != nil {
			if err != nil {
				o.logger.Warn("Failed to reopen collection after upload", "job_id", job.ID(), "error", rerr)
				return fail(err)
			}
			return fail(fmt.Errorf("failed to reopen collection after upload: %w", rerr))
		}
		if err != nil {
			return fail(err)
		}
		if !res.Accepted() {
			out := sync.ServerRejected(0, sync.ReasonUploadRejected, res.Status)
			out.Resolution = resolution
			return out, false
		}

	case sync.ResolutionFullDownload:
		sess.Report(sync.Progress{Phase: sync.PhaseFullDownload})
		res, err := o.deps.Full.Download(ctx, col, sess)
		if err != nil {
			if res.Touched {
				if rerr := col.Reopen(ctx); rerr != nil {
					o.logger.Warn("Failed to reopen collection after download", "job_id", job.ID(), "error", rerr)
				}
			}
			return fail(err)
		}
		if err := col.Reopen(ctx); err != nil {
			return fail(fmt.Errorf("failed to reopen collection after download: %w", err))
		}
		if err := col.MarkScheduleUnadjusted(ctx); err != nil {
			o.logger.Warn("Failed to reset schedule marker", "job_id", job.ID(), "error", err)
		}
	}

	return sync.Outcome{}, true
}

// mediaFailure maps a media driver error; the partial counts stay attached
func mediaFailure(err error, summary *sync.MediaSummary) sync.Outcome {
	out := sync.Classify(err)
	switch out.Kind {
	case sync.OutcomeNetworkError, sync.OutcomeUserCancelled, sync.OutcomeOutOfMemory:
	case sync.OutcomeServerRejected:
		out.Reason = sync.ReasonMediaServerError
	default:
		out = sync.UnknownFailure("media sync failed: "+err.Error(), err)
	}
	out.Media = summary
	return out
}
