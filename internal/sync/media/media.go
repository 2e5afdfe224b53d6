// Package media is the reference MediaSyncer. It reconciles the local media
// directory with the remote media store: remote changes are applied first,
// then local changes are uploaded in zip batches, and finally both sides
// compare their file counts.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/studykit/colsync/internal/collection"
	"github.com/studykit/colsync/internal/otel"
	"github.com/studykit/colsync/internal/sync"
	"github.com/studykit/colsync/internal/sync/remote"
	"github.com/studykit/colsync/internal/transport"
)

const (
	// SyncZipCount is how many files travel in one zip archive
	SyncZipCount = 25

	// maxRestarts bounds how often a concurrent remote update may restart the sync
	maxRestarts = 3
)

// ErrConcurrentUpdate is returned when the remote media usn kept moving during upload
var ErrConcurrentUpdate = errors.New("remote media changed concurrently")

// Syncer implements sync.MediaSyncer
type Syncer struct {
	exchanger transport.Exchanger
	zipCount  int
	tracer    trace.Tracer
}

// Option configures a Syncer
type Option func(*Syncer)

// WithZipCount sets how many files are packed per archive
func WithZipCount(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.zipCount = n
		}
	}
}

// WithTracer enables tracing of the media phase
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Syncer) {
		s.tracer = tracer
	}
}

// New creates a Syncer
func New(exchanger transport.Exchanger, opts ...Option) *Syncer {
	s := &Syncer{exchanger: exchanger, zipCount: SyncZipCount}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync reconciles the media directory of col
func (s *Syncer) Sync(ctx context.Context, col collection.Collection, sess sync.Session) (sync.MediaResult, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "media.Sync")
	defer span.End()

	run := &mediaRun{
		client:   remote.New(s.exchanger, sess),
		store:    col.Media(),
		sess:     sess,
		zipCount: s.zipCount,
	}
	result, err := run.sync(ctx)
	if err != nil && sync.IsTransient(err) {
		result.Outcome = sync.MediaNetworkError
	}

	span.SetAttributes(
		otel.AttrOutcome.String(result.Outcome.String()),
		otel.AttrMediaUploaded.Int(result.Uploaded),
		otel.AttrMediaDownloaded.Int(result.Downloaded),
	)
	otel.RecordError(span, err)
	return result, err
}

// mediaRun is the state of one media sync; the counters survive restarts
type mediaRun struct {
	client   *remote.Client
	store    collection.MediaStore
	sess     sync.Session
	zipCount int

	uploaded   int
	downloaded int
}

func (r *mediaRun) result(outcome sync.MediaOutcome, detail string) sync.MediaResult {
	return sync.MediaResult{Outcome: outcome, Uploaded: r.uploaded, Downloaded: r.downloaded, Detail: detail}
}

func (r *mediaRun) sync(ctx context.Context) (sync.MediaResult, error) {
	needScan, err := r.store.NeedScan(ctx)
	if err == nil && needScan {
		r.sess.Report(sync.Progress{Phase: sync.PhaseMedia, Message: "scanning media directory"})
		err = r.store.FindChanges(ctx)
	}
	if err != nil {
		slog.WarnContext(ctx, "Media database unreadable", "error", err)
		return r.result(sync.MediaCorrupt, err.Error()), nil
	}

	for attempt := 0; attempt <= maxRestarts; attempt++ {
		result, restart, err := r.pass(ctx)
		if err != nil || !restart {
			return result, err
		}
		slog.InfoContext(ctx, "Restarting media sync after concurrent remote update", "attempt", attempt+1)
	}
	return r.result(sync.MediaSuccess, ""), ErrConcurrentUpdate
}

// pass runs one begin-to-sanity round; restart is true when the upload raced another client
func (r *mediaRun) pass(ctx context.Context) (sync.MediaResult, bool, error) {
	lastUSN, err := r.store.LastUSN(ctx)
	if err != nil {
		return r.result(sync.MediaCorrupt, err.Error()), false, nil
	}
	begin, err := r.client.MediaBegin(ctx)
	if err != nil {
		return r.result(sync.MediaSuccess, ""), false, err
	}
	dirty, err := r.store.DirtyCount(ctx)
	if err != nil {
		return r.result(sync.MediaCorrupt, err.Error()), false, nil
	}
	if begin.USN == lastUSN && dirty == 0 {
		return r.result(sync.MediaNoChanges, ""), false, nil
	}

	lastUSN, err = r.pull(ctx, lastUSN)
	if err != nil {
		return r.result(sync.MediaSuccess, ""), false, err
	}

	conflict, err := r.push(ctx, lastUSN)
	if err != nil {
		return r.result(sync.MediaSuccess, ""), false, err
	}
	if conflict {
		return sync.MediaResult{}, true, nil
	}

	count, err := r.store.Count(ctx)
	if err != nil {
		return r.result(sync.MediaCorrupt, err.Error()), false, nil
	}
	sanity, err := r.client.MediaSanity(ctx, count)
	if err != nil {
		return r.result(sync.MediaSuccess, ""), false, err
	}
	if sanity.Status != remote.MediaSanityOK {
		slog.WarnContext(ctx, "Media sanity check failed", "status", sanity.Status, "local", count)
		if err := r.store.ForceResync(ctx); err != nil {
			slog.WarnContext(ctx, "Failed to reset media sync state", "error", err)
		}
		return r.result(sync.MediaSanityCheckFailed, sanity.Status), false, nil
	}
	return r.result(sync.MediaSuccess, ""), false, nil
}

// pull applies remote changes after lastUSN and returns the new usn
func (r *mediaRun) pull(ctx context.Context, lastUSN int) (int, error) {
	for {
		if err := r.sess.Checkpoint(); err != nil {
			return lastUSN, err
		}
		resp, err := r.client.MediaChanges(ctx, lastUSN)
		if err != nil {
			return lastUSN, err
		}
		if len(resp.Changes) == 0 {
			return lastUSN, nil
		}

		need := make([]string, 0, len(resp.Changes))
		for _, change := range resp.Changes {
			if err := r.sess.Checkpoint(); err != nil {
				return lastUSN, err
			}
			fetch, err := r.applyChange(ctx, change)
			if err != nil {
				return lastUSN, err
			}
			if fetch {
				need = append(need, change.Name)
			}
		}
		if err := r.download(ctx, need); err != nil {
			return lastUSN, err
		}

		lastUSN = resp.Changes[len(resp.Changes)-1].USN
		if err := r.store.SetLastUSN(ctx, lastUSN); err != nil {
			return lastUSN, err
		}
	}
}

// applyChange reconciles one remote entry and reports whether the file must be fetched
func (r *mediaRun) applyChange(ctx context.Context, change remote.MediaChange) (bool, error) {
	if !collection.ValidMediaName(change.Name) {
		slog.WarnContext(ctx, "Skipping remote media entry with invalid name", "name", change.Name)
		return false, nil
	}
	localSum, localDirty, err := r.store.SyncInfo(ctx, change.Name)
	if err != nil {
		return false, err
	}

	switch {
	case change.Checksum != "":
		fetch := localSum != change.Checksum
		return fetch, r.store.MarkClean(ctx, []string{change.Name})
	case localSum != "":
		if localDirty {
			slog.DebugContext(ctx, "Local media addition overrides remote removal", "name", change.Name)
			return false, nil
		}
		return false, r.store.SyncDelete(ctx, change.Name)
	default:
		return false, r.store.MarkClean(ctx, []string{change.Name})
	}
}

func (r *mediaRun) download(ctx context.Context, names []string) error {
	for len(names) > 0 {
		if err := r.sess.Checkpoint(); err != nil {
			return err
		}
		batch := names[:min(len(names), r.zipCount)]
		archive, err := r.client.DownloadFiles(ctx, batch)
		if err != nil {
			return err
		}
		n, err := r.store.AddFilesFromZip(ctx, archive)
		r.downloaded += n
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("remote returned no files for a batch of %d", len(batch))
		}
		names = names[min(n, len(names)):]
		r.sess.Report(sync.Progress{Phase: sync.PhaseMedia, Uploaded: r.uploaded, Downloaded: r.downloaded})
	}
	return nil
}

// push uploads dirty entries; conflict is true when another client moved the remote usn
func (r *mediaRun) push(ctx context.Context, lastUSN int) (bool, error) {
	conflict := false
	for {
		if err := r.sess.Checkpoint(); err != nil {
			return conflict, err
		}
		archive, names, err := r.store.ChangesZip(ctx, r.zipCount)
		if err != nil {
			return conflict, err
		}
		if len(names) == 0 {
			return conflict, nil
		}

		resp, err := r.client.UploadChanges(ctx, archive)
		if err != nil {
			return conflict, err
		}
		processed := min(max(resp.Processed, 0), len(names))
		if processed == 0 {
			return conflict, fmt.Errorf("remote processed none of %d media changes", len(names))
		}
		if err := r.store.MarkClean(ctx, names[:processed]); err != nil {
			return conflict, err
		}
		r.uploaded += processed

		if resp.CurrentUSN-processed == lastUSN {
			lastUSN = resp.CurrentUSN
			if err := r.store.SetLastUSN(ctx, lastUSN); err != nil {
				return conflict, err
			}
		} else {
			slog.DebugContext(ctx, "Remote media usn moved during upload",
				"processed", processed, "remote_usn", resp.CurrentUSN, "local_usn", lastUSN)
			conflict = true
		}
		r.sess.Report(sync.Progress{Phase: sync.PhaseMedia, Uploaded: r.uploaded, Downloaded: r.downloaded})
	}
}
