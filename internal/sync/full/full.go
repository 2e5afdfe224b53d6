// Package full is the reference FullSyncer: whole-collection upload and
// download. A download never leaves a half-written collection file behind: the
// payload is written next to the collection, verified, and renamed into place.
package full

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"syscall"

	"go.opentelemetry.io/otel/trace"

	"github.com/studykit/colsync/internal/collection"
	"github.com/studykit/colsync/internal/otel"
	"github.com/studykit/colsync/internal/sync"
	"github.com/studykit/colsync/internal/sync/remote"
	"github.com/studykit/colsync/internal/transport"
)

// Syncer implements sync.FullSyncer
type Syncer struct {
	exchanger transport.Exchanger
	verify    func(ctx context.Context, path string) error
	tracer    trace.Tracer
}

// Option configures a Syncer
type Option func(*Syncer)

// WithVerifier replaces the integrity check run on downloaded files
func WithVerifier(verify func(ctx context.Context, path string) error) Option {
	return func(s *Syncer) {
		s.verify = verify
	}
}

// WithTracer enables tracing
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Syncer) {
		s.tracer = tracer
	}
}

// New creates a Syncer
func New(exchanger transport.Exchanger, opts ...Option) *Syncer {
	s := &Syncer{exchanger: exchanger, verify: collection.Verify}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload replaces the remote collection with the local one. The collection is
// left closed; the caller reopens it.
func (s *Syncer) Upload(ctx context.Context, col collection.Collection, sess sync.Session) (sync.UploadResult, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "full.Upload")
	defer span.End()

	sess.Report(sync.Progress{Phase: sync.PhaseFullUpload, Message: "preparing upload"})
	if err := col.Store().PrepareFullUpload(ctx); err != nil {
		otel.RecordError(span, err)
		return sync.UploadResult{}, err
	}
	if err := col.Close(ctx, true); err != nil {
		otel.RecordError(span, err)
		return sync.UploadResult{}, fmt.Errorf("failed to close collection for upload: %w", err)
	}

	data, err := os.ReadFile(col.Path())
	if err != nil {
		err = exhausted(fmt.Errorf("failed to read collection for upload: %w", err))
		otel.RecordError(span, err)
		return sync.UploadResult{}, err
	}

	sess.Report(sync.Progress{Phase: sync.PhaseFullUpload, Message: "uploading", Uploaded: len(data)})
	status, err := remote.New(s.exchanger, sess).Upload(ctx, data)
	if err != nil {
		otel.RecordError(span, err)
		return sync.UploadResult{}, err
	}
	slog.InfoContext(ctx, "Full upload finished", "bytes", len(data), "status", status)
	return sync.UploadResult{Status: status}, nil
}

// Download replaces the local collection with the remote one. On success the
// collection is left closed for the caller to reopen.
func (s *Syncer) Download(ctx context.Context, col collection.Collection, sess sync.Session) (sync.DownloadResult, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "full.Download")
	defer span.End()

	result, err := s.download(ctx, col, sess)
	otel.RecordError(span, err)
	return result, err
}

func (s *Syncer) download(ctx context.Context, col collection.Collection, sess sync.Session) (sync.DownloadResult, error) {
	sess.Report(sync.Progress{Phase: sync.PhaseFullDownload, Message: "downloading"})
	data, err := remote.New(s.exchanger, sess).Download(ctx)
	if err != nil {
		return sync.DownloadResult{}, exhausted(err)
	}
	sess.Report(sync.Progress{Phase: sync.PhaseFullDownload, Message: "installing", Downloaded: len(data)})

	path := col.Path()
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".download-*")
	if err != nil {
		return sync.DownloadResult{}, exhausted(fmt.Errorf("failed to create download file: %w", err))
	}
	tmpPath := tmp.Name()
	installed := false
	defer func() {
		if !installed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return sync.DownloadResult{}, exhausted(fmt.Errorf("failed to write download file: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return sync.DownloadResult{}, exhausted(fmt.Errorf("failed to flush download file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return sync.DownloadResult{}, exhausted(fmt.Errorf("failed to close download file: %w", err))
	}

	if err := s.verify(ctx, tmpPath); err != nil {
		return sync.DownloadResult{}, &sync.Error{
			Err:     err,
			Message: "downloaded collection failed its integrity check",
			Kind:    sync.OutcomeServerRejected,
			Reason:  sync.ReasonRemoteCorrupt,
			Code:    http.StatusOK,
		}
	}

	// Local data is touched from here on
	touched := sync.DownloadResult{Touched: true}
	if err := col.Close(ctx, false); err != nil {
		return touched, fmt.Errorf("failed to close collection for download: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return touched, fmt.Errorf("failed to remove stale %s file: %w", suffix, err)
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return touched, exhausted(fmt.Errorf("failed to install downloaded collection: %w", err))
	}
	installed = true

	slog.InfoContext(ctx, "Full download installed", "bytes", len(data), "path", path)
	return touched, nil
}

// exhausted marks storage and memory exhaustion so it is classified as such
func exhausted(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.ENOMEM) || errors.Is(err, syscall.EDQUOT) {
		return fmt.Errorf("%w: %w", sync.ErrResourceExhausted, err)
	}
	return err
}
