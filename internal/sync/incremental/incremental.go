// Package incremental is the reference IncrementalSyncer. It runs the two-way
// diff-and-merge protocol: meta negotiation, removal exchange, small-object
// exchange, chunked transfer of large objects in both directions, a remote
// sanity check and a commit, all inside one local transaction.
package incremental

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/studykit/colsync/internal/collection"
	"github.com/studykit/colsync/internal/otel"
	"github.com/studykit/colsync/internal/sync"
	"github.com/studykit/colsync/internal/sync/remote"
	"github.com/studykit/colsync/internal/transport"
	"github.com/studykit/colsync/internal/versions"
)

const (
	// DefaultChunkSize is how many large objects are uploaded per chunk
	DefaultChunkSize = 250

	// MaxClockSkew is how far the local and remote clocks may drift apart
	MaxClockSkew = 300 * time.Second

	abortTimeout = 10 * time.Second
)

// Syncer implements sync.IncrementalSyncer
type Syncer struct {
	exchanger     transport.Exchanger
	chunkSize     int
	clientVersion string
	now           func() time.Time
	tracer        trace.Tracer
}

// Option configures a Syncer
type Option func(*Syncer)

// WithChunkSize sets the upload chunk size
func WithChunkSize(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithClientVersion overrides the client version sent with meta
func WithClientVersion(v string) Option {
	return func(s *Syncer) {
		s.clientVersion = v
	}
}

// WithClock overrides the clock used for the skew check
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) {
		s.now = now
	}
}

// WithTracer enables tracing of protocol steps
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Syncer) {
		s.tracer = tracer
	}
}

// New creates a Syncer
func New(exchanger transport.Exchanger, opts ...Option) *Syncer {
	s := &Syncer{
		exchanger:     exchanger,
		chunkSize:     DefaultChunkSize,
		clientVersion: versions.ClientVersion(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync runs one incremental sync of col
func (s *Syncer) Sync(ctx context.Context, col collection.Collection, sess sync.Session) (sync.IncrementalResult, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "incremental.Sync")
	defer span.End()

	result, err := s.sync(ctx, col, sess)
	otel.RecordError(span, err)
	if err == nil {
		span.SetAttributes(otel.AttrOutcome.String(result.Status.String()))
	}
	return result, err
}

func (s *Syncer) sync(ctx context.Context, col collection.Collection, sess sync.Session) (sync.IncrementalResult, error) {
	if err := col.Save(ctx); err != nil {
		return sync.IncrementalResult{}, fmt.Errorf("failed to save collection before sync: %w", err)
	}

	client := remote.New(s.exchanger, sess)
	rmeta, err := client.Meta(ctx, s.clientVersion)
	if err != nil {
		return sync.IncrementalResult{}, err
	}
	if !rmeta.Continue {
		return sync.IncrementalResult{}, sync.Rejected(http.StatusOK, sync.ReasonServerAbort, rmeta.Message)
	}
	sess.Report(sync.Progress{Phase: sync.PhaseAuthenticated, Message: rmeta.Message})

	if err := sess.Checkpoint(); err != nil {
		return sync.IncrementalResult{}, err
	}

	skew := time.Duration(abs(s.now().Unix()-rmeta.Timestamp)) * time.Second
	if skew > MaxClockSkew {
		return sync.IncrementalResult{}, sync.Rejected(http.StatusOK, sync.ReasonClockOff,
			fmt.Sprintf("clock is off by %s", skew))
	}

	store := col.Store()
	lmeta, err := store.Meta(ctx)
	if err != nil {
		return sync.IncrementalResult{}, err
	}

	slog.DebugContext(ctx, "Compared collection meta",
		"local_mod", lmeta.Mod, "remote_mod", rmeta.Mod,
		"local_scm", lmeta.SchemaMod, "remote_scm", rmeta.SchemaMod,
		"local_usn", lmeta.USN, "remote_usn", rmeta.USN)

	base := sync.IncrementalResult{ServerMessage: rmeta.Message}
	if lmeta.Mod == rmeta.Mod {
		base.Status = sync.IncrementalNoChanges
		return base, nil
	}
	if lmeta.SchemaMod != rmeta.SchemaMod {
		base.Status = sync.IncrementalFullSyncRequired
		return base, nil
	}

	ok, err := store.BasicCheck(ctx)
	if err != nil {
		return sync.IncrementalResult{}, err
	}
	if !ok {
		base.Status = sync.IncrementalBasicCheckFailed
		return base, nil
	}

	sess.Report(sync.Progress{Phase: sync.PhaseDiffing})
	run := &exchange{
		client:    client,
		sess:      sess,
		chunkSize: s.chunkSize,
		minUSN:    lmeta.USN,
		maxUSN:    rmeta.USN,
		newer:     lmeta.Mod > rmeta.Mod,
	}

	var status sync.IncrementalStatus
	err = store.SyncTx(ctx, func(tx collection.SyncTx) (bool, error) {
		var txErr error
		status, txErr = run.run(ctx, tx)
		return txErr == nil && status == sync.IncrementalSuccess, txErr
	})
	if err != nil || status != sync.IncrementalSuccess {
		if run.started {
			s.abort(ctx, client)
		}
		if err != nil {
			return sync.IncrementalResult{}, err
		}
	}

	base.Status = status
	return base, nil
}

func (s *Syncer) abort(ctx context.Context, client *remote.Client) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()
	if err := client.Abort(ctx); err != nil {
		slog.DebugContext(ctx, "Failed to abort remote sync", "error", err)
	}
}

// exchange is the state of one transactional change exchange
type exchange struct {
	client    *remote.Client
	sess      sync.Session
	chunkSize int
	minUSN    int
	maxUSN    int
	newer     bool
	started   bool
}

func (e *exchange) run(ctx context.Context, tx collection.SyncTx) (sync.IncrementalStatus, error) {
	if err := e.removals(ctx, tx); err != nil {
		return 0, err
	}
	if err := e.smallObjects(ctx, tx); err != nil {
		return 0, err
	}

	e.sess.Report(sync.Progress{Phase: sync.PhaseApplying})
	if err := e.download(ctx, tx); err != nil {
		return 0, err
	}
	if err := e.upload(ctx, tx); err != nil {
		return 0, err
	}

	if err := e.sess.Checkpoint(); err != nil {
		return 0, err
	}
	counts, err := tx.Counts(ctx)
	if err != nil {
		return 0, err
	}
	sanity, err := e.client.SanityCheck(ctx, remote.SanityRequest{Client: counts})
	if err != nil {
		return 0, err
	}
	if sanity.Status != remote.SanityOK {
		slog.WarnContext(ctx, "Remote sanity check failed",
			"status", sanity.Status, "client", sanity.Client, "server", sanity.Server)
		return sync.IncrementalSanityCheckFailed, nil
	}

	if err := e.sess.Checkpoint(); err != nil {
		return 0, err
	}
	fin, err := e.client.Finish(ctx)
	if err != nil {
		return 0, err
	}
	if fin.Mod == 0 {
		return 0, sync.Rejected(http.StatusOK, sync.ReasonFinishError, "remote did not confirm the sync")
	}
	if err := tx.Finish(ctx, fin.Mod, e.maxUSN+1); err != nil {
		return 0, err
	}
	return sync.IncrementalSuccess, nil
}

func (e *exchange) removals(ctx context.Context, tx collection.SyncTx) error {
	if err := e.sess.Checkpoint(); err != nil {
		return err
	}
	local, err := tx.Graves(ctx, -1)
	if err != nil {
		return err
	}
	e.started = true
	resp, err := e.client.Start(ctx, remote.StartRequest{MinUSN: e.minUSN, LocalNewer: e.newer, Graves: local})
	if err != nil {
		return err
	}
	if err := tx.MarkGravesSent(ctx, e.maxUSN); err != nil {
		return err
	}
	return tx.ApplyGraves(ctx, resp.Graves, e.maxUSN)
}

func (e *exchange) smallObjects(ctx context.Context, tx collection.SyncTx) error {
	if err := e.sess.Checkpoint(); err != nil {
		return err
	}
	local, err := tx.Changed(ctx, collection.SmallKinds, -1, 0)
	if err != nil {
		return err
	}
	resp, err := e.client.ApplyChanges(ctx, remote.ChangesRequest{Changes: local})
	if err != nil {
		return err
	}
	if err := tx.Merge(ctx, resp.Changes, e.maxUSN); err != nil {
		return err
	}
	return tx.MarkSent(ctx, local, e.maxUSN)
}

func (e *exchange) download(ctx context.Context, tx collection.SyncTx) error {
	received := 0
	for {
		if err := e.sess.Checkpoint(); err != nil {
			return err
		}
		chunk, err := e.client.Chunk(ctx)
		if err != nil {
			return err
		}
		if err := tx.Merge(ctx, chunk.Records, e.maxUSN); err != nil {
			return err
		}
		received += len(chunk.Records)
		e.sess.Report(sync.Progress{Phase: sync.PhaseApplying, Downloaded: received})
		if chunk.Done {
			return nil
		}
	}
}

func (e *exchange) upload(ctx context.Context, tx collection.SyncTx) error {
	sent := 0
	for {
		if err := e.sess.Checkpoint(); err != nil {
			return err
		}
		records, err := tx.Changed(ctx, collection.LargeKinds, -1, e.chunkSize)
		if err != nil {
			return err
		}
		done := len(records) < e.chunkSize
		if err := tx.MarkSent(ctx, records, e.maxUSN); err != nil {
			return err
		}
		if err := e.client.ApplyChunk(ctx, remote.Chunk{Done: done, Records: records}); err != nil {
			return err
		}
		sent += len(records)
		e.sess.Report(sync.Progress{Phase: sync.PhaseApplying, Uploaded: sent})
		if done {
			return nil
		}
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
