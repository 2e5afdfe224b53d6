package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	stdsync "sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/mock/gomock"

	"github.com/studykit/colsync/internal/collection"
	colmocks "github.com/studykit/colsync/internal/collection/mocks"
	"github.com/studykit/colsync/internal/status"
	"github.com/studykit/colsync/internal/sync"
	syncmocks "github.com/studykit/colsync/internal/sync/mocks"
	"github.com/studykit/colsync/internal/sync/orchestrator"
	"github.com/studykit/colsync/internal/sync/orchestrator/mocks"
	"github.com/studykit/colsync/internal/telemetry"
	"github.com/studykit/colsync/internal/transport"
)

type harness struct {
	ctrl     *gomock.Controller
	auth     *syncmocks.MockAuthenticator
	inc      *syncmocks.MockIncrementalSyncer
	full     *syncmocks.MockFullSyncer
	media    *syncmocks.MockMediaSyncer
	provider *colmocks.MockProvider
	col      *colmocks.MockCollection
	reporter *mocks.MockReporter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)
	return &harness{
		ctrl:     ctrl,
		auth:     syncmocks.NewMockAuthenticator(ctrl),
		inc:      syncmocks.NewMockIncrementalSyncer(ctrl),
		full:     syncmocks.NewMockFullSyncer(ctrl),
		media:    syncmocks.NewMockMediaSyncer(ctrl),
		provider: colmocks.NewMockProvider(ctrl),
		col:      colmocks.NewMockCollection(ctrl),
		reporter: mocks.NewMockReporter(ctrl),
	}
}

// orchestrator builds an orchestrator whose reporter fails the test on any
// report that was not expected
func (h *harness) orchestrator(opts ...orchestrator.Option) *orchestrator.Orchestrator {
	deps := orchestrator.Dependencies{
		Authenticator: h.auth,
		Incremental:   h.inc,
		Full:          h.full,
		Media:         h.media,
		Collections:   h.provider,
	}
	return orchestrator.New(deps, append([]orchestrator.Option{orchestrator.WithReporter(h.reporter)}, opts...)...)
}

// expectCollection expects one open, lock, unlock and close of the collection
func (h *harness) expectCollection() {
	h.provider.EXPECT().Open(gomock.Any()).Return(h.col, nil)
	h.col.EXPECT().Lock(gomock.Any()).Return(nil)
	h.col.EXPECT().Unlock().Return(nil)
	h.col.EXPECT().Close(gomock.Any(), false).Return(nil)
}

func (h *harness) allowClearUndo() {
	h.col.EXPECT().ClearUndo(gomock.Any()).Return(nil).AnyTimes()
}

type recorder struct {
	mu       stdsync.Mutex
	events   []string
	outcomes []sync.Outcome
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) OnStart() { r.add("start") }

func (r *recorder) OnProgress(p sync.Progress) { r.add("progress:" + string(p.Phase)) }

func (r *recorder) OnFinish(outcome sync.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "finish")
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recorder) OnDisconnected() { r.add("disconnected") }

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// terminal asserts exactly one terminal callback and returns it
func (r *recorder) terminal(t *testing.T) string {
	t.Helper()
	var terminals []string
	for _, e := range r.snapshot() {
		if e == "finish" || e == "disconnected" {
			terminals = append(terminals, e)
		}
	}
	require.Len(t, terminals, 1)
	return terminals[0]
}

func syncRequest() sync.Request {
	return sync.Request{Kind: sync.KindSync, SessionKey: "session"}
}

func wait(t *testing.T, job *orchestrator.JobHandle) sync.Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := job.Wait(ctx)
	require.NoError(t, err)
	return out
}

func run(t *testing.T, o *orchestrator.Orchestrator, req sync.Request) (sync.Outcome, *recorder) {
	t.Helper()
	rec := &recorder{}
	job, err := o.Sync(context.Background(), req, rec)
	require.NoError(t, err)
	out := wait(t, job)
	assert.Equal(t, "finish", rec.terminal(t))
	require.Len(t, rec.outcomes, 1)
	assert.Equal(t, out.Kind, rec.outcomes[0].Kind)
	return out, rec
}

func TestOrchestrator_InvalidRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		login   bool
		req     sync.Request
		noMedia bool
		wantErr error
	}{
		{
			name:    "login without password",
			login:   true,
			req:     sync.Request{Kind: sync.KindLogin, Credentials: sync.Credentials{Username: "alice"}},
			wantErr: sync.ErrInvalidRequest,
		},
		{
			name:    "sync request passed to login",
			login:   true,
			req:     syncRequest(),
			wantErr: sync.ErrInvalidRequest,
		},
		{
			name:    "sync without session key",
			req:     sync.Request{Kind: sync.KindSync},
			wantErr: sync.ErrInvalidRequest,
		},
		{
			name:    "media requested without media syncer",
			req:     sync.Request{Kind: sync.KindSync, SessionKey: "session", SyncMedia: true},
			noMedia: true,
			wantErr: orchestrator.ErrMissingDependency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			deps := orchestrator.Dependencies{
				Authenticator: h.auth,
				Incremental:   h.inc,
				Full:          h.full,
				Media:         h.media,
				Collections:   h.provider,
			}
			if tt.noMedia {
				deps.Media = nil
			}
			o := orchestrator.New(deps)

			var err error
			if tt.login {
				_, err = o.Login(context.Background(), tt.req, nil)
			} else {
				_, err = o.Sync(context.Background(), tt.req, nil)
			}
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, o.Current())
		})
	}
}

func TestOrchestrator_Login(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		result     sync.LoginResult
		err        error
		wantKind   sync.OutcomeKind
		wantReason string
	}{
		{
			name:     "success",
			result:   sync.LoginResult{SessionKey: "hostkey"},
			wantKind: sync.OutcomeSuccess,
		},
		{
			name:       "bad credentials",
			err:        sync.Rejected(403, sync.ReasonBadAuth, "invalid username or password"),
			wantKind:   sync.OutcomeServerRejected,
			wantReason: sync.ReasonBadAuth,
		},
		{
			name:     "custom endpoint rejected",
			err:      &transport.URLError{URL: "ftp://sync.example", Err: errors.New("unsupported scheme")},
			wantKind: sync.OutcomeCustomServerURLRejected,
		},
		{
			name:     "network down",
			err:      transport.Classify("hostKey", syscall.ECONNREFUSED),
			wantKind: sync.OutcomeNetworkError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			creds := sync.Credentials{Username: "alice", Password: "secret"}
			h.auth.EXPECT().Login(gomock.Any(), creds, sync.HostRoute{HostNum: 2}).Return(tt.result, tt.err)

			status := mocks.NewMockStatusRecorder(h.ctrl)
			o := h.orchestrator(orchestrator.WithStatusRecorder(status))

			rec := &recorder{}
			job, err := o.Login(context.Background(), sync.Request{
				Kind:        sync.KindLogin,
				Credentials: creds,
				HostRoute:   sync.HostRoute{HostNum: 2},
			}, rec)
			require.NoError(t, err)
			assert.Equal(t, sync.KindLogin, job.Kind())

			out := wait(t, job)
			assert.Equal(t, tt.wantKind, out.Kind)
			assert.Equal(t, tt.wantReason, out.Reason)
			if tt.wantKind == sync.OutcomeSuccess {
				assert.Equal(t, "hostkey", out.SessionKey)
				assert.Equal(t, "alice", out.Username)
			}
			assert.Equal(t, []string{"start", "progress:login", "finish"}, rec.snapshot())
		})
	}
}

func TestOrchestrator_Incremental(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		status         sync.IncrementalStatus
		err            error
		fallback       sync.ConflictResolution
		marksSchema    bool
		setup          func(h *harness)
		wantKind       sync.OutcomeKind
		wantReason     string
		wantChanged    bool
		wantResolution sync.ConflictResolution
	}{
		{
			name:        "changes exchanged",
			status:      sync.IncrementalSuccess,
			wantKind:    sync.OutcomeSuccess,
			wantChanged: true,
		},
		{
			name:     "already up to date",
			status:   sync.IncrementalNoChanges,
			wantKind: sync.OutcomeNoChanges,
		},
		{
			name:        "schema mismatch without fallback",
			status:      sync.IncrementalFullSyncRequired,
			marksSchema: true,
			wantKind:    sync.OutcomeConflictRequiresFullSync,
		},
		{
			name:        "basic check failed without fallback",
			status:      sync.IncrementalBasicCheckFailed,
			marksSchema: true,
			wantKind:    sync.OutcomeConflictRequiresFullSync,
		},
		{
			name:        "basic check failed falls back to download",
			status:      sync.IncrementalBasicCheckFailed,
			fallback:    sync.ResolutionFullDownload,
			marksSchema: true,
			setup: func(h *harness) {
				gomock.InOrder(
					h.full.EXPECT().Download(gomock.Any(), h.col, gomock.Any()).Return(sync.DownloadResult{Touched: true}, nil),
					h.col.EXPECT().Reopen(gomock.Any()).Return(nil),
					h.col.EXPECT().MarkScheduleUnadjusted(gomock.Any()).Return(nil),
				)
			},
			wantKind:       sync.OutcomeSuccess,
			wantChanged:    true,
			wantResolution: sync.ResolutionFullDownload,
		},
		{
			name:        "schema mismatch falls back to upload",
			status:      sync.IncrementalFullSyncRequired,
			fallback:    sync.ResolutionFullUpload,
			marksSchema: true,
			setup: func(h *harness) {
				gomock.InOrder(
					h.full.EXPECT().Upload(gomock.Any(), h.col, gomock.Any()).Return(sync.UploadResult{Status: "OK"}, nil),
					h.col.EXPECT().Reopen(gomock.Any()).Return(nil),
				)
			},
			wantKind:       sync.OutcomeSuccess,
			wantChanged:    true,
			wantResolution: sync.ResolutionFullUpload,
		},
		{
			name:     "network error never falls back",
			err:      transport.Classify("meta", syscall.ECONNRESET),
			fallback: sync.ResolutionFullDownload,
			wantKind: sync.OutcomeNetworkError,
		},
		{
			name:       "clock off",
			err:        sync.Rejected(0, sync.ReasonClockOff, "clock is off by 600 seconds"),
			wantKind:   sync.OutcomeServerRejected,
			wantReason: sync.ReasonClockOff,
		},
		{
			name:       "server abort",
			err:        sync.Rejected(0, sync.ReasonServerAbort, "maintenance"),
			wantKind:   sync.OutcomeServerRejected,
			wantReason: sync.ReasonServerAbort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			h.expectCollection()
			h.allowClearUndo()
			h.inc.EXPECT().Sync(gomock.Any(), h.col, gomock.Any()).
				Return(sync.IncrementalResult{Status: tt.status}, tt.err)
			if tt.marksSchema {
				gomock.InOrder(
					h.col.EXPECT().ModSchemaNoCheck(gomock.Any()).Return(nil),
					h.col.EXPECT().Save(gomock.Any()).Return(nil),
				)
			}
			if tt.setup != nil {
				tt.setup(h)
			}

			req := syncRequest()
			req.FallbackResolution = tt.fallback
			out, _ := run(t, h.orchestrator(), req)

			assert.Equal(t, tt.wantKind, out.Kind)
			assert.Equal(t, tt.wantReason, out.Reason)
			assert.Equal(t, tt.wantChanged, out.ChangedCollection)
			assert.Equal(t, tt.wantResolution, out.Resolution)
		})
	}
}

func TestOrchestrator_FullSyncMarkerNotSaved(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.expectCollection()
	h.inc.EXPECT().Sync(gomock.Any(), h.col, gomock.Any()).
		Return(sync.IncrementalResult{Status: sync.IncrementalFullSyncRequired}, nil)
	h.col.EXPECT().ModSchemaNoCheck(gomock.Any()).Return(nil)
	h.col.EXPECT().Save(gomock.Any()).Return(errors.New("disk I/O error"))
	h.reporter.EXPECT().Report(gomock.Any(), gomock.Any(), "sync")

	req := syncRequest()
	req.FallbackResolution = sync.ResolutionFullDownload
	out, _ := run(t, h.orchestrator(), req)
	assert.Equal(t, sync.OutcomeUnknownFailure, out.Kind)
	assert.Contains(t, out.Detail, "full sync")
}

func TestOrchestrator_ServerMessageIsKept(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.expectCollection()
	h.allowClearUndo()
	h.inc.EXPECT().Sync(gomock.Any(), h.col, gomock.Any()).
		Return(sync.IncrementalResult{Status: sync.IncrementalNoChanges, ServerMessage: "upgrade soon"}, nil)

	out, _ := run(t, h.orchestrator(), syncRequest())
	assert.Equal(t, sync.OutcomeNoChanges, out.Kind)
	assert.Equal(t, "upgrade soon", out.ServerMessage)
	assert.Contains(t, out.UserMessage(), "upgrade soon")
}

func TestOrchestrator_SanityFailureInvalidatesSchema(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.expectCollection()
	h.inc.EXPECT().Sync(gomock.Any(), h.col, gomock.Any()).
		Return(sync.IncrementalResult{Status: sync.IncrementalSanityCheckFailed}, nil)
	gomock.InOrder(
		h.col.EXPECT().ModSchemaNoCheck(gomock.Any()).Return(nil),
		h.col.EXPECT().Save(gomock.Any()).Return(nil),
	)

	persistence := status.NewFileStatusPersistence(t.TempDir())
	o := h.orchestrator(orchestrator.WithStatusRecorder(orchestrator.NewFileStatusRecorder(persistence, "default")))

	out, _ := run(t, o, syncRequest())
	assert.Equal(t, sync.OutcomeSchemaInvalidated, out.Kind)

	st, err := persistence.LoadStatus(context.Background(), "default")
	require.NoError(t, err)
	assert.True(t, st.FullSyncRequired)
	assert.Equal(t, status.SyncPhaseFailed, st.Phase)
	assert.Equal(t, sync.OutcomeSchemaInvalidated.String(), st.LastOutcome)
}

func TestOrchestrator_SchemaMarkerSurvivesReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "collection.db")
	created := time.UnixMilli(1_700_000_000_000)
	later := created.Add(time.Hour)

	col, err := collection.Open(ctx, path, collection.WithClock(func() time.Time { return created }))
	require.NoError(t, err)
	require.NoError(t, col.Close(ctx, true))

	h := newHarness(t)
	h.inc.EXPECT().Sync(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(sync.IncrementalResult{Status: sync.IncrementalSanityCheckFailed}, nil)

	o := orchestrator.New(orchestrator.Dependencies{
		Incremental: h.inc,
		Full:        h.full,
		Collections: collection.NewFileProvider(path, collection.WithClock(func() time.Time { return later })),
	}, orchestrator.WithReporter(h.reporter))

	out, _ := run(t, o, syncRequest())
	require.Equal(t, sync.OutcomeSchemaInvalidated, out.Kind)

	reopened, err := collection.Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close(ctx, false) })
	meta, err := reopened.Store().Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, later.UnixMilli(), meta.SchemaMod)
	assert.False(t, reopened.IsLocked())
}

func TestOrchestrator_SchemaMismatchMarkerSurvivesReopen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status sync.IncrementalStatus
	}{
		{name: "schema mismatch", status: sync.IncrementalFullSyncRequired},
		{name: "basic check failed", status: sync.IncrementalBasicCheckFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "collection.db")
			created := time.UnixMilli(1_700_000_000_000)
			later := created.Add(time.Hour)

			col, err := collection.Open(ctx, path, collection.WithClock(func() time.Time { return created }))
			require.NoError(t, err)
			require.NoError(t, col.Close(ctx, true))

			h := newHarness(t)
			h.inc.EXPECT().Sync(gomock.Any(), gomock.Any(), gomock.Any()).
				Return(sync.IncrementalResult{Status: tt.status}, nil)

			o := orchestrator.New(orchestrator.Dependencies{
				Incremental: h.inc,
				Full:        h.full,
				Collections: collection.NewFileProvider(path, collection.WithClock(func() time.Time { return later })),
			}, orchestrator.WithReporter(h.reporter))

			out, _ := run(t, o, syncRequest())
			require.Equal(t, sync.OutcomeConflictRequiresFullSync, out.Kind)

			reopened, err := collection.Open(ctx, path)
			require.NoError(t, err)
			t.Cleanup(func() { _ = reopened.Close(ctx, false) })
			meta, err := reopened.Store().Meta(ctx)
			require.NoError(t, err)
			assert.Equal(t, later.UnixMilli(), meta.SchemaMod)
		})
	}
}

func TestOrchestrator_FullSync(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		resolution sync.ConflictResolution
		setup      func(h *harness)
		reported   bool
		wantKind   sync.OutcomeKind
		wantReason string
	}{
		{
			name:       "upload rejected",
			resolution: sync.ResolutionFullUpload,
			setup: func(h *harness) {
				h.full.EXPECT().Upload(gomock.Any(), h.col, gomock.Any()).Return(sync.UploadResult{Status: "collection too large"}, nil)
				h.col.EXPECT().Reopen(gomock.Any()).Return(nil)
			},
			wantKind:   sync.OutcomeServerRejected,
			wantReason: sync.ReasonUploadRejected,
		},
		{
			name:       "upload out of space",
			resolution: sync.ResolutionFullUpload,
			setup: func(h *harness) {
				h.full.EXPECT().Upload(gomock.Any(), h.col, gomock.Any()).
					Return(sync.UploadResult{}, fmt.Errorf("writing upload: %w", syscall.ENOSPC))
				h.col.EXPECT().Reopen(gomock.Any()).Return(nil)
			},
			reported: true,
			wantKind: sync.OutcomeOutOfMemory,
		},
		{
			name:       "download failed before touching local data",
			resolution: sync.ResolutionFullDownload,
			setup: func(h *harness) {
				h.full.EXPECT().Download(gomock.Any(), h.col, gomock.Any()).
					Return(sync.DownloadResult{}, sync.Rejected(0, sync.ReasonRemoteCorrupt, "remote collection is corrupt"))
			},
			wantKind:   sync.OutcomeServerRejected,
			wantReason: sync.ReasonRemoteCorrupt,
		},
		{
			name:       "download failed after touching local data",
			resolution: sync.ResolutionFullDownload,
			setup: func(h *harness) {
				h.full.EXPECT().Download(gomock.Any(), h.col, gomock.Any()).
					Return(sync.DownloadResult{Touched: true}, errors.New("rename failed"))
				h.col.EXPECT().Reopen(gomock.Any()).Return(nil)
			},
			reported: true,
			wantKind: sync.OutcomeUnknownFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			h.expectCollection()
			tt.setup(h)
			if tt.reported {
				h.reporter.EXPECT().Report(gomock.Any(), gomock.Any(), "sync")
			}

			req := syncRequest()
			req.ConflictResolution = tt.resolution
			out, _ := run(t, h.orchestrator(), req)

			assert.Equal(t, tt.wantKind, out.Kind)
			assert.Equal(t, tt.wantReason, out.Reason)
			assert.Equal(t, tt.resolution, out.Resolution)
		})
	}
}

func TestOrchestrator_UnavailableCollection(t *testing.T) {
	t.Parallel()

	t.Run("corrupt collection is replaced by a requested download", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		h.provider.EXPECT().Open(gomock.Any()).Return(h.col, errors.New("file is not a database"))
		h.col.EXPECT().Lock(gomock.Any()).Return(nil)
		h.col.EXPECT().Unlock().Return(nil)
		h.col.EXPECT().Close(gomock.Any(), false).Return(nil)
		h.allowClearUndo()
		gomock.InOrder(
			h.full.EXPECT().Download(gomock.Any(), h.col, gomock.Any()).Return(sync.DownloadResult{Touched: true}, nil),
			h.col.EXPECT().Reopen(gomock.Any()).Return(nil),
			h.col.EXPECT().MarkScheduleUnadjusted(gomock.Any()).Return(nil),
		)

		req := syncRequest()
		req.ConflictResolution = sync.ResolutionFullDownload
		out, _ := run(t, h.orchestrator(), req)
		assert.Equal(t, sync.OutcomeSuccess, out.Kind)
	})

	t.Run("corrupt collection without download", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		h.provider.EXPECT().Open(gomock.Any()).Return(h.col, errors.New("file is not a database"))
		h.col.EXPECT().Close(gomock.Any(), false).Return(nil)
		h.reporter.EXPECT().Report(gomock.Any(), gomock.Any(), "sync")

		out, _ := run(t, h.orchestrator(), syncRequest())
		assert.Equal(t, sync.OutcomeUnknownFailure, out.Kind)
		assert.ErrorIs(t, out.Err, sync.ErrCollectionUnavailable)
	})

	t.Run("background task still running", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		tasks := mocks.NewMockTaskWaiter(h.ctrl)
		tasks.EXPECT().WaitToFinish(gomock.Any(), 20*time.Millisecond).Return(false)
		h.expectCollection()
		h.allowClearUndo()
		h.inc.EXPECT().Sync(gomock.Any(), h.col, gomock.Any()).
			Return(sync.IncrementalResult{Status: sync.IncrementalSuccess}, nil)

		o := h.orchestrator(
			orchestrator.WithTaskWaiter(tasks),
			orchestrator.WithPriorTaskTimeout(20*time.Millisecond),
		)
		out, rec := run(t, o, syncRequest())
		assert.Equal(t, sync.OutcomeSuccess, out.Kind)
		assert.Contains(t, rec.snapshot(), "progress:"+string(sync.PhaseAwaitingPriorTask))
	})

	t.Run("collection fails to open after background task timeout", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		tasks := mocks.NewMockTaskWaiter(h.ctrl)
		tasks.EXPECT().WaitToFinish(gomock.Any(), 20*time.Millisecond).Return(false)
		h.provider.EXPECT().Open(gomock.Any()).Return(nil, errors.New("database disk image is malformed"))
		h.reporter.EXPECT().Report(gomock.Any(), gomock.Any(), "sync")

		o := h.orchestrator(
			orchestrator.WithTaskWaiter(tasks),
			orchestrator.WithPriorTaskTimeout(20*time.Millisecond),
		)
		out, _ := run(t, o, syncRequest())
		assert.Equal(t, sync.OutcomeUnknownFailure, out.Kind)
		assert.Contains(t, out.Detail, "background task")
		assert.ErrorIs(t, out.Err, sync.ErrCollectionUnavailable)
		assert.ErrorIs(t, out.Err, orchestrator.ErrPriorTaskTimeout)
	})

	t.Run("lock held elsewhere", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		h.provider.EXPECT().Open(gomock.Any()).Return(h.col, nil)
		h.col.EXPECT().Lock(gomock.Any()).Return(collection.ErrLocked)
		h.col.EXPECT().Close(gomock.Any(), false).Return(nil)
		h.reporter.EXPECT().Report(gomock.Any(), gomock.Any(), "sync")

		out, _ := run(t, h.orchestrator(), syncRequest())
		assert.Equal(t, sync.OutcomeUnknownFailure, out.Kind)
		assert.ErrorIs(t, out.Err, collection.ErrLocked)
	})
}

func TestOrchestrator_Cancellation(t *testing.T) {
	t.Parallel()

	t.Run("cancel during incremental", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		h.expectCollection()
		var o *orchestrator.Orchestrator
		h.inc.EXPECT().Sync(gomock.Any(), h.col, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ collection.Collection, sess sync.Session) (sync.IncrementalResult, error) {
				assert.True(t, o.IsCancellable())
				assert.True(t, o.Cancel())
				return sync.IncrementalResult{}, sess.Checkpoint()
			})

		o = h.orchestrator()
		out, _ := run(t, o, syncRequest())
		assert.Equal(t, sync.OutcomeUserCancelled, out.Kind)
	})

	t.Run("cancel before fallback full sync", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		h.expectCollection()
		var o *orchestrator.Orchestrator
		h.inc.EXPECT().Sync(gomock.Any(), h.col, gomock.Any()).
			DoAndReturn(func(context.Context, collection.Collection, sync.Session) (sync.IncrementalResult, error) {
				assert.True(t, o.Cancel())
				return sync.IncrementalResult{Status: sync.IncrementalFullSyncRequired}, nil
			})
		h.col.EXPECT().ModSchemaNoCheck(gomock.Any()).Return(nil)
		h.col.EXPECT().Save(gomock.Any()).Return(nil)

		o = h.orchestrator()
		req := syncRequest()
		req.FallbackResolution = sync.ResolutionFullDownload
		out, _ := run(t, o, req)
		assert.Equal(t, sync.OutcomeUserCancelled, out.Kind)
	})

	t.Run("cancel ignored during full sync", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		h.expectCollection()
		h.allowClearUndo()
		var o *orchestrator.Orchestrator
		h.full.EXPECT().Download(gomock.Any(), h.col, gomock.Any()).
			DoAndReturn(func(ctx context.Context, _ collection.Collection, sess sync.Session) (sync.DownloadResult, error) {
				assert.False(t, o.IsCancellable())
				assert.False(t, o.Cancel())
				assert.False(t, sess.Cancelled())
				assert.NoError(t, ctx.Err())
				return sync.DownloadResult{Touched: true}, nil
			})
		h.col.EXPECT().Reopen(gomock.Any()).Return(nil)
		h.col.EXPECT().MarkScheduleUnadjusted(gomock.Any()).Return(nil)

		o = h.orchestrator()
		req := syncRequest()
		req.ConflictResolution = sync.ResolutionFullDownload

		// Cancelling the caller's context must not reach the full sync either
		ctx, cancel := context.WithCancel(context.Background())
		rec := &recorder{}
		job, err := o.Sync(ctx, req, rec)
		require.NoError(t, err)
		cancel()

		out := wait(t, job)
		assert.Equal(t, sync.OutcomeSuccess, out.Kind)
		assert.Equal(t, "finish", rec.terminal(t))
	})

	t.Run("cancel during media keeps counts", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		h.expectCollection()
		h.allowClearUndo()
		h.inc.EXPECT().Sync(gomock.Any(), h.col, gomock.Any()).
			Return(sync.IncrementalResult{Status: sync.IncrementalSuccess}, nil)
		var o *orchestrator.Orchestrator
		h.media.EXPECT().Sync(gomock.Any(), h.col, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ collection.Collection, sess sync.Session) (sync.MediaResult, error) {
				assert.True(t, o.Cancel())
				return sync.MediaResult{Uploaded: 1}, sess.Checkpoint()
			})

		o = h.orchestrator()
		req := syncRequest()
		req.SyncMedia = true
		out, _ := run(t, o, req)
		assert.Equal(t, sync.OutcomeUserCancelled, out.Kind)
		require.NotNil(t, out.Media)
		assert.Equal(t, 1, out.Media.Uploaded)
	})

	t.Run("cancel before the job body starts", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		tasks := mocks.NewMockTaskWaiter(h.ctrl)
		release := make(chan struct{})
		tasks.EXPECT().WaitToFinish(gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, time.Duration) bool {
				<-release
				return true
			})

		o := h.orchestrator(orchestrator.WithTaskWaiter(tasks))
		rec := &recorder{}
		job, err := o.Sync(context.Background(), syncRequest(), rec)
		require.NoError(t, err)

		assert.True(t, o.IsCancellable())
		assert.True(t, o.Cancel())
		close(release)

		out := wait(t, job)
		assert.Equal(t, sync.OutcomeUserCancelled, out.Kind)
		assert.Equal(t, "finish", rec.terminal(t))
	})

	t.Run("cancel reaches the executing job and its successor", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		h.expectCollection()
		entered := make(chan struct{})
		proceed := make(chan struct{})
		h.inc.EXPECT().Sync(gomock.Any(), h.col, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ collection.Collection, sess sync.Session) (sync.IncrementalResult, error) {
				close(entered)
				<-proceed
				return sync.IncrementalResult{Status: sync.IncrementalSuccess}, sess.Checkpoint()
			})

		o := h.orchestrator()
		first, err := o.Sync(context.Background(), syncRequest(), &recorder{})
		require.NoError(t, err)
		select {
		case <-entered:
		case <-time.After(5 * time.Second):
			t.Fatal("first job never reached the incremental sync")
		}

		second, err := o.Sync(context.Background(), syncRequest(), &recorder{})
		require.NoError(t, err)
		assert.Equal(t, first.ID(), second.PredecessorID())
		assert.Same(t, second, o.Current())

		assert.True(t, o.Cancel())
		close(proceed)

		assert.Equal(t, sync.OutcomeUserCancelled, wait(t, first).Kind)
		assert.Equal(t, sync.OutcomeUserCancelled, wait(t, second).Kind)
	})

	t.Run("cancel without a job", func(t *testing.T) {
		t.Parallel()

		o := newHarness(t).orchestrator()
		assert.False(t, o.Cancel())
		assert.False(t, o.IsCancellable())
	})
}

func TestOrchestrator_Media(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		incremental sync.IncrementalStatus
		result      sync.MediaResult
		err         error
		reported    bool
		wantKind    sync.OutcomeKind
		wantReason  string
		wantWarning bool
	}{
		{
			name:        "files transferred",
			incremental: sync.IncrementalNoChanges,
			result:      sync.MediaResult{Outcome: sync.MediaSuccess, Uploaded: 2, Downloaded: 3},
			wantKind:    sync.OutcomeSuccess,
		},
		{
			name:        "nothing to do anywhere",
			incremental: sync.IncrementalNoChanges,
			result:      sync.MediaResult{Outcome: sync.MediaNoChanges},
			wantKind:    sync.OutcomeNoChanges,
		},
		{
			name:        "collection changed but media did not",
			incremental: sync.IncrementalSuccess,
			result:      sync.MediaResult{Outcome: sync.MediaNoChanges},
			wantKind:    sync.OutcomeSuccess,
		},
		{
			name:        "corrupt media database",
			incremental: sync.IncrementalNoChanges,
			result:      sync.MediaResult{Outcome: sync.MediaCorrupt},
			wantKind:    sync.OutcomeNoChanges,
			wantWarning: true,
		},
		{
			name:        "media sanity check failed",
			incremental: sync.IncrementalSuccess,
			result:      sync.MediaResult{Outcome: sync.MediaSanityCheckFailed, Downloaded: 1},
			wantKind:    sync.OutcomeSuccess,
			wantWarning: true,
		},
		{
			name:        "network error keeps counts",
			incremental: sync.IncrementalSuccess,
			result:      sync.MediaResult{Outcome: sync.MediaNetworkError, Uploaded: 1, Downloaded: 2},
			err:         transport.Classify("uploadChanges", syscall.ECONNRESET),
			wantKind:    sync.OutcomeNetworkError,
		},
		{
			name:        "media server error",
			incremental: sync.IncrementalSuccess,
			err:         transport.NewHTTPError(500, "https://sync.example/msync/begin", "internal error"),
			reported:    true,
			wantKind:    sync.OutcomeServerRejected,
			wantReason:  sync.ReasonMediaServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			h.expectCollection()
			h.allowClearUndo()
			h.inc.EXPECT().Sync(gomock.Any(), h.col, gomock.Any()).
				Return(sync.IncrementalResult{Status: tt.incremental}, nil)
			h.media.EXPECT().Sync(gomock.Any(), h.col, gomock.Any()).Return(tt.result, tt.err)
			if tt.reported {
				h.reporter.EXPECT().Report(gomock.Any(), gomock.Any(), "sync")
			}

			req := syncRequest()
			req.SyncMedia = true
			out, rec := run(t, h.orchestrator(), req)

			assert.Equal(t, tt.wantKind, out.Kind)
			assert.Equal(t, tt.wantReason, out.Reason)
			assert.Equal(t, tt.wantWarning, out.MediaWarning != "")
			require.NotNil(t, out.Media)
			assert.Equal(t, tt.result.Uploaded, out.Media.Uploaded)
			assert.Equal(t, tt.result.Downloaded, out.Media.Downloaded)
			assert.Contains(t, rec.snapshot(), "progress:"+string(sync.PhaseMedia))
		})
	}
}

func TestOrchestrator_NoChangesIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.provider.EXPECT().Open(gomock.Any()).Return(h.col, nil).Times(2)
	h.col.EXPECT().Lock(gomock.Any()).Return(nil).Times(2)
	h.col.EXPECT().Unlock().Return(nil).Times(2)
	h.col.EXPECT().Close(gomock.Any(), false).Return(nil).Times(2)
	h.allowClearUndo()
	h.inc.EXPECT().Sync(gomock.Any(), h.col, gomock.Any()).
		Return(sync.IncrementalResult{Status: sync.IncrementalNoChanges}, nil).Times(2)

	o := h.orchestrator()
	for range 2 {
		out, _ := run(t, o, syncRequest())
		assert.Equal(t, sync.OutcomeNoChanges, out.Kind)
		assert.False(t, out.ChangedCollection)
	}
}

func TestOrchestrator_Offline(t *testing.T) {
	t.Parallel()

	t.Run("disconnected is the only callback", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		monitor := mocks.NewMockNetworkMonitor(h.ctrl)
		monitor.EXPECT().Online(gomock.Any()).Return(false)
		o := h.orchestrator(orchestrator.WithNetworkMonitor(monitor))

		rec := &recorder{}
		job, err := o.Sync(context.Background(), syncRequest(), rec)
		require.NoError(t, err)

		out, done := job.Outcome()
		require.True(t, done)
		assert.Equal(t, sync.OutcomeNetworkError, out.Kind)
		assert.Equal(t, sync.ReasonNoNetwork, out.Reason)
		assert.Equal(t, []string{"disconnected"}, rec.snapshot())
		assert.Nil(t, o.Current())
	})

	t.Run("allow offline skips the check", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		monitor := mocks.NewMockNetworkMonitor(h.ctrl)
		h.expectCollection()
		h.allowClearUndo()
		h.inc.EXPECT().Sync(gomock.Any(), h.col, gomock.Any()).
			Return(sync.IncrementalResult{Status: sync.IncrementalNoChanges}, nil)

		req := syncRequest()
		req.AllowOffline = true
		out, _ := run(t, h.orchestrator(orchestrator.WithNetworkMonitor(monitor)), req)
		assert.Equal(t, sync.OutcomeNoChanges, out.Kind)
	})
}

func TestOrchestrator_PanicReleasesLeaseAndLock(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	lock := mocks.NewMockWakeLock(h.ctrl)
	gomock.InOrder(
		lock.EXPECT().Acquire().Return(nil),
		lock.EXPECT().Release().Return(nil),
	)
	h.expectCollection()
	h.inc.EXPECT().Sync(gomock.Any(), h.col, gomock.Any()).
		DoAndReturn(func(context.Context, collection.Collection, sync.Session) (sync.IncrementalResult, error) {
			panic("driver bug")
		})
	h.reporter.EXPECT().Report(gomock.Any(), gomock.Any(), "sync").
		Do(func(_ context.Context, err error, _ string) {
			assert.Contains(t, err.Error(), "driver bug")
		})

	out, _ := run(t, h.orchestrator(orchestrator.WithWakeLock(lock)), syncRequest())
	assert.Equal(t, sync.OutcomeUnknownFailure, out.Kind)
	assert.Equal(t, "unexpected failure", out.Detail)
}

func TestOrchestrator_OneJobAtATime(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	lock := mocks.NewMockWakeLock(h.ctrl)
	lock.EXPECT().Acquire().Return(nil).Times(2)
	lock.EXPECT().Release().Return(nil).Times(2)
	h.provider.EXPECT().Open(gomock.Any()).Return(h.col, nil).Times(2)
	h.col.EXPECT().Lock(gomock.Any()).Return(nil).Times(2)
	h.col.EXPECT().Unlock().Return(nil).Times(2)
	h.col.EXPECT().Close(gomock.Any(), false).Return(nil).Times(2)
	h.allowClearUndo()

	release := make(chan struct{})
	entered := make(chan struct{})
	gomock.InOrder(
		h.inc.EXPECT().Sync(gomock.Any(), h.col, gomock.Any()).
			DoAndReturn(func(context.Context, collection.Collection, sync.Session) (sync.IncrementalResult, error) {
				close(entered)
				<-release
				return sync.IncrementalResult{Status: sync.IncrementalSuccess}, nil
			}),
		h.inc.EXPECT().Sync(gomock.Any(), h.col, gomock.Any()).
			Return(sync.IncrementalResult{Status: sync.IncrementalNoChanges}, nil),
	)

	var (
		mu    stdsync.Mutex
		order []string
	)
	logged := func(name string) orchestrator.ListenerFuncs {
		add := func(e string) {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name+":"+e)
		}
		return orchestrator.ListenerFuncs{
			Start:  func() { add("start") },
			Finish: func(sync.Outcome) { add("finish") },
		}
	}

	o := h.orchestrator(orchestrator.WithWakeLock(lock))
	first, err := o.Sync(context.Background(), syncRequest(), logged("first"))
	require.NoError(t, err)
	<-entered

	second, err := o.Sync(context.Background(), syncRequest(), logged("second"))
	require.NoError(t, err)
	assert.Equal(t, first.ID(), second.PredecessorID())
	assert.Same(t, second, o.Current())

	assert.Never(t, func() bool {
		_, done := second.Outcome()
		return done
	}, 100*time.Millisecond, 10*time.Millisecond)

	close(release)
	assert.Equal(t, sync.OutcomeSuccess, wait(t, first).Kind)
	assert.Equal(t, sync.OutcomeNoChanges, wait(t, second).Kind)
	assert.Nil(t, o.Current())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first:start", "first:finish", "second:start", "second:finish"}, order)
}

func TestOrchestrator_PredecessorTimeout(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := telemetry.NewSyncMetrics(mp)
	require.NoError(t, err)

	h := newHarness(t)
	lock := mocks.NewMockWakeLock(h.ctrl)
	// The successor takes over the lease; the superseded job must not release it
	lock.EXPECT().Acquire().Return(nil).Times(1)
	lock.EXPECT().Release().Return(nil).Times(1)
	h.provider.EXPECT().Open(gomock.Any()).Return(h.col, nil).Times(2)
	h.col.EXPECT().Lock(gomock.Any()).Return(nil).Times(2)
	h.col.EXPECT().Unlock().Return(nil).Times(2)
	h.col.EXPECT().Close(gomock.Any(), false).Return(nil).Times(2)
	h.allowClearUndo()

	release := make(chan struct{})
	entered := make(chan struct{})
	gomock.InOrder(
		h.inc.EXPECT().Sync(gomock.Any(), h.col, gomock.Any()).
			DoAndReturn(func(context.Context, collection.Collection, sync.Session) (sync.IncrementalResult, error) {
				close(entered)
				<-release
				return sync.IncrementalResult{Status: sync.IncrementalSuccess}, nil
			}),
		h.inc.EXPECT().Sync(gomock.Any(), h.col, gomock.Any()).
			Return(sync.IncrementalResult{Status: sync.IncrementalNoChanges}, nil),
	)

	o := h.orchestrator(
		orchestrator.WithWakeLock(lock),
		orchestrator.WithPredecessorTimeout(50*time.Millisecond),
		orchestrator.WithSyncMetrics(metrics),
	)

	firstRec := &recorder{}
	first, err := o.Sync(context.Background(), syncRequest(), firstRec)
	require.NoError(t, err)
	<-entered

	second, err := o.Sync(context.Background(), syncRequest(), &recorder{})
	require.NoError(t, err)
	assert.Equal(t, sync.OutcomeNoChanges, wait(t, second).Kind)

	_, done := first.Outcome()
	assert.False(t, done, "superseded job still running")

	close(release)
	assert.Equal(t, sync.OutcomeSuccess, wait(t, first).Kind)
	assert.Equal(t, "finish", firstRec.terminal(t))
	assert.Nil(t, o.Current())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var superseded int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "colsync_superseded_jobs_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				superseded += dp.Value
			}
		}
	}
	assert.Equal(t, int64(1), superseded)
}

func TestOrchestrator_StatusRecorder(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.expectCollection()
	h.allowClearUndo()
	h.inc.EXPECT().Sync(gomock.Any(), h.col, gomock.Any()).
		Return(sync.IncrementalResult{Status: sync.IncrementalNoChanges}, nil)

	recorderMock := mocks.NewMockStatusRecorder(h.ctrl)
	gomock.InOrder(
		recorderMock.EXPECT().RecordStart(gomock.Any()).Return(nil),
		recorderMock.EXPECT().RecordOutcome(gomock.Any(), gomock.Cond(func(o sync.Outcome) bool {
			return o.Kind == sync.OutcomeNoChanges
		})).Return(errors.New("disk full")),
	)

	out, _ := run(t, h.orchestrator(orchestrator.WithStatusRecorder(recorderMock)), syncRequest())
	assert.Equal(t, sync.OutcomeNoChanges, out.Kind)
}

func TestOrchestrator_Shutdown(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.expectCollection()
	entered := make(chan struct{})
	h.inc.EXPECT().Sync(gomock.Any(), h.col, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ collection.Collection, sess sync.Session) (sync.IncrementalResult, error) {
			close(entered)
			for !sess.Cancelled() {
				time.Sleep(5 * time.Millisecond)
			}
			return sync.IncrementalResult{}, sess.Checkpoint()
		})

	o := h.orchestrator()
	job, err := o.Sync(context.Background(), syncRequest(), nil)
	require.NoError(t, err)
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, o.Shutdown(ctx))

	out, done := job.Outcome()
	require.True(t, done)
	assert.Equal(t, sync.OutcomeUserCancelled, out.Kind)

	_, err = o.Sync(context.Background(), syncRequest(), nil)
	assert.ErrorIs(t, err, orchestrator.ErrShuttingDown)
	_, err = o.Login(context.Background(), sync.Request{
		Kind:        sync.KindLogin,
		Credentials: sync.Credentials{Username: "alice", Password: "secret"},
	}, nil)
	assert.ErrorIs(t, err, orchestrator.ErrShuttingDown)
}
