package media_test

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/studykit/colsync/internal/collection"
	"github.com/studykit/colsync/internal/sync"
	"github.com/studykit/colsync/internal/sync/media"
	"github.com/studykit/colsync/internal/sync/remote"
	"github.com/studykit/colsync/internal/transport"
	"github.com/studykit/colsync/internal/transport/mocks"
)

// scriptedRemote answers media calls from handlers keyed by method
type scriptedRemote struct {
	t        *testing.T
	handlers map[string]func(req transport.Request) any
	calls    []string
}

func (s *scriptedRemote) exchange(_ context.Context, ep transport.Endpoint, req transport.Request) (*transport.Response, error) {
	s.calls = append(s.calls, ep.Method)
	h, ok := s.handlers[ep.Method]
	if !ok {
		s.t.Fatalf("unexpected call %s", ep.Method)
	}
	switch v := h(req).(type) {
	case error:
		return nil, v
	case []byte:
		return &transport.Response{StatusCode: http.StatusOK, Body: v}, nil
	default:
		body, err := json.Marshal(v)
		require.NoError(s.t, err)
		return &transport.Response{StatusCode: http.StatusOK, Body: body}, nil
	}
}

func (s *scriptedRemote) count(method string) int {
	n := 0
	for _, c := range s.calls {
		if c == method {
			n++
		}
	}
	return n
}

func newSyncer(t *testing.T, s *scriptedRemote, opts ...media.Option) *media.Syncer {
	ctrl := gomock.NewController(t)
	ex := mocks.NewMockExchanger(ctrl)
	ex.EXPECT().Exchange(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(s.exchange).AnyTimes()
	return media.New(ex, opts...)
}

func openCollection(t *testing.T) (*collection.SQLiteCollection, *collection.MediaDir) {
	t.Helper()
	col, err := collection.Open(context.Background(), filepath.Join(t.TempDir(), "collection.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = col.Close(context.Background(), false) })
	dir, ok := col.Media().(*collection.MediaDir)
	require.True(t, ok)
	return col, dir
}

func session() sync.Session {
	return sync.NewSession("key", sync.HostRoute{}, nil, nil)
}

func lastUSNOf(t *testing.T, req transport.Request) int {
	var in remote.MediaChangesRequest
	require.NoError(t, json.Unmarshal(req.Payload, &in))
	return in.LastUSN
}

func archive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	entries := make([]collection.ArchiveEntry, 0, len(files))
	for name, data := range files {
		entries = append(entries, collection.ArchiveEntry{Name: name, Data: []byte(data)})
	}
	out, err := collection.WriteArchive(entries)
	require.NoError(t, err)
	return out
}

func sanityOK(transport.Request) any {
	return remote.MediaSanityResponse{Status: remote.MediaSanityOK}
}

func TestSync_NoChanges(t *testing.T) {
	t.Parallel()

	col, _ := openCollection(t)
	s := &scriptedRemote{t: t, handlers: map[string]func(transport.Request) any{
		remote.MethodMediaBegin: func(transport.Request) any { return remote.MediaBeginResponse{USN: 0} },
	}}

	result, err := newSyncer(t, s).Sync(context.Background(), col, session())
	require.NoError(t, err)
	assert.Equal(t, sync.MediaNoChanges, result.Outcome)
	assert.Equal(t, []string{remote.MethodMediaBegin}, s.calls)

	needScan, err := col.Media().NeedScan(context.Background())
	require.NoError(t, err)
	assert.False(t, needScan)
}

func TestSync_DownloadsRemoteFiles(t *testing.T) {
	t.Parallel()

	col, dir := openCollection(t)
	files := map[string]string{"a.png": "alpha", "b.mp3": "bravo"}
	var progress []sync.Progress
	sess := sync.NewSession("key", sync.HostRoute{}, func(p sync.Progress) { progress = append(progress, p) }, nil)

	s := &scriptedRemote{t: t, handlers: map[string]func(transport.Request) any{
		remote.MethodMediaBegin: func(transport.Request) any { return remote.MediaBeginResponse{USN: 2} },
		remote.MethodMediaChanges: func(req transport.Request) any {
			if lastUSNOf(t, req) == 2 {
				return remote.MediaChangesResponse{}
			}
			return remote.MediaChangesResponse{Changes: []remote.MediaChange{
				{Name: "a.png", USN: 1, Checksum: collection.Checksum([]byte("alpha"))},
				{Name: "b.mp3", USN: 2, Checksum: collection.Checksum([]byte("bravo"))},
			}}
		},
		remote.MethodDownloadFiles: func(req transport.Request) any {
			var in remote.DownloadFilesRequest
			require.NoError(t, json.Unmarshal(req.Payload, &in))
			assert.ElementsMatch(t, []string{"a.png", "b.mp3"}, in.Files)
			return archive(t, files)
		},
		remote.MethodMediaSanity: sanityOK,
	}}

	result, err := newSyncer(t, s).Sync(context.Background(), col, sess)
	require.NoError(t, err)
	assert.Equal(t, sync.MediaSuccess, result.Outcome)
	assert.Equal(t, 2, result.Downloaded)
	assert.Zero(t, result.Uploaded)

	for name, want := range files {
		got, err := os.ReadFile(filepath.Join(dir.Dir(), name))
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
	usn, err := dir.LastUSN(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, usn)
	require.NotEmpty(t, progress)
	assert.Equal(t, sync.PhaseMedia, progress[len(progress)-1].Phase)
	assert.Equal(t, 2, progress[len(progress)-1].Downloaded)
}

func TestSync_DownloadsInBatches(t *testing.T) {
	t.Parallel()

	col, _ := openCollection(t)
	changes := []remote.MediaChange{}
	contents := map[string]string{}
	for _, name := range []string{"1.png", "2.png", "3.png", "4.png", "5.png"} {
		contents[name] = "data-" + name
		changes = append(changes, remote.MediaChange{
			Name: name, USN: len(changes) + 1, Checksum: collection.Checksum([]byte(contents[name])),
		})
	}

	s := &scriptedRemote{t: t, handlers: map[string]func(transport.Request) any{
		remote.MethodMediaBegin: func(transport.Request) any { return remote.MediaBeginResponse{USN: 5} },
		remote.MethodMediaChanges: func(req transport.Request) any {
			if lastUSNOf(t, req) == 5 {
				return remote.MediaChangesResponse{}
			}
			return remote.MediaChangesResponse{Changes: changes}
		},
		remote.MethodDownloadFiles: func(req transport.Request) any {
			var in remote.DownloadFilesRequest
			require.NoError(t, json.Unmarshal(req.Payload, &in))
			assert.LessOrEqual(t, len(in.Files), 2)
			batch := map[string]string{}
			for _, name := range in.Files {
				batch[name] = contents[name]
			}
			return archive(t, batch)
		},
		remote.MethodMediaSanity: sanityOK,
	}}

	result, err := newSyncer(t, s, media.WithZipCount(2)).Sync(context.Background(), col, session())
	require.NoError(t, err)
	assert.Equal(t, 5, result.Downloaded)
	assert.Equal(t, 3, s.count(remote.MethodDownloadFiles))
}

func TestSync_UploadsLocalChanges(t *testing.T) {
	t.Parallel()

	col, dir := openCollection(t)
	require.NoError(t, dir.AddFile(context.Background(), "c.png", []byte("charlie")))

	s := &scriptedRemote{t: t, handlers: map[string]func(transport.Request) any{
		remote.MethodMediaBegin:   func(transport.Request) any { return remote.MediaBeginResponse{USN: 0} },
		remote.MethodMediaChanges: func(transport.Request) any { return remote.MediaChangesResponse{} },
		remote.MethodUploadChanges: func(req transport.Request) any {
			assert.Equal(t, "application/zip", req.ContentType)
			entries, err := collection.ReadArchive(req.Payload)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, "c.png", entries[0].Name)
			assert.Equal(t, "charlie", string(entries[0].Data))
			return remote.UploadChangesResponse{Processed: 1, CurrentUSN: 1}
		},
		remote.MethodMediaSanity: func(req transport.Request) any {
			var in remote.MediaSanityRequest
			require.NoError(t, json.Unmarshal(req.Payload, &in))
			assert.Equal(t, 1, in.Local)
			return remote.MediaSanityResponse{Status: remote.MediaSanityOK}
		},
	}}

	result, err := newSyncer(t, s).Sync(context.Background(), col, session())
	require.NoError(t, err)
	assert.Equal(t, sync.MediaSuccess, result.Outcome)
	assert.Equal(t, 1, result.Uploaded)

	dirty, err := dir.DirtyCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, dirty)
	usn, err := dir.LastUSN(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, usn)
}

func TestSync_RemoteRemoval(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		dirty        bool
		wantPresent  bool
		wantUploaded int
	}{
		{name: "clean local file is deleted", dirty: false, wantPresent: false},
		{name: "dirty local file wins", dirty: true, wantPresent: true, wantUploaded: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			col, dir := openCollection(t)
			require.NoError(t, dir.AddFile(ctx, "d.png", []byte("delta")))
			require.NoError(t, dir.FindChanges(ctx))
			if !tt.dirty {
				require.NoError(t, dir.MarkClean(ctx, []string{"d.png"}))
			}

			s := &scriptedRemote{t: t, handlers: map[string]func(transport.Request) any{
				remote.MethodMediaBegin: func(transport.Request) any { return remote.MediaBeginResponse{USN: 3} },
				remote.MethodMediaChanges: func(req transport.Request) any {
					if lastUSNOf(t, req) == 3 {
						return remote.MediaChangesResponse{}
					}
					return remote.MediaChangesResponse{Changes: []remote.MediaChange{{Name: "d.png", USN: 3}}}
				},
				remote.MethodUploadChanges: func(transport.Request) any {
					return remote.UploadChangesResponse{Processed: 1, CurrentUSN: 4}
				},
				remote.MethodMediaSanity: sanityOK,
			}}

			result, err := newSyncer(t, s).Sync(ctx, col, session())
			require.NoError(t, err)
			assert.Equal(t, sync.MediaSuccess, result.Outcome)
			assert.Equal(t, tt.wantUploaded, result.Uploaded)

			_, statErr := os.Stat(filepath.Join(dir.Dir(), "d.png"))
			assert.Equal(t, tt.wantPresent, statErr == nil)
		})
	}
}

func TestSync_SanityFailureForcesResync(t *testing.T) {
	t.Parallel()

	col, dir := openCollection(t)
	require.NoError(t, dir.AddFile(context.Background(), "e.png", []byte("echo")))

	s := &scriptedRemote{t: t, handlers: map[string]func(transport.Request) any{
		remote.MethodMediaBegin:   func(transport.Request) any { return remote.MediaBeginResponse{USN: 0} },
		remote.MethodMediaChanges: func(transport.Request) any { return remote.MediaChangesResponse{} },
		remote.MethodUploadChanges: func(transport.Request) any {
			return remote.UploadChangesResponse{Processed: 1, CurrentUSN: 1}
		},
		remote.MethodMediaSanity: func(transport.Request) any {
			return remote.MediaSanityResponse{Status: remote.MediaSanityBad}
		},
	}}

	result, err := newSyncer(t, s).Sync(context.Background(), col, session())
	require.NoError(t, err)
	assert.Equal(t, sync.MediaSanityCheckFailed, result.Outcome)
	assert.Equal(t, remote.MediaSanityBad, result.Detail)

	needScan, err := dir.NeedScan(context.Background())
	require.NoError(t, err)
	assert.True(t, needScan)
}

func TestSync_NetworkErrorKeepsCounts(t *testing.T) {
	t.Parallel()

	col, dir := openCollection(t)
	require.NoError(t, dir.AddFile(context.Background(), "f.png", []byte("foxtrot")))

	s := &scriptedRemote{t: t, handlers: map[string]func(transport.Request) any{
		remote.MethodMediaBegin: func(transport.Request) any { return remote.MediaBeginResponse{USN: 1} },
		remote.MethodMediaChanges: func(req transport.Request) any {
			if lastUSNOf(t, req) == 1 {
				return remote.MediaChangesResponse{}
			}
			return remote.MediaChangesResponse{Changes: []remote.MediaChange{
				{Name: "g.png", USN: 1, Checksum: collection.Checksum([]byte("golf"))},
			}}
		},
		remote.MethodDownloadFiles: func(transport.Request) any {
			return archive(t, map[string]string{"g.png": "golf"})
		},
		remote.MethodUploadChanges: func(transport.Request) any {
			return transport.Classify(remote.MethodUploadChanges, syscall.ECONNRESET)
		},
	}}

	result, err := newSyncer(t, s).Sync(context.Background(), col, session())
	require.Error(t, err)
	assert.True(t, sync.IsTransient(err))
	assert.Equal(t, sync.MediaNetworkError, result.Outcome)
	assert.Equal(t, 1, result.Downloaded)
	assert.Zero(t, result.Uploaded)
}

func TestSync_CorruptMediaDatabase(t *testing.T) {
	t.Parallel()

	col, _ := openCollection(t)
	require.NoError(t, col.Close(context.Background(), false))

	s := &scriptedRemote{t: t, handlers: map[string]func(transport.Request) any{}}
	result, err := newSyncer(t, s).Sync(context.Background(), col, session())
	require.NoError(t, err)
	assert.Equal(t, sync.MediaCorrupt, result.Outcome)
	assert.Empty(t, s.calls)
}

func TestSync_Cancelled(t *testing.T) {
	t.Parallel()

	col, dir := openCollection(t)
	require.NoError(t, dir.AddFile(context.Background(), "h.png", []byte("hotel")))
	cancelled := false
	sess := sync.NewSession("key", sync.HostRoute{}, nil, func() bool { return cancelled })

	s := &scriptedRemote{t: t, handlers: map[string]func(transport.Request) any{
		remote.MethodMediaBegin: func(transport.Request) any {
			cancelled = true
			return remote.MediaBeginResponse{USN: 0}
		},
	}}

	_, err := newSyncer(t, s).Sync(context.Background(), col, sess)
	require.ErrorIs(t, err, sync.ErrUserCancelled)
	assert.Equal(t, []string{remote.MethodMediaBegin}, s.calls)

	dirty, err := dir.DirtyCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dirty)
}

func TestSync_RestartsAfterConcurrentUpdate(t *testing.T) {
	t.Parallel()

	col, dir := openCollection(t)
	require.NoError(t, dir.AddFile(context.Background(), "i.png", []byte("india")))
	otherSum := collection.Checksum([]byte("juliet"))

	begins := 0
	s := &scriptedRemote{t: t, handlers: map[string]func(transport.Request) any{
		remote.MethodMediaBegin: func(transport.Request) any {
			begins++
			if begins == 1 {
				return remote.MediaBeginResponse{USN: 0}
			}
			return remote.MediaBeginResponse{USN: 3}
		},
		remote.MethodMediaChanges: func(req transport.Request) any {
			if begins == 1 || lastUSNOf(t, req) == 3 {
				return remote.MediaChangesResponse{}
			}
			return remote.MediaChangesResponse{Changes: []remote.MediaChange{
				{Name: "j.png", USN: 1, Checksum: otherSum},
				{Name: "i.png", USN: 3, Checksum: collection.Checksum([]byte("india"))},
			}}
		},
		remote.MethodDownloadFiles: func(transport.Request) any {
			return archive(t, map[string]string{"j.png": "juliet"})
		},
		remote.MethodUploadChanges: func(transport.Request) any {
			return remote.UploadChangesResponse{Processed: 1, CurrentUSN: 3}
		},
		remote.MethodMediaSanity: sanityOK,
	}}

	result, err := newSyncer(t, s).Sync(context.Background(), col, session())
	require.NoError(t, err)
	assert.Equal(t, sync.MediaSuccess, result.Outcome)
	assert.Equal(t, 1, result.Uploaded)
	assert.Equal(t, 1, result.Downloaded)
	assert.Equal(t, 2, begins)

	usn, err := dir.LastUSN(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, usn)
}
