package full_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
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
	"github.com/studykit/colsync/internal/sync/full"
	"github.com/studykit/colsync/internal/sync/remote"
	"github.com/studykit/colsync/internal/transport"
	"github.com/studykit/colsync/internal/transport/mocks"
)

func openCollection(t *testing.T, dir string) *collection.SQLiteCollection {
	t.Helper()
	col, err := collection.Open(context.Background(), filepath.Join(dir, "collection.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = col.Close(context.Background(), false) })
	return col
}

// remoteFile builds a collection file holding one note and returns its bytes
func remoteFile(t *testing.T) []byte {
	t.Helper()
	ctx := context.Background()
	col := openCollection(t, t.TempDir())
	require.NoError(t, col.Put(ctx, collection.KindNote, 42, json.RawMessage(`{"f":"remote"}`)))
	require.NoError(t, col.Close(ctx, true))
	data, err := os.ReadFile(col.Path())
	require.NoError(t, err)
	return data
}

func session() sync.Session {
	return sync.NewSession("key", sync.HostRoute{}, nil, nil)
}

func TestUpload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		reply    string
		accepted bool
	}{
		{name: "accepted", reply: "OK", accepted: true},
		{name: "rejected", reply: "collection too large", accepted: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			col := openCollection(t, t.TempDir())
			require.NoError(t, col.Put(ctx, collection.KindNote, 1, json.RawMessage(`{}`)))

			ctrl := gomock.NewController(t)
			ex := mocks.NewMockExchanger(ctrl)
			var sent []byte
			ex.EXPECT().
				Exchange(gomock.Any(), transport.Endpoint{Service: transport.ServiceSync, Method: remote.MethodUpload}, gomock.Any()).
				DoAndReturn(func(_ context.Context, _ transport.Endpoint, req transport.Request) (*transport.Response, error) {
					sent = req.Payload
					return &transport.Response{StatusCode: http.StatusOK, Body: []byte(tt.reply)}, nil
				})

			result, err := full.New(ex).Upload(ctx, col, session())
			require.NoError(t, err)
			assert.Equal(t, tt.accepted, result.Accepted())
			assert.False(t, col.IsOpen(), "upload leaves the collection closed for the caller to reopen")

			onDisk, err := os.ReadFile(col.Path())
			require.NoError(t, err)
			assert.Equal(t, onDisk, sent)

			require.NoError(t, col.Reopen(ctx))
			meta, err := col.Store().Meta(ctx)
			require.NoError(t, err)
			assert.Zero(t, meta.USN)
			assert.Equal(t, meta.Mod, meta.LastSync)
			rec, ok, err := col.Get(ctx, collection.KindNote, 1)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Zero(t, rec.USN)
		})
	}
}

func TestDownload_ReplacesCollection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	col := openCollection(t, t.TempDir())
	require.NoError(t, col.Put(ctx, collection.KindNote, 1, json.RawMessage(`{"f":"local"}`)))
	data := remoteFile(t)

	ctrl := gomock.NewController(t)
	ex := mocks.NewMockExchanger(ctrl)
	ex.EXPECT().
		Exchange(gomock.Any(), transport.Endpoint{Service: transport.ServiceSync, Method: remote.MethodDownload}, gomock.Any()).
		Return(&transport.Response{StatusCode: http.StatusOK, Body: data}, nil)

	result, err := full.New(ex).Download(ctx, col, session())
	require.NoError(t, err)
	assert.True(t, result.Touched)

	require.NoError(t, col.Reopen(ctx))
	_, ok, err := col.Get(ctx, collection.KindNote, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	rec, ok, err := col.Get(ctx, collection.KindNote, 42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"f":"remote"}`, string(rec.Data))

	leftovers, err := filepath.Glob(col.Path() + ".download-*")
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestDownload_FailuresBeforeInstall(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		resp     *transport.Response
		err      error
		verifier func(context.Context, string) error
		kind     sync.OutcomeKind
		reason   string
	}{
		{
			name:   "corrupt payload",
			resp:   &transport.Response{StatusCode: http.StatusOK, Body: []byte("definitely not sqlite")},
			kind:   sync.OutcomeServerRejected,
			reason: sync.ReasonRemoteCorrupt,
		},
		{
			name: "verifier rejects",
			resp: &transport.Response{StatusCode: http.StatusOK, Body: []byte("x")},
			verifier: func(context.Context, string) error {
				return errors.New("missing header row")
			},
			kind:   sync.OutcomeServerRejected,
			reason: sync.ReasonRemoteCorrupt,
		},
		{
			name: "connection reset",
			err:  transport.Classify(remote.MethodDownload, syscall.ECONNRESET),
			kind: sync.OutcomeNetworkError,
		},
		{
			name: "response too large",
			err:  fmt.Errorf("download: %w", transport.ErrResponseTooLarge),
			kind: sync.OutcomeOutOfMemory,
		},
		{
			name:   "remote error status",
			resp:   &transport.Response{StatusCode: http.StatusServiceUnavailable, Body: []byte("maintenance")},
			kind:   sync.OutcomeServerRejected,
			reason: sync.ReasonHTTPStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			col := openCollection(t, t.TempDir())
			require.NoError(t, col.Put(ctx, collection.KindNote, 1, json.RawMessage(`{"f":"local"}`)))

			ctrl := gomock.NewController(t)
			ex := mocks.NewMockExchanger(ctrl)
			ex.EXPECT().Exchange(gomock.Any(), gomock.Any(), gomock.Any()).Return(tt.resp, tt.err)

			var opts []full.Option
			if tt.verifier != nil {
				opts = append(opts, full.WithVerifier(tt.verifier))
			}
			result, err := full.New(ex, opts...).Download(ctx, col, session())
			require.Error(t, err)
			assert.False(t, result.Touched)

			outcome := sync.Classify(err)
			assert.Equal(t, tt.kind, outcome.Kind)
			assert.Equal(t, tt.reason, outcome.Reason)

			require.True(t, col.IsOpen(), "local collection is untouched")
			_, ok, err := col.Get(ctx, collection.KindNote, 1)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}
