package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/studykit/colsync/internal/config"
	"github.com/studykit/colsync/internal/status"
	"github.com/studykit/colsync/internal/sync"
	"github.com/studykit/colsync/internal/syncserver"
	"github.com/studykit/colsync/internal/versions"
)

// The mock keyring is process-global; tests touching it do not run in parallel
func TestMain(m *testing.M) {
	keyring.MockInit()
	os.Exit(m.Run())
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "", "version", "--format", "json")
	require.NoError(t, err)

	var info versions.VersionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, versions.GetVersionInfo().GoVersion, info.GoVersion)

	out, err = execute(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "colsync "))
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, exitFailure, ExitCode(errors.New("boom")))
	assert.Equal(t, exitNetwork, ExitCode(&exitError{code: exitNetwork, err: errors.New("x")}))
}

func TestOutcomeError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		outcome  sync.Outcome
		wantCode int
	}{
		{
			name:     "conflict",
			outcome:  sync.Outcome{Kind: sync.OutcomeConflictRequiresFullSync},
			wantCode: exitConflict,
		},
		{
			name:     "schema invalidated",
			outcome:  sync.Outcome{Kind: sync.OutcomeSchemaInvalidated},
			wantCode: exitConflict,
		},
		{
			name:     "bad auth",
			outcome:  sync.ServerRejected(403, sync.ReasonBadAuth, ""),
			wantCode: exitAuth,
		},
		{
			name:     "other rejection",
			outcome:  sync.ServerRejected(500, sync.ReasonHTTPStatus, ""),
			wantCode: exitFailure,
		},
		{
			name:     "network",
			outcome:  sync.Outcome{Kind: sync.OutcomeNetworkError},
			wantCode: exitNetwork,
		},
		{
			name:     "cancelled",
			outcome:  sync.UserCancelled(),
			wantCode: exitFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := outcomeError(tt.outcome)
			assert.Equal(t, tt.wantCode, ExitCode(err))
			assert.Equal(t, tt.outcome.UserMessage(), err.Error())
		})
	}
}

func TestSyncOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		args         []string
		mediaDefault bool
		wantMedia    bool
		wantRes      sync.ConflictResolution
		wantAuto     bool
	}{
		{name: "defaults", mediaDefault: true, wantMedia: true},
		{name: "media flag overrides config", args: []string{"--media=false"}, mediaDefault: true},
		{name: "upload", args: []string{"--upload"}, wantRes: sync.ResolutionFullUpload},
		{name: "download", args: []string{"--download", "--auto"}, wantRes: sync.ResolutionFullDownload, wantAuto: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := newSyncCmd(&cli{})
			require.NoError(t, cmd.ParseFlags(tt.args))
			opts, err := syncOptions(cmd, tt.mediaDefault)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMedia, opts.Media)
			assert.Equal(t, tt.wantRes, opts.Resolution)
			assert.Equal(t, tt.wantAuto, opts.Automatic)
		})
	}
}

func TestSyncCmd_UploadAndDownloadExclusive(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "", "--data-dir", t.TempDir(), "sync", "--upload", "--download")
	require.Error(t, err)
}

func TestPrintStatus(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, printStatus(&buf, "work", &status.SyncStatus{}))
	assert.Contains(t, buf.String(), "never been synced")

	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	buf.Reset()
	require.NoError(t, printStatus(&buf, "work", &status.SyncStatus{
		Phase:            status.SyncPhaseFailed,
		LastOutcome:      "conflict-requires-full-sync",
		Message:          "cannot be merged",
		LastSyncTime:     &last,
		AttemptCount:     2,
		FullSyncRequired: true,
	}))
	out := buf.String()
	assert.Contains(t, out, "Phase:     Failed")
	assert.Contains(t, out, "2026-03-01T12:00:00Z")
	assert.Contains(t, out, "Attempts:  2")
	assert.Contains(t, out, "--upload or --download")
}

func TestCommands_EndToEnd(t *testing.T) {
	srv := syncserver.New(t.TempDir(), syncserver.WithUsers(map[string]string{"alice": "secret"}))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		assert.NoError(t, srv.Close(context.Background()))
	})

	dataDir := t.TempDir()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`profile: e2e
server:
  endpoint: `+ts.URL+`/
sync:
  allowOffline: true
`), 0600))
	base := []string{"--config", configPath, "--data-dir", dataDir}
	run := func(stdin string, args ...string) (string, error) {
		return execute(t, stdin, append(append([]string{}, base...), args...)...)
	}

	_, err := run("", "sync")
	require.Error(t, err)
	assert.Equal(t, exitAuth, ExitCode(err))

	_, err = run("", "watch", "--poll", "1h")
	require.Error(t, err)
	assert.Equal(t, exitAuth, ExitCode(err))

	_, err = run("wrong\n", "login", "-u", "alice", "--password-stdin")
	require.Error(t, err)
	assert.Equal(t, exitAuth, ExitCode(err))

	out, err := run("secret\n", "login", "-u", "alice", "--password-stdin")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as alice")

	// Fresh collections on both sides cannot be merged
	_, err = run("", "sync")
	require.Error(t, err)
	assert.Equal(t, exitConflict, ExitCode(err))

	out, err = run("", "sync", "--upload")
	require.NoError(t, err)
	assert.Contains(t, out, "Sync complete")

	out, err = run("", "sync", "--media")
	require.NoError(t, err)
	assert.Contains(t, out, "Already up to date")

	out, err = run("", "status", "--format", "json")
	require.NoError(t, err)
	var st status.SyncStatus
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, status.SyncPhaseComplete, st.Phase)
	assert.Equal(t, "no-changes", st.LastOutcome)

	out, err = run("", "sync", "--auto")
	require.NoError(t, err)
	assert.Contains(t, out, "not due")

	out, err = run("", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "is intact")

	out, err = run("", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out of profile e2e")

	_, err = run("", "sync")
	require.Error(t, err)
	assert.Equal(t, exitAuth, ExitCode(err))
}

func TestAddUsers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pairs   []string
		want    map[string]string
		wantErr bool
	}{
		{name: "none", pairs: nil, want: map[string]string{"kept": "x"}},
		{name: "adds and overrides", pairs: []string{"bob:pw", "kept:y"}, want: map[string]string{"kept": "y", "bob": "pw"}},
		{name: "password may contain colons", pairs: []string{"bob:a:b"}, want: map[string]string{"kept": "x", "bob": "a:b"}},
		{name: "missing password", pairs: []string{"bob"}, wantErr: true},
		{name: "empty name", pairs: []string{":pw"}, wantErr: true},
		{name: "path in name", pairs: []string{"../bob:pw"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dev := &config.DevServerConfig{Users: map[string]string{"kept": "x"}}
			err := addUsers(dev, tt.pairs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, dev.Users)
		})
	}
}

func TestSyncCmd_RejectsUnknownConflictDirection(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "", "--data-dir", t.TempDir(), "sync", "--on-conflict", "sideways")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown conflict resolution")
}
