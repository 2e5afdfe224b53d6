package syncserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/studykit/colsync/internal/collection"
	"github.com/studykit/colsync/internal/sync/remote"
	"github.com/studykit/colsync/internal/versions"
)

// uploadAccepted is the status text of a successful full upload
const uploadAccepted = "OK"

func (s *Server) meta(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req remote.MetaRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if !versions.MeetsMinimum(req.ClientVersion, s.minClientVersion) {
		slog.InfoContext(ctx, "Rejected outdated client", "client", req.ClientVersion, "minimum", s.minClientVersion)
		writeError(w, http.StatusUpgradeRequired, "client version "+versions.ParseClientVersion(req.ClientVersion)+
			" is no longer supported, please upgrade to "+s.minClientVersion+" or later")
		return
	}

	acct := accountFrom(ctx)
	acct.mu.Lock()
	defer acct.mu.Unlock()
	acct.endSession(ctx)

	store := acct.col.Store()
	m, err := store.Meta(ctx)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	var total int
	err = store.SyncTx(ctx, func(tx collection.SyncTx) (bool, error) {
		counts, err := tx.Counts(ctx)
		for _, n := range counts {
			total += n
		}
		return false, err
	})
	if err != nil {
		writeInternal(w, r, err)
		return
	}

	writeJSON(w, remote.MetaResponse{
		Mod:       m.Mod,
		SchemaMod: m.SchemaMod,
		USN:       m.USN,
		Timestamp: s.now().Unix(),
		MediaUSN:  acct.media.currentUSN(),
		Message:   s.message,
		Continue:  !s.maintenance,
		Username:  acct.name,
		Empty:     total == 0,
	})
}

func (s *Server) start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req remote.StartRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	acct := accountFrom(ctx)
	acct.mu.Lock()
	defer acct.mu.Unlock()
	acct.endSession(ctx)

	m, err := acct.col.Store().Meta(ctx)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	sess := startSession(s.ctx, acct.col.Store(), req.MinUSN, m.USN, s.sessionTimeout)
	acct.sess = sess
	slog.DebugContext(ctx, "Sync session started",
		"username", acct.name, "client_usn", req.MinUSN, "server_usn", m.USN, "local_newer", req.LocalNewer)

	var resp remote.StartResponse
	err = sess.do(ctx, endNone, func(ctx context.Context, tx collection.SyncTx) error {
		graves, err := tx.Graves(ctx, sess.clientUSN)
		if err != nil {
			return err
		}
		resp.Graves = graves
		return tx.ApplyGraves(ctx, req.Graves, sess.serverUSN)
	})
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, resp)
}

func (s *Server) applyChanges(w http.ResponseWriter, r *http.Request) {
	var req remote.ChangesRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	var resp remote.ChangesResponse
	s.inSession(w, r, endNone, func(ctx context.Context, sess *session, tx collection.SyncTx) error {
		changes, err := tx.Changed(ctx, collection.SmallKinds, sess.clientUSN, 0)
		if err != nil {
			return err
		}
		resp.Changes = changes
		return tx.Merge(ctx, req.Changes, sess.serverUSN)
	}, func() { writeJSON(w, resp) })
}

func (s *Server) chunk(w http.ResponseWriter, r *http.Request) {
	var resp remote.Chunk
	s.inSession(w, r, endNone, func(ctx context.Context, sess *session, tx collection.SyncTx) error {
		if !sess.chunked {
			pending, err := tx.Changed(ctx, collection.LargeKinds, sess.clientUSN, 0)
			if err != nil {
				return err
			}
			sess.pending = pending
			sess.chunked = true
		}
		n := min(len(sess.pending), s.chunkSize)
		resp.Records = sess.pending[:n]
		sess.pending = sess.pending[n:]
		resp.Done = len(sess.pending) == 0
		return nil
	}, func() { writeJSON(w, resp) })
}

func (s *Server) applyChunk(w http.ResponseWriter, r *http.Request) {
	var req remote.ApplyChunkRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	s.inSession(w, r, endNone, func(ctx context.Context, sess *session, tx collection.SyncTx) error {
		return tx.Merge(ctx, req.Chunk.Records, sess.serverUSN)
	}, func() { writeJSON(w, struct{}{}) })
}

func (s *Server) sanityCheck(w http.ResponseWriter, r *http.Request) {
	var req remote.SanityRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	var resp remote.SanityResponse
	s.inSession(w, r, endNone, func(ctx context.Context, _ *session, tx collection.SyncTx) error {
		counts, err := tx.Counts(ctx)
		if err != nil {
			return err
		}
		if counts.Equal(req.Client) {
			resp.Status = remote.SanityOK
			return nil
		}
		slog.WarnContext(ctx, "Sanity check failed", "client", req.Client, "server", counts)
		resp = remote.SanityResponse{Status: remote.SanityBad, Client: req.Client, Server: counts}
		return nil
	}, func() { writeJSON(w, resp) })
}

func (s *Server) finish(w http.ResponseWriter, r *http.Request) {
	mod := s.now().UnixMilli()
	s.inSession(w, r, endCommit, func(ctx context.Context, sess *session, tx collection.SyncTx) error {
		return tx.Finish(ctx, mod, sess.serverUSN+1)
	}, func() {
		acct := accountFrom(r.Context())
		if err := acct.col.Save(r.Context()); err != nil {
			slog.WarnContext(r.Context(), "Failed to save collection after sync", "username", acct.name, "error", err)
		}
		slog.InfoContext(r.Context(), "Sync session committed", "username", acct.name, "mod", mod)
		writeJSON(w, remote.FinishResponse{Mod: mod})
	})
}

func (s *Server) abort(w http.ResponseWriter, r *http.Request) {
	acct := accountFrom(r.Context())
	acct.mu.Lock()
	defer acct.mu.Unlock()

	if acct.sess != nil {
		slog.InfoContext(r.Context(), "Sync session aborted by client", "username", acct.name)
	}
	acct.endSession(r.Context())
	writeJSON(w, struct{}{})
}

// inSession runs fn inside the account's open session and calls reply on success.
// The session ends when fn fails or end is not endNone.
func (s *Server) inSession(
	w http.ResponseWriter,
	r *http.Request,
	end sessionEnd,
	fn func(ctx context.Context, sess *session, tx collection.SyncTx) error,
	reply func(),
) {
	ctx := r.Context()
	acct := accountFrom(ctx)
	acct.mu.Lock()
	defer acct.mu.Unlock()

	sess, err := acct.activeSession()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = sess.do(ctx, end, func(ctx context.Context, tx collection.SyncTx) error {
		return fn(ctx, sess, tx)
	})
	if err != nil || end != endNone {
		acct.endSession(ctx)
	}
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	reply()
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}

	acct := accountFrom(ctx)
	acct.mu.Lock()
	defer acct.mu.Unlock()
	acct.endSession(ctx)

	var rej *rejection
	switch err := acct.replace(ctx, data); {
	case errors.As(err, &rej):
		slog.WarnContext(ctx, "Rejected full upload", "username", acct.name, "error", err)
		writeText(w, rej.msg)
	case err != nil:
		writeInternal(w, r, err)
	default:
		slog.InfoContext(ctx, "Installed full upload", "username", acct.name, "bytes", len(data))
		writeText(w, uploadAccepted)
	}
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	acct := accountFrom(ctx)
	acct.mu.Lock()
	defer acct.mu.Unlock()
	acct.endSession(ctx)

	data, err := acct.snapshot(ctx)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func decodeRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// writeJSON writes a 200 JSON response
func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

func writeText(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, msg)
}

// writeError writes a plain-text error; clients surface the body as the message
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}

func writeInternal(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "Sync request failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}
