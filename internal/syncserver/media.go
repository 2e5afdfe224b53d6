package syncserver

import (
	"io"
	"log/slog"
	"net/http"
	"sort"
	stdsync "sync"

	"github.com/studykit/colsync/internal/collection"
	"github.com/studykit/colsync/internal/sync/remote"
)

// mediaChangesLimit caps the entries returned by one mediaChanges call
const mediaChangesLimit = 250

type mediaEntry struct {
	data     []byte
	checksum string
	usn      int
}

// mediaLibrary is the remote media state of one account. Every added or
// removed file takes the next usn.
type mediaLibrary struct {
	mu    stdsync.RWMutex
	usn   int
	files map[string]*mediaEntry
}

func newMediaLibrary() *mediaLibrary {
	return &mediaLibrary{files: map[string]*mediaEntry{}}
}

func (m *mediaLibrary) currentUSN() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usn
}

// changesAfter lists entries changed after usn in usn order
func (m *mediaLibrary) changesAfter(usn int) []remote.MediaChange {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var changes []remote.MediaChange
	for name, e := range m.files {
		if e.usn > usn {
			changes = append(changes, remote.MediaChange{Name: name, USN: e.usn, Checksum: e.checksum})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].USN < changes[j].USN })
	if len(changes) > mediaChangesLimit {
		changes = changes[:mediaChangesLimit]
	}
	return changes
}

// apply records uploaded entries and returns the usn after the last one
func (m *mediaLibrary) apply(entries []collection.ArchiveEntry) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		m.usn++
		if e.Deleted {
			m.files[e.Name] = &mediaEntry{usn: m.usn}
			continue
		}
		m.files[e.Name] = &mediaEntry{data: e.Data, checksum: collection.Checksum(e.Data), usn: m.usn}
	}
	return m.usn
}

// archive packs the named present files; unknown and removed names are skipped
func (m *mediaLibrary) archive(names []string) ([]byte, error) {
	m.mu.RLock()
	entries := make([]collection.ArchiveEntry, 0, len(names))
	for _, name := range names {
		if e, ok := m.files[name]; ok && e.checksum != "" {
			entries = append(entries, collection.ArchiveEntry{Name: name, Data: e.data})
		}
	}
	m.mu.RUnlock()
	return collection.WriteArchive(entries)
}

func (m *mediaLibrary) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.files {
		if e.checksum != "" {
			n++
		}
	}
	return n
}

func (s *Server) mediaBegin(w http.ResponseWriter, r *http.Request) {
	acct := accountFrom(r.Context())
	writeJSON(w, remote.MediaBeginResponse{USN: acct.media.currentUSN()})
}

func (s *Server) mediaChanges(w http.ResponseWriter, r *http.Request) {
	var req remote.MediaChangesRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	acct := accountFrom(r.Context())
	writeJSON(w, remote.MediaChangesResponse{Changes: acct.media.changesAfter(req.LastUSN)})
}

func (s *Server) downloadFiles(w http.ResponseWriter, r *http.Request) {
	var req remote.DownloadFilesRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	data, err := accountFrom(r.Context()).media.archive(req.Files)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) uploadChanges(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "media upload too large")
		return
	}
	entries, err := collection.ReadArchive(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	acct := accountFrom(r.Context())
	usn := acct.media.apply(entries)
	slog.DebugContext(r.Context(), "Applied media changes", "username", acct.name, "count", len(entries), "usn", usn)
	writeJSON(w, remote.UploadChangesResponse{Processed: len(entries), CurrentUSN: usn})
}

func (s *Server) mediaSanity(w http.ResponseWriter, r *http.Request) {
	var req remote.MediaSanityRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	acct := accountFrom(r.Context())
	status := remote.MediaSanityOK
	if n := acct.media.count(); n != req.Local {
		slog.WarnContext(r.Context(), "Media sanity check failed", "username", acct.name, "local", req.Local, "remote", n)
		status = remote.MediaSanityBad
	}
	writeJSON(w, remote.MediaSanityResponse{Status: status})
}
