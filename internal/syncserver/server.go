// Package syncserver is a self-contained remote for the collection and media
// sync protocols. It keeps one SQLite collection and an in-memory media
// library per account and is meant for development and end-to-end tests.
package syncserver

import (
	"compress/gzip"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	stdsync "sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/studykit/colsync/internal/collection"
	"github.com/studykit/colsync/internal/sync/remote"
	"github.com/studykit/colsync/internal/transport"
)

const (
	// DefaultChunkSize is how many large objects one chunk response carries
	DefaultChunkSize = 250

	// DefaultSessionTimeout is how long an idle sync session keeps its transaction open
	DefaultSessionTimeout = 5 * time.Minute

	// DefaultMaxBodySize bounds a decompressed request body
	DefaultMaxBodySize = 256 * 1024 * 1024
)

// Option configures a Server
type Option func(*Server)

// WithUsers sets the accepted username and password pairs
func WithUsers(users map[string]string) Option {
	return func(s *Server) {
		for u, p := range users {
			s.users[u] = p
		}
	}
}

// WithMinClientVersion rejects clients older than version with 426 Upgrade Required
func WithMinClientVersion(version string) Option {
	return func(s *Server) {
		s.minClientVersion = version
	}
}

// WithMessage sets the message returned with every meta response
func WithMessage(msg string) Option {
	return func(s *Server) {
		s.message = msg
	}
}

// WithMaintenance makes meta tell clients to stop, returning msg
func WithMaintenance(msg string) Option {
	return func(s *Server) {
		s.maintenance = true
		s.message = msg
	}
}

// WithChunkSize sets how many large objects one chunk response carries
func WithChunkSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithSessionTimeout sets how long an idle sync session stays open
func WithSessionTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.sessionTimeout = d
		}
	}
}

// WithMaxBodySize bounds decompressed request bodies
func WithMaxBodySize(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodySize = n
		}
	}
}

// WithClock overrides the server clock
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithMiddlewares adds middleware in front of every route
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(s *Server) {
		s.middlewares = append(s.middlewares, mw...)
	}
}

// Server serves the sync protocols for a fixed set of accounts
type Server struct {
	dataDir          string
	users            map[string]string
	minClientVersion string
	message          string
	maintenance      bool
	chunkSize        int
	sessionTimeout   time.Duration
	maxBodySize      int64
	now              func() time.Time
	middlewares      []func(http.Handler) http.Handler

	// ctx outlives requests; open sync sessions run on it
	ctx    context.Context
	cancel context.CancelFunc

	mu       stdsync.Mutex
	keys     map[string]string
	accounts map[string]*account
}

// New creates a Server storing account data under dataDir
func New(dataDir string, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		dataDir:        dataDir,
		users:          map[string]string{},
		chunkSize:      DefaultChunkSize,
		sessionTimeout: DefaultSessionTimeout,
		maxBodySize:    DefaultMaxBodySize,
		now:            time.Now,
		ctx:            ctx,
		cancel:         cancel,
		keys:           map[string]string{},
		accounts:       map[string]*account{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP routes of the server
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware)
	for _, mw := range s.middlewares {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	r.Route("/sync", func(r chi.Router) {
		r.Use(s.decompress)
		r.Post("/"+remote.MethodHostKey, s.hostKey)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Post("/"+remote.MethodMeta, s.meta)
			r.Post("/"+remote.MethodStart, s.start)
			r.Post("/"+remote.MethodApplyChanges, s.applyChanges)
			r.Post("/"+remote.MethodChunk, s.chunk)
			r.Post("/"+remote.MethodApplyChunk, s.applyChunk)
			r.Post("/"+remote.MethodSanityCheck, s.sanityCheck)
			r.Post("/"+remote.MethodFinish, s.finish)
			r.Post("/"+remote.MethodAbort, s.abort)
			r.Post("/"+remote.MethodUpload, s.upload)
			r.Post("/"+remote.MethodDownload, s.download)
		})
	})

	r.Route("/msync", func(r chi.Router) {
		r.Use(s.decompress, s.authenticate)
		r.Post("/"+remote.MethodMediaBegin, s.mediaBegin)
		r.Post("/"+remote.MethodMediaChanges, s.mediaChanges)
		r.Post("/"+remote.MethodDownloadFiles, s.downloadFiles)
		r.Post("/"+remote.MethodUploadChanges, s.uploadChanges)
		r.Post("/"+remote.MethodMediaSanity, s.mediaSanity)
	})

	return r
}

// Close aborts open sync sessions and closes every account collection
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	accounts := make([]*account, 0, len(s.accounts))
	for _, a := range s.accounts {
		accounts = append(accounts, a)
	}
	s.accounts = map[string]*account{}
	s.mu.Unlock()

	var errs []error
	for _, a := range accounts {
		if err := a.close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("account %s: %w", a.name, err))
		}
	}
	s.cancel()
	return errors.Join(errs...)
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.DebugContext(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// decompress unwraps gzip request bodies and bounds their decompressed size
func (s *Server) decompress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Encoding") == "gzip" {
			zr, err := gzip.NewReader(r.Body)
			if err != nil {
				writeError(w, http.StatusBadRequest, "request body is not valid gzip")
				return
			}
			defer func() {
				_ = zr.Close()
			}()
			r.Body = zr
			r.Header.Del("Content-Encoding")
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBodySize)
		next.ServeHTTP(w, r)
	})
}

type accountKey struct{}

// authenticate resolves the session key header to an account
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(transport.HeaderSessionKey)
		s.mu.Lock()
		name, ok := s.keys[key]
		s.mu.Unlock()
		if key == "" || !ok {
			writeError(w, http.StatusForbidden, "invalid session key")
			return
		}

		acct, err := s.account(r.Context(), name)
		if err != nil {
			slog.ErrorContext(r.Context(), "Failed to open account", "username", name, "error", err)
			writeError(w, http.StatusInternalServerError, "account unavailable")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), accountKey{}, acct)))
	})
}

func accountFrom(ctx context.Context) *account {
	acct, _ := ctx.Value(accountKey{}).(*account)
	return acct
}

func (s *Server) hostKey(w http.ResponseWriter, r *http.Request) {
	var req remote.HostKeyRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	want, ok := s.users[req.Username]
	if !ok || subtle.ConstantTimeCompare([]byte(want), []byte(req.Password)) != 1 {
		slog.InfoContext(r.Context(), "Rejected login", "username", req.Username)
		writeError(w, http.StatusForbidden, "invalid username or password")
		return
	}

	key := uuid.NewString()
	s.mu.Lock()
	s.keys[key] = req.Username
	s.mu.Unlock()

	slog.InfoContext(r.Context(), "Issued session key", "username", req.Username)
	writeJSON(w, remote.HostKeyResponse{Key: key})
}

// account returns the open account, opening its collection on first use
func (s *Server) account(ctx context.Context, name string) (*account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acct, ok := s.accounts[name]; ok {
		return acct, nil
	}
	if !collection.ValidMediaName(name) {
		return nil, fmt.Errorf("username %q cannot name a data directory", name)
	}

	dir := filepath.Join(s.dataDir, name)
	col, err := collection.Open(ctx, filepath.Join(dir, "collection.db"),
		collection.WithMediaDir(filepath.Join(dir, "media")),
		collection.WithClock(s.now))
	if err != nil {
		return nil, err
	}

	acct := &account{name: name, col: col, media: newMediaLibrary()}
	s.accounts[name] = acct
	return acct, nil
}
