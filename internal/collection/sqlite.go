package collection

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	stdsync "sync"
	"time"

	// SQLite driver registration
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS col (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	crt INTEGER NOT NULL,
	mod INTEGER NOT NULL,
	scm INTEGER NOT NULL,
	usn INTEGER NOT NULL,
	ls INTEGER NOT NULL,
	sched_adjusted INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS records (
	kind TEXT NOT NULL,
	id INTEGER NOT NULL,
	mod INTEGER NOT NULL,
	usn INTEGER NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (kind, id)
);
CREATE INDEX IF NOT EXISTS ix_records_usn ON records (usn);
CREATE TABLE IF NOT EXISTS graves (
	kind TEXT NOT NULL,
	id INTEGER NOT NULL,
	usn INTEGER NOT NULL,
	PRIMARY KEY (kind, id)
);
CREATE TABLE IF NOT EXISTS undo (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	description TEXT NOT NULL
);
`

// DefaultLockTimeout bounds how long Lock waits for another holder
const DefaultLockTimeout = 10 * time.Second

// Option configures a SQLite collection
type Option func(*SQLiteCollection)

// WithMediaDir sets the media directory; it defaults to "<collection>.media"
func WithMediaDir(dir string) Option {
	return func(c *SQLiteCollection) {
		c.mediaDir = dir
	}
}

// WithLockTimeout sets how long Lock waits for the lock
func WithLockTimeout(timeout time.Duration) Option {
	return func(c *SQLiteCollection) {
		if timeout > 0 {
			c.lockTimeout = timeout
		}
	}
}

// WithClock overrides the time source used for modification times
func WithClock(now func() time.Time) Option {
	return func(c *SQLiteCollection) {
		c.now = now
	}
}

// SQLiteCollection is the SQLite implementation of Collection
type SQLiteCollection struct {
	path        string
	mediaDir    string
	lockTimeout time.Duration
	now         func() time.Time

	mu    stdsync.RWMutex
	db    *sql.DB
	media *MediaDir
	lock  *fileLock
}

// Open opens or creates the collection at path
func Open(ctx context.Context, path string, opts ...Option) (*SQLiteCollection, error) {
	c := newCollection(path, opts...)
	if err := c.open(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func newCollection(path string, opts ...Option) *SQLiteCollection {
	c := &SQLiteCollection{
		path:        path,
		lockTimeout: DefaultLockTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.mediaDir == "" {
		c.mediaDir = strings.TrimSuffix(path, filepath.Ext(path)) + ".media"
	}
	c.lock = newFileLock(path+".lock", c.lockTimeout)
	return c
}

func (c *SQLiteCollection) open(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0750); err != nil {
		return fmt.Errorf("failed to create collection directory: %w", err)
	}

	db, err := openDB(ctx, c.path)
	if err != nil {
		return err
	}

	now := c.now().UnixMilli()
	if _, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO col (id, crt, mod, scm, usn, ls) VALUES (1, ?, ?, ?, 0, 0)`,
		now/1000, now, now); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize collection: %w", err)
	}

	media, err := openMediaDir(ctx, c.mediaDir, c.now)
	if err != nil {
		_ = db.Close()
		return err
	}

	c.db = db
	c.media = media
	return nil
}

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create collection schema: %w", err)
	}
	return db, nil
}

// Verify checks that the file at path is a readable collection
func Verify(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		_ = db.Close()
	}()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	var n int
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM col").Scan(&n); err != nil {
		return fmt.Errorf("not a collection: %w", err)
	}
	if n != 1 {
		return errors.New("not a collection: missing header row")
	}
	return nil
}

// Path returns the location of the collection file
func (c *SQLiteCollection) Path() string {
	return c.path
}

// MediaDir returns the media directory
func (c *SQLiteCollection) MediaDir() string {
	return c.mediaDir
}

// IsOpen reports whether the database is open
func (c *SQLiteCollection) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db != nil
}

// IsLocked reports whether this handle holds the collection lock
func (c *SQLiteCollection) IsLocked() bool {
	return c.lock.Locked()
}

// Lock takes the collection lock
func (c *SQLiteCollection) Lock(ctx context.Context) error {
	return c.lock.Lock(ctx)
}

// Unlock releases the collection lock
func (c *SQLiteCollection) Unlock() error {
	return c.lock.Unlock()
}

// Reopen closes and reopens the database file
func (c *SQLiteCollection) Reopen(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeLocked()
	if err := c.open(ctx); err != nil {
		return fmt.Errorf("failed to reopen collection: %w", err)
	}
	slog.Debug("Collection reopened", "path", c.path)
	return nil
}

// Close closes the collection
func (c *SQLiteCollection) Close(ctx context.Context, save bool) error {
	if save {
		if err := c.Save(ctx); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return nil
}

func (c *SQLiteCollection) closeLocked() {
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			slog.Warn("Failed to close collection database", "path", c.path, "error", err)
		}
		c.db = nil
	}
	if c.media != nil {
		c.media.close()
		c.media = nil
	}
}

func (c *SQLiteCollection) conn() (*sql.DB, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil {
		return nil, ErrClosed
	}
	return c.db, nil
}

// Save checkpoints the write-ahead log into the collection file
func (c *SQLiteCollection) Save(ctx context.Context) error {
	db, err := c.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(FULL)"); err != nil {
		return fmt.Errorf("failed to save collection: %w", err)
	}
	return nil
}

// ModSchemaNoCheck bumps the schema marker without asking for confirmation
func (c *SQLiteCollection) ModSchemaNoCheck(ctx context.Context) error {
	db, err := c.conn()
	if err != nil {
		return err
	}
	now := c.now().UnixMilli()
	if _, err := db.ExecContext(ctx, `UPDATE col SET scm = ?, mod = ?`, now, now); err != nil {
		return fmt.Errorf("failed to modify schema marker: %w", err)
	}
	return nil
}

// ClearUndo drops the undo history
func (c *SQLiteCollection) ClearUndo(ctx context.Context) error {
	db, err := c.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM undo`); err != nil {
		return fmt.Errorf("failed to clear undo: %w", err)
	}
	return nil
}

// MarkScheduleUnadjusted records that the schedule still needs its daily adjustment
func (c *SQLiteCollection) MarkScheduleUnadjusted(ctx context.Context) error {
	db, err := c.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `UPDATE col SET sched_adjusted = 0`); err != nil {
		return fmt.Errorf("failed to reset schedule state: %w", err)
	}
	return nil
}

// ScheduleAdjusted reports the schedule adjustment flag
func (c *SQLiteCollection) ScheduleAdjusted(ctx context.Context) (bool, error) {
	db, err := c.conn()
	if err != nil {
		return false, err
	}
	var adjusted bool
	if err := db.QueryRowContext(ctx, `SELECT sched_adjusted FROM col`).Scan(&adjusted); err != nil {
		return false, fmt.Errorf("failed to read schedule state: %w", err)
	}
	return adjusted, nil
}

// Store returns the sync-facing record store
func (c *SQLiteCollection) Store() SyncStore {
	return &sqliteStore{col: c}
}

// Media returns the media store
func (c *SQLiteCollection) Media() MediaStore {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.media == nil {
		return closedMedia{}
	}
	return c.media
}

// Put creates or updates a record as a local change
func (c *SQLiteCollection) Put(ctx context.Context, kind Kind, id int64, data json.RawMessage) error {
	db, err := c.conn()
	if err != nil {
		return err
	}
	now := c.now().UnixMilli()
	return withTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO records (kind, id, mod, usn, data) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (kind, id) DO UPDATE SET mod = excluded.mod, usn = excluded.usn, data = excluded.data`,
			string(kind), id, now, PendingUSN, string(data)); err != nil {
			return fmt.Errorf("failed to write %s %d: %w", kind, id, err)
		}
		return touch(ctx, tx, now, fmt.Sprintf("put %s %d", kind, id))
	})
}

// Remove deletes a record and records the removal for the next sync
func (c *SQLiteCollection) Remove(ctx context.Context, kind Kind, id int64) error {
	db, err := c.conn()
	if err != nil {
		return err
	}
	now := c.now().UnixMilli()
	return withTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE kind = ? AND id = ?`, string(kind), id); err != nil {
			return fmt.Errorf("failed to remove %s %d: %w", kind, id, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO graves (kind, id, usn) VALUES (?, ?, ?)`,
			string(kind), id, PendingUSN); err != nil {
			return fmt.Errorf("failed to record removal of %s %d: %w", kind, id, err)
		}
		return touch(ctx, tx, now, fmt.Sprintf("remove %s %d", kind, id))
	})
}

// Get returns a record; the boolean is false when it does not exist
func (c *SQLiteCollection) Get(ctx context.Context, kind Kind, id int64) (Record, bool, error) {
	db, err := c.conn()
	if err != nil {
		return Record{}, false, err
	}
	r := Record{Kind: kind, ID: id}
	var data string
	err = db.QueryRowContext(ctx,
		`SELECT mod, usn, data FROM records WHERE kind = ? AND id = ?`, string(kind), id).
		Scan(&r.Mod, &r.USN, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to read %s %d: %w", kind, id, err)
	}
	r.Data = json.RawMessage(data)
	return r, true, nil
}

// UndoDepth returns the number of undoable steps
func (c *SQLiteCollection) UndoDepth(ctx context.Context) (int, error) {
	db, err := c.conn()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM undo`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to read undo history: %w", err)
	}
	return n, nil
}

func touch(ctx context.Context, tx *sql.Tx, now int64, description string) error {
	if _, err := tx.ExecContext(ctx, `UPDATE col SET mod = ?`, now); err != nil {
		return fmt.Errorf("failed to update modification time: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO undo (description) VALUES (?)`, description); err != nil {
		return fmt.Errorf("failed to record undo step: %w", err)
	}
	return nil
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// FileProvider opens the collection file for each sync job
type FileProvider struct {
	path string
	opts []Option
}

// NewFileProvider creates a provider for the collection at path
func NewFileProvider(path string, opts ...Option) *FileProvider {
	return &FileProvider{path: path, opts: opts}
}

// Open opens the collection. A file that cannot be opened still yields a
// closed handle together with the error, so a full download can replace it.
func (p *FileProvider) Open(ctx context.Context) (Collection, error) {
	c := newCollection(p.path, p.opts...)
	if err := c.open(ctx); err != nil {
		return c, err
	}
	return c, nil
}
