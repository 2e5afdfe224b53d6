package collection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const mediaSchema = `
CREATE TABLE IF NOT EXISTS media (
	fname TEXT PRIMARY KEY,
	csum TEXT,
	mtime INTEGER NOT NULL,
	dirty INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_media_dirty ON media (dirty);
CREATE TABLE IF NOT EXISTS meta (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	dir_mod INTEGER NOT NULL,
	last_usn INTEGER NOT NULL
);
INSERT OR IGNORE INTO meta (id, dir_mod, last_usn) VALUES (1, 0, 0);
`

// MediaDir is the SQLite-tracked media directory
type MediaDir struct {
	dir string
	db  *sql.DB
	now func() time.Time
}

func openMediaDir(ctx context.Context, dir string, now func() time.Time) (*MediaDir, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	db, err := sql.Open("sqlite", dir+".db")
	if err != nil {
		return nil, fmt.Errorf("failed to open media database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, mediaSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create media schema: %w", err)
	}
	return &MediaDir{dir: dir, db: db, now: now}, nil
}

func (m *MediaDir) close() {
	_ = m.db.Close()
}

// Dir returns the directory holding media files
func (m *MediaDir) Dir() string {
	return m.dir
}

// AddFile writes a media file and marks it for upload
func (m *MediaDir) AddFile(ctx context.Context, name string, data []byte) error {
	if !ValidMediaName(name) {
		return fmt.Errorf("invalid media file name %q", name)
	}
	if err := os.WriteFile(filepath.Join(m.dir, name), data, 0600); err != nil {
		return fmt.Errorf("failed to write media file %s: %w", name, err)
	}
	return m.upsert(ctx, name, Checksum(data), true)
}

// RemoveFile deletes a media file and marks the removal for upload
func (m *MediaDir) RemoveFile(ctx context.Context, name string) error {
	if err := os.Remove(filepath.Join(m.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove media file %s: %w", name, err)
	}
	return m.upsertRemoved(ctx, name)
}

func (m *MediaDir) upsert(ctx context.Context, name, sum string, dirty bool) error {
	if _, err := m.db.ExecContext(ctx, `
		INSERT INTO media (fname, csum, mtime, dirty) VALUES (?, ?, ?, ?)
		ON CONFLICT (fname) DO UPDATE SET csum = excluded.csum, mtime = excluded.mtime, dirty = excluded.dirty`,
		name, sum, m.now().Unix(), dirty); err != nil {
		return fmt.Errorf("failed to record media file %s: %w", name, err)
	}
	return nil
}

func (m *MediaDir) upsertRemoved(ctx context.Context, name string) error {
	if _, err := m.db.ExecContext(ctx, `
		INSERT INTO media (fname, csum, mtime, dirty) VALUES (?, NULL, 0, 1)
		ON CONFLICT (fname) DO UPDATE SET csum = NULL, mtime = 0, dirty = 1`, name); err != nil {
		return fmt.Errorf("failed to record removal of media file %s: %w", name, err)
	}
	return nil
}

// NeedScan reports whether the directory has never been scanned
func (m *MediaDir) NeedScan(ctx context.Context) (bool, error) {
	var dirMod int64
	if err := m.db.QueryRowContext(ctx, `SELECT dir_mod FROM meta`).Scan(&dirMod); err != nil {
		return false, fmt.Errorf("failed to read media meta: %w", err)
	}
	return dirMod == 0, nil
}

// FindChanges reconciles the database with the directory contents
func (m *MediaDir) FindChanges(ctx context.Context) error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("failed to list media directory: %w", err)
	}

	known, err := m.knownFiles(ctx)
	if err != nil {
		return err
	}

	present := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !ValidMediaName(entry.Name()) {
			continue
		}
		name := entry.Name()
		present[name] = true

		data, err := os.ReadFile(filepath.Join(m.dir, name))
		if err != nil {
			return fmt.Errorf("failed to read media file %s: %w", name, err)
		}
		sum := Checksum(data)
		if known[name] == sum {
			continue
		}
		if err := m.upsert(ctx, name, sum, true); err != nil {
			return err
		}
	}

	for name, sum := range known {
		if sum != "" && !present[name] {
			if err := m.upsertRemoved(ctx, name); err != nil {
				return err
			}
		}
	}

	if _, err := m.db.ExecContext(ctx, `UPDATE meta SET dir_mod = ?`, m.now().Unix()); err != nil {
		return fmt.Errorf("failed to record media scan: %w", err)
	}
	return nil
}

func (m *MediaDir) knownFiles(ctx context.Context) (map[string]string, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT fname, coalesce(csum, '') FROM media`)
	if err != nil {
		return nil, fmt.Errorf("failed to list media entries: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	known := make(map[string]string)
	for rows.Next() {
		var name, sum string
		if err := rows.Scan(&name, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan media entry: %w", err)
		}
		known[name] = sum
	}
	return known, rows.Err()
}

// LastUSN returns the remote usn recorded at the last media sync
func (m *MediaDir) LastUSN(ctx context.Context) (int, error) {
	var usn int
	if err := m.db.QueryRowContext(ctx, `SELECT last_usn FROM meta`).Scan(&usn); err != nil {
		return 0, fmt.Errorf("failed to read media usn: %w", err)
	}
	return usn, nil
}

// SetLastUSN records the remote usn
func (m *MediaDir) SetLastUSN(ctx context.Context, usn int) error {
	if _, err := m.db.ExecContext(ctx, `UPDATE meta SET last_usn = ?`, usn); err != nil {
		return fmt.Errorf("failed to store media usn: %w", err)
	}
	return nil
}

// DirtyCount returns the number of entries waiting for upload
func (m *MediaDir) DirtyCount(ctx context.Context) (int, error) {
	var n int
	if err := m.db.QueryRowContext(ctx, `SELECT count(*) FROM media WHERE dirty = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending media: %w", err)
	}
	return n, nil
}

// SyncInfo returns the checksum and dirty flag of a file
func (m *MediaDir) SyncInfo(ctx context.Context, name string) (string, bool, error) {
	var sum sql.NullString
	var dirty bool
	err := m.db.QueryRowContext(ctx, `SELECT csum, dirty FROM media WHERE fname = ?`, name).Scan(&sum, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read media entry %s: %w", name, err)
	}
	return sum.String, dirty, nil
}

// MarkClean clears the dirty flag and forgets synced removals
func (m *MediaDir) MarkClean(ctx context.Context, names []string) error {
	for _, name := range names {
		if _, err := m.db.ExecContext(ctx, `UPDATE media SET dirty = 0 WHERE fname = ?`, name); err != nil {
			return fmt.Errorf("failed to mark %s clean: %w", name, err)
		}
	}
	if _, err := m.db.ExecContext(ctx, `DELETE FROM media WHERE csum IS NULL AND dirty = 0`); err != nil {
		return fmt.Errorf("failed to forget synced removals: %w", err)
	}
	return nil
}

// SyncDelete removes a file the remote deleted
func (m *MediaDir) SyncDelete(ctx context.Context, name string) error {
	if !ValidMediaName(name) {
		return fmt.Errorf("invalid media file name %q", name)
	}
	if err := os.Remove(filepath.Join(m.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove media file %s: %w", name, err)
	}
	if _, err := m.db.ExecContext(ctx, `DELETE FROM media WHERE fname = ?`, name); err != nil {
		return fmt.Errorf("failed to forget media file %s: %w", name, err)
	}
	return nil
}

// AddFilesFromZip stores files downloaded from the remote
func (m *MediaDir) AddFilesFromZip(ctx context.Context, data []byte) (int, error) {
	entries, err := ReadArchive(data)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, e := range entries {
		if e.Deleted {
			continue
		}
		if err := os.WriteFile(filepath.Join(m.dir, e.Name), e.Data, 0600); err != nil {
			return added, fmt.Errorf("failed to write media file %s: %w", e.Name, err)
		}
		if err := m.upsert(ctx, e.Name, Checksum(e.Data), false); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// ChangesZip packs up to limit dirty entries
func (m *MediaDir) ChangesZip(ctx context.Context, limit int) ([]byte, []string, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT fname, csum FROM media WHERE dirty = 1 ORDER BY fname LIMIT ?`, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list pending media: %w", err)
	}
	type pending struct {
		name    string
		removed bool
	}
	var items []pending
	for rows.Next() {
		var name string
		var sum sql.NullString
		if err := rows.Scan(&name, &sum); err != nil {
			_ = rows.Close()
			return nil, nil, fmt.Errorf("failed to scan pending media: %w", err)
		}
		items = append(items, pending{name: name, removed: !sum.Valid})
	}
	if err := rows.Close(); err != nil {
		return nil, nil, err
	}

	entries := make([]ArchiveEntry, 0, len(items))
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.name)
		if item.removed {
			entries = append(entries, ArchiveEntry{Name: item.name, Deleted: true})
			continue
		}
		content, err := os.ReadFile(filepath.Join(m.dir, item.name))
		if errors.Is(err, fs.ErrNotExist) {
			entries = append(entries, ArchiveEntry{Name: item.name, Deleted: true})
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read media file %s: %w", item.name, err)
		}
		entries = append(entries, ArchiveEntry{Name: item.name, Data: content})
	}

	archive, err := WriteArchive(entries)
	if err != nil {
		return nil, nil, err
	}
	return archive, names, nil
}

// Count returns the number of files present
func (m *MediaDir) Count(ctx context.Context) (int, error) {
	var n int
	if err := m.db.QueryRowContext(ctx, `SELECT count(*) FROM media WHERE csum IS NOT NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count media: %w", err)
	}
	return n, nil
}

// ForceResync drops all sync state
func (m *MediaDir) ForceResync(ctx context.Context) error {
	for _, stmt := range []string{
		`DELETE FROM media`,
		`UPDATE meta SET dir_mod = 0, last_usn = 0`,
	} {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to reset media sync state: %w", err)
		}
	}
	return nil
}

// Files lists the media file names present in the directory
func (m *MediaDir) Files() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list media directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && ValidMediaName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

type closedMedia struct{}

func (closedMedia) NeedScan(context.Context) (bool, error)              { return false, ErrClosed }
func (closedMedia) FindChanges(context.Context) error                   { return ErrClosed }
func (closedMedia) LastUSN(context.Context) (int, error)                { return 0, ErrClosed }
func (closedMedia) SetLastUSN(context.Context, int) error               { return ErrClosed }
func (closedMedia) DirtyCount(context.Context) (int, error)             { return 0, ErrClosed }
func (closedMedia) MarkClean(context.Context, []string) error           { return ErrClosed }
func (closedMedia) SyncDelete(context.Context, string) error            { return ErrClosed }
func (closedMedia) AddFilesFromZip(context.Context, []byte) (int, error) { return 0, ErrClosed }
func (closedMedia) Count(context.Context) (int, error)                  { return 0, ErrClosed }
func (closedMedia) ForceResync(context.Context) error                   { return ErrClosed }

func (closedMedia) SyncInfo(context.Context, string) (string, bool, error) {
	return "", false, ErrClosed
}

func (closedMedia) ChangesZip(context.Context, int) ([]byte, []string, error) {
	return nil, nil, ErrClosed
}
