// Package collection provides the local study collection consumed by the sync
// pipeline: locking, reopening, schema-marker control, the sync-facing record
// store and the media store. The reference implementation is backed by SQLite.
package collection

import (
	"context"
	"encoding/json"
	"errors"
)

//go:generate mockgen -destination=mocks/mock_collection.go -package=mocks -source=collection.go Collection,Provider,SyncStore,SyncTx,MediaStore

// ErrClosed is returned by operations on a collection that is not open
var ErrClosed = errors.New("collection is closed")

// ErrLocked is returned when the collection lock is held elsewhere
var ErrLocked = errors.New("collection is locked by another process")

// Kind names a record family
type Kind string

const (
	KindNote   Kind = "note"
	KindCard   Kind = "card"
	KindRevlog Kind = "revlog"
	KindDeck   Kind = "deck"
	KindModel  Kind = "model"
	KindTag    Kind = "tag"
	KindConfig Kind = "config"
)

// SmallKinds are exchanged in one message during incremental sync
var SmallKinds = []Kind{KindDeck, KindModel, KindTag, KindConfig}

// LargeKinds are exchanged in chunks during incremental sync
var LargeKinds = []Kind{KindNote, KindCard, KindRevlog}

// PendingUSN marks a local change that has not been sent to the remote
const PendingUSN = -1

// Record is one syncable row
type Record struct {
	Kind Kind            `json:"kind"`
	ID   int64           `json:"id"`
	Mod  int64           `json:"mod"`
	USN  int             `json:"usn"`
	Data json.RawMessage `json:"data"`
}

// Grave records the removal of a row
type Grave struct {
	Kind Kind  `json:"kind"`
	ID   int64 `json:"id"`
}

// Meta is the collection-level sync bookkeeping
type Meta struct {
	Mod       int64 `json:"mod"`
	SchemaMod int64 `json:"scm"`
	USN       int   `json:"usn"`
	LastSync  int64 `json:"ls"`
	Created   int64 `json:"crt"`
}

// Counts holds the number of rows per kind, used by sanity checks
type Counts map[Kind]int

// Equal reports whether both count sets describe the same rows
func (c Counts) Equal(other Counts) bool {
	for _, k := range append(append([]Kind{}, SmallKinds...), LargeKinds...) {
		if c[k] != other[k] {
			return false
		}
	}
	return true
}

// Collection is the local data store as seen by the sync pipeline
type Collection interface {
	// Path returns the location of the collection file
	Path() string
	// IsOpen reports whether the collection can serve reads and writes
	IsOpen() bool
	// IsLocked reports whether this handle holds the collection lock
	IsLocked() bool
	// Lock takes exclusive structural access, blocking up to the configured lock timeout
	Lock(ctx context.Context) error
	// Unlock releases the collection lock
	Unlock() error
	// Reopen closes and opens the underlying file again
	Reopen(ctx context.Context) error
	// Close closes the collection, persisting pending state first when save is true
	Close(ctx context.Context, save bool) error
	// ModSchemaNoCheck forces the schema marker so the next sync must be a full sync
	ModSchemaNoCheck(ctx context.Context) error
	// Save makes every committed change durable in the collection file
	Save(ctx context.Context) error
	// ClearUndo drops the undo history
	ClearUndo(ctx context.Context) error
	// MarkScheduleUnadjusted records that today's schedule has not been adjusted yet
	MarkScheduleUnadjusted(ctx context.Context) error
	// Store returns the sync-facing record store
	Store() SyncStore
	// Media returns the media store
	Media() MediaStore
}

// Provider opens the collection for one sync job
type Provider interface {
	// Open opens the collection. On failure it may return a closed handle
	// alongside the error; that handle is only good as a full download target.
	Open(ctx context.Context) (Collection, error)
}

// SyncStore exposes collection data to the sync drivers
type SyncStore interface {
	// Meta returns the collection-level sync bookkeeping
	Meta(ctx context.Context) (Meta, error)
	// BasicCheck runs a quick structural integrity check
	BasicCheck(ctx context.Context) (bool, error)
	// PrepareFullUpload marks everything as synced and bumps the schema marker
	PrepareFullUpload(ctx context.Context) error
	// SyncTx runs fn in one transaction, committing only when fn returns true and no error
	SyncTx(ctx context.Context, fn func(tx SyncTx) (bool, error)) error
}

// SyncTx is the set of operations available inside a sync transaction
type SyncTx interface {
	// Graves returns removals; since < 0 selects pending local removals,
	// otherwise removals with usn >= since
	Graves(ctx context.Context, since int) ([]Grave, error)
	// MarkGravesSent stamps pending removals with usn
	MarkGravesSent(ctx context.Context, usn int) error
	// ApplyGraves deletes the named rows and records the removals with usn
	ApplyGraves(ctx context.Context, graves []Grave, usn int) error
	// Changed returns rows of the given kinds; since < 0 selects pending local rows,
	// otherwise rows with usn >= since. A zero limit returns every match.
	Changed(ctx context.Context, kinds []Kind, since int, limit int) ([]Record, error)
	// MarkSent stamps still-pending rows with usn
	MarkSent(ctx context.Context, records []Record, usn int) error
	// Merge applies remote rows, keeping whichever side has the newer modification time
	Merge(ctx context.Context, records []Record, usn int) error
	// Counts returns row counts per kind
	Counts(ctx context.Context) (Counts, error)
	// Finish records a completed sync
	Finish(ctx context.Context, mod int64, usn int) error
}

// MediaStore tracks the media directory for media sync
type MediaStore interface {
	// NeedScan reports whether the directory has never been scanned
	NeedScan(ctx context.Context) (bool, error)
	// FindChanges scans the directory and marks added, changed and removed files dirty
	FindChanges(ctx context.Context) error
	// LastUSN returns the remote media usn seen at the last sync
	LastUSN(ctx context.Context) (int, error)
	// SetLastUSN records the remote media usn
	SetLastUSN(ctx context.Context, usn int) error
	// DirtyCount returns how many entries still have to be uploaded
	DirtyCount(ctx context.Context) (int, error)
	// SyncInfo returns the checksum (empty when removed) and dirty flag of a file
	SyncInfo(ctx context.Context, name string) (checksum string, dirty bool, err error)
	// MarkClean clears the dirty flag of the named files
	MarkClean(ctx context.Context, names []string) error
	// SyncDelete removes a file locally because the remote removed it
	SyncDelete(ctx context.Context, name string) error
	// AddFilesFromZip stores files received from the remote and returns how many were written
	AddFilesFromZip(ctx context.Context, data []byte) (int, error)
	// ChangesZip packs up to limit dirty entries; it returns the archive and the names it holds
	ChangesZip(ctx context.Context, limit int) ([]byte, []string, error)
	// Count returns the number of files present
	Count(ctx context.Context) (int, error)
	// ForceResync discards sync state so the next sync rescans and re-sends everything
	ForceResync(ctx context.Context) error
}
