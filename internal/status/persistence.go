// Package status provides sync status tracking and persistence per profile.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

//go:generate mockgen -destination=mocks/mock_status_persistence.go -package=mocks -source=persistence.go StatusPersistence

const (
	// StatusFileName is the name of the status file
	StatusFileName = "status.json"

	lockFileName   = "status.lock"
	lockRetryDelay = 20 * time.Millisecond
)

// StatusPersistence defines the interface for sync status persistence
//
//nolint:revive // This name is fine
type StatusPersistence interface {
	// LoadStatus loads the sync status of a profile.
	// Returns an empty SyncStatus if the profile has never been synced.
	LoadStatus(ctx context.Context, profile string) (*SyncStatus, error)

	// UpdateStatus applies fn to the stored status of a profile and saves the
	// result. Concurrent updates from other processes are serialized.
	UpdateStatus(ctx context.Context, profile string, fn func(*SyncStatus)) (*SyncStatus, error)
}

// fileStatusPersistence stores one JSON document per profile directory
type fileStatusPersistence struct {
	basePath string
}

// NewFileStatusPersistence creates a file-based status persistence rooted at basePath
func NewFileStatusPersistence(basePath string) StatusPersistence {
	return &fileStatusPersistence{
		basePath: basePath,
	}
}

// LoadStatus reads the status file without taking the update lock; writes are
// atomic renames, so a reader sees either the old or the new document.
func (f *fileStatusPersistence) LoadStatus(_ context.Context, profile string) (*SyncStatus, error) {
	if err := validateProfile(profile); err != nil {
		return nil, err
	}
	return f.read(profile)
}

// UpdateStatus holds an exclusive file lock on the profile while it reads,
// modifies and rewrites the status
func (f *fileStatusPersistence) UpdateStatus(
	ctx context.Context, profile string, fn func(*SyncStatus),
) (*SyncStatus, error) {
	if err := validateProfile(profile); err != nil {
		return nil, err
	}
	profileDir := filepath.Join(f.basePath, profile)
	if err := os.MkdirAll(profileDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create status directory for profile '%s': %w", profile, err)
	}

	lock := flock.New(filepath.Join(profileDir, lockFileName))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to lock status of profile '%s': %w", profile, err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to lock status of profile '%s': %w", profile, ctx.Err())
	}
	defer func() { _ = lock.Unlock() }()

	status, err := f.read(profile)
	if err != nil {
		return nil, err
	}
	fn(status)

	if err := f.write(profileDir, status); err != nil {
		return nil, fmt.Errorf("failed to save status of profile '%s': %w", profile, err)
	}
	return status, nil
}

func (f *fileStatusPersistence) read(profile string) (*SyncStatus, error) {
	filePath := filepath.Join(f.basePath, profile, StatusFileName)

	// #nosec G304 -- filePath is basePath plus a validated profile name
	data, err := os.ReadFile(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return &SyncStatus{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read status file for profile '%s': %w", profile, err)
	}

	var status SyncStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status data for profile '%s': %w", profile, err)
	}
	return &status, nil
}

func (*fileStatusPersistence) write(profileDir string, status *SyncStatus) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(profileDir, StatusFileName+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(profileDir, StatusFileName)); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}

func validateProfile(profile string) error {
	if profile == "" || profile == "." || profile == ".." || strings.ContainsAny(profile, `/\`) {
		return fmt.Errorf("invalid profile name %q", profile)
	}
	return nil
}
