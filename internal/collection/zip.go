package collection

import (
	"archive/zip"
	"bytes"
	"crypto/sha1" //nolint:gosec // content checksum shared with the remote, not a security boundary
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// ManifestName is the archive member mapping member names to media file names
	ManifestName = "_meta"

	// MaxArchiveMemberSize bounds a single media file carried in an archive
	MaxArchiveMemberSize = 100 * 1024 * 1024
)

// ArchiveEntry is one file, or one removal, carried in a media archive
type ArchiveEntry struct {
	Name    string
	Data    []byte
	Deleted bool
}

// Checksum returns the hex SHA-1 of data
func Checksum(data []byte) string {
	sum := sha1.Sum(data) //nolint:gosec // see import
	return hex.EncodeToString(sum[:])
}

// ValidMediaName reports whether name is a plain file name safe to create in the media directory
func ValidMediaName(name string) bool {
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

// WriteArchive packs entries into a zip archive with a manifest.
// Removed files appear in the manifest with an empty member name.
func WriteArchive(entries []ArchiveEntry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	manifest := make([][2]string, 0, len(entries))
	for i, e := range entries {
		if e.Deleted {
			manifest = append(manifest, [2]string{e.Name, ""})
			continue
		}
		member := strconv.Itoa(i)
		w, err := zw.Create(member)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s to archive: %w", e.Name, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			return nil, fmt.Errorf("failed to write %s to archive: %w", e.Name, err)
		}
		manifest = append(manifest, [2]string{e.Name, member})
	}

	meta, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to encode archive manifest: %w", err)
	}
	w, err := zw.Create(ManifestName)
	if err != nil {
		return nil, fmt.Errorf("failed to add archive manifest: %w", err)
	}
	if _, err := w.Write(meta); err != nil {
		return nil, fmt.Errorf("failed to write archive manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadArchive unpacks an archive produced by WriteArchive
func ReadArchive(data []byte) ([]ArchiveEntry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	members := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		members[f.Name] = f
	}

	metaFile, ok := members[ManifestName]
	if !ok {
		return nil, errors.New("archive has no manifest")
	}
	metaData, err := readMember(metaFile)
	if err != nil {
		return nil, err
	}
	var manifest [][2]string
	if err := json.Unmarshal(metaData, &manifest); err != nil {
		return nil, fmt.Errorf("failed to decode archive manifest: %w", err)
	}

	entries := make([]ArchiveEntry, 0, len(manifest))
	for _, m := range manifest {
		name, member := m[0], m[1]
		if !ValidMediaName(name) {
			return nil, fmt.Errorf("archive names invalid media file %q", name)
		}
		if member == "" {
			entries = append(entries, ArchiveEntry{Name: name, Deleted: true})
			continue
		}
		f, ok := members[member]
		if !ok {
			return nil, fmt.Errorf("archive member %q for %s is missing", member, name)
		}
		content, err := readMember(f)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ArchiveEntry{Name: name, Data: content})
	}
	return entries, nil
}

func readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open archive member %s: %w", f.Name, err)
	}
	defer func() {
		_ = rc.Close()
	}()
	data, err := io.ReadAll(io.LimitReader(rc, MaxArchiveMemberSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read archive member %s: %w", f.Name, err)
	}
	if len(data) > MaxArchiveMemberSize {
		return nil, fmt.Errorf("archive member %s exceeds %d bytes", f.Name, MaxArchiveMemberSize)
	}
	return data, nil
}
