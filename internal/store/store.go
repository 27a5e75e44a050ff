// Package store persists folder aggregates and face thumbnails on disk.
// Aggregates are gob files written atomically; thumbnails are normalized
// JPEG files keyed by face id.
package store

import (
	"bytes"
	"crypto/sha1"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	"github.com/jvanek/facegroups/internal/faces"
)

// Store is the on-disk persistence layer. The scan coordinator is the
// sole writer; checkpoint atomicity comes from write-then-rename.
type Store struct {
	dataDir string
}

// New creates a store rooted at dataDir, creating the directory tree.
func New(dataDir string) (*Store, error) {
	for _, dir := range []string{dataDir, filepath.Join(dataDir, "aggregates"), filepath.Join(dataDir, "thumbs")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
	}
	return &Store{dataDir: dataDir}, nil
}

// folderKey derives a stable file-system-safe key for a folder path.
func folderKey(folder string) string {
	sum := sha1.Sum([]byte(folder))
	return hex.EncodeToString(sum[:])
}

func (s *Store) aggregatePath(folder string) string {
	return filepath.Join(s.dataDir, "aggregates", folderKey(folder)+".gob")
}

func (s *Store) thumbDir(folder string) string {
	return filepath.Join(s.dataDir, "thumbs", folderKey(folder))
}

// SaveAggregate writes the aggregate atomically (temp file + rename).
func (s *Store) SaveAggregate(data *faces.FolderFaceData) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return fmt.Errorf("encoding aggregate: %w", err)
	}
	if err := renameio.WriteFile(s.aggregatePath(data.Folder), buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing aggregate: %w", err)
	}
	return nil
}

// LoadAggregate loads the aggregate for a folder. Returns (nil, nil) when
// no aggregate has been saved yet.
func (s *Store) LoadAggregate(folder string) (*faces.FolderFaceData, error) {
	raw, err := os.ReadFile(s.aggregatePath(folder))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading aggregate: %w", err)
	}

	var data faces.FolderFaceData
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&data); err != nil {
		return nil, fmt.Errorf("decoding aggregate: %w", err)
	}
	if data.ScannedFiles == nil {
		data.ScannedFiles = make(map[string]faces.FileSignature)
	}
	if data.Matches == nil {
		data.Matches = make(map[string]faces.MatchRecord)
	}
	return &data, nil
}

// DeleteAggregate discards a folder's aggregate and all its thumbnails.
func (s *Store) DeleteAggregate(folder string) error {
	if err := os.Remove(s.aggregatePath(folder)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing aggregate: %w", err)
	}
	if err := os.RemoveAll(s.thumbDir(folder)); err != nil {
		return fmt.Errorf("removing thumbnails: %w", err)
	}
	return nil
}
