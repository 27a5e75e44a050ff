package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileTrasher moves files into a trash directory under the data dir
// instead of deleting them outright.
type FileTrasher struct {
	dir string
}

// Trasher returns a FileTrasher rooted in the store's data dir.
func (s *Store) Trasher() *FileTrasher {
	return &FileTrasher{dir: filepath.Join(s.dataDir, "trash")}
}

// Trash moves the file into the trash directory. The original base name
// is kept, prefixed with a timestamp to avoid collisions.
func (t *FileTrasher) Trash(path string) error {
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return fmt.Errorf("creating trash dir: %w", err)
	}
	target := filepath.Join(t.dir, fmt.Sprintf("%d-%s", time.Now().UnixNano(), filepath.Base(path)))
	if err := os.Rename(path, target); err != nil {
		return fmt.Errorf("trashing %s: %w", path, err)
	}
	return nil
}
