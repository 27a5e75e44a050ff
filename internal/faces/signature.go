package faces

import (
	"fmt"
	"os"
)

// Signature computes the change fingerprint (size + mtime) for a file.
func Signature(path string) (FileSignature, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileSignature{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return FileSignature{
		Size:    info.Size(),
		ModTime: info.ModTime().UnixNano(),
	}, nil
}

// ScanDiff partitions a folder's current files against the previously
// scanned signature map.
type ScanDiff struct {
	ToScan    []string // new files or files whose signature changed
	ToRemove  []string // previously scanned files that are gone or changed
	Unchanged []string // carried forward untouched
}

// DiffFiles computes the incremental scan diff. current maps every image
// path present in the folder to its current signature; scanned is the
// signature map recorded by the previous scan. A changed file appears in
// both ToScan and ToRemove: its old faces are purged before rescanning.
func DiffFiles(current map[string]FileSignature, scanned map[string]FileSignature) ScanDiff {
	var diff ScanDiff

	for path, sig := range current {
		prev, ok := scanned[path]
		switch {
		case !ok:
			diff.ToScan = append(diff.ToScan, path)
		case prev != sig:
			diff.ToScan = append(diff.ToScan, path)
			diff.ToRemove = append(diff.ToRemove, path)
		default:
			diff.Unchanged = append(diff.Unchanged, path)
		}
	}

	for path := range scanned {
		if _, ok := current[path]; !ok {
			diff.ToRemove = append(diff.ToRemove, path)
		}
	}

	return diff
}

// CurrentSignatures stats every path and returns the signature map.
// Unreadable files are skipped (fail soft, the scan just ignores them).
func CurrentSignatures(paths []string) map[string]FileSignature {
	current := make(map[string]FileSignature, len(paths))
	for _, path := range paths {
		sig, err := Signature(path)
		if err != nil {
			continue
		}
		current[path] = sig
	}
	return current
}
