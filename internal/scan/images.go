package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// imageExtensions are the file types a scan considers.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".heic": true,
	".tif":  true,
	".tiff": true,
}

// ListImages returns the image file paths directly inside a folder,
// sorted by name.
func ListImages(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("reading folder: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			paths = append(paths, filepath.Join(folder, e.Name()))
		}
	}
	return paths, nil
}
