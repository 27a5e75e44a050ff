// Package meta writes metadata fields into image files through exiftool.
package meta

import (
	"fmt"
	"os/exec"
	"strings"
)

// ExifTool writes metadata fields by shelling out to the exiftool binary.
type ExifTool struct {
	binary string
}

// NewExifTool creates the adapter. An empty binary falls back to
// "exiftool" on PATH.
func NewExifTool(binary string) *ExifTool {
	if binary == "" {
		binary = "exiftool"
	}
	return &ExifTool{binary: binary}
}

// Available reports whether the exiftool binary can be found.
func (e *ExifTool) Available() bool {
	_, err := exec.LookPath(e.binary)
	return err == nil
}

// WriteField writes one metadata field into every given image in a single
// exiftool invocation. Files are modified in place.
func (e *ExifTool) WriteField(key, value string, imagePaths []string) error {
	if len(imagePaths) == 0 {
		return nil
	}

	args := []string{
		"-overwrite_original",
		fmt.Sprintf("-%s=%s", key, value),
	}
	args = append(args, imagePaths...)

	cmd := exec.Command(e.binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("exiftool failed: %w\n%s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
