package store

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"

	"github.com/jvanek/facegroups/internal/constants"
)

// SaveThumbnail normalizes a face crop (fit within ThumbnailMaxSize,
// re-encode as JPEG) and stores it keyed by face id.
func (s *Store) SaveThumbnail(data []byte, folder, faceID string) error {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decoding thumbnail: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > constants.ThumbnailMaxSize || bounds.Dy() > constants.ThumbnailMaxSize {
		img = imaging.Fit(img, constants.ThumbnailMaxSize, constants.ThumbnailMaxSize, imaging.Lanczos)
	}

	dir := s.thumbDir(folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating thumbnail dir: %w", err)
	}
	if err := imaging.Save(img, s.thumbPath(folder, faceID), imaging.JPEGQuality(85)); err != nil {
		return fmt.Errorf("saving thumbnail: %w", err)
	}
	return nil
}

// LoadThumbnail returns the stored JPEG bytes for a face, or (nil, nil)
// when no thumbnail exists.
func (s *Store) LoadThumbnail(folder, faceID string) ([]byte, error) {
	data, err := os.ReadFile(s.thumbPath(folder, faceID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading thumbnail: %w", err)
	}
	return data, nil
}

// DeleteThumbnail removes a face's thumbnail. Missing files are fine.
func (s *Store) DeleteThumbnail(folder, faceID string) error {
	if err := os.Remove(s.thumbPath(folder, faceID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing thumbnail: %w", err)
	}
	return nil
}

func (s *Store) thumbPath(folder, faceID string) string {
	return filepath.Join(s.thumbDir(folder), faceID+".jpg")
}
