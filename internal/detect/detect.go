// Package detect defines the face detection adapter consumed by scans and
// provides a remote HTTP backend plus a deterministic mock for tests.
package detect

import "context"

// Detection is one face found in an image: region, embeddings, scores and
// a thumbnail crop.
type Detection struct {
	BBox             []float64 `json:"bbox"` // [x1, y1, x2, y2] in pixels
	Embedding        []float32 `json:"embedding"`
	ContextEmbedding []float32 `json:"context_embedding,omitempty"`
	Quality          float64   `json:"quality"`
	Confidence       float64   `json:"det_score"`
	Thumbnail        []byte    `json:"thumbnail,omitempty"` // JPEG crop
}

// Detector extracts faces from one image. Implementations fail soft:
// a per-image error means zero faces for that file and the scan moves on.
type Detector interface {
	Detect(ctx context.Context, imagePath string) ([]Detection, error)
}
