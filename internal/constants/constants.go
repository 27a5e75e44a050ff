// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Scan constants
const (
	// ScanWorkers is the number of parallel workers running face detection
	ScanWorkers = 4

	// CheckpointInterval is the number of completed images between
	// intermediate aggregate saves during a scan
	CheckpointInterval = 25
)

// Clustering constants
const (
	// MaxWhisperIterations caps the label propagation loop
	MaxWhisperIterations = 20

	// DefaultQualityGate is the minimum quality score for a face to anchor a cluster
	DefaultQualityGate = 0.30
)

// Suggestion constants
const (
	// DefaultMergeSuggestionThreshold is the minimum representative similarity
	// for a candidate group merge
	DefaultMergeSuggestionThreshold = 0.55

	// DefaultRefinementThreshold is the minimum similarity between a named
	// anchor group and an unnamed group to suggest a match
	DefaultRefinementThreshold = 0.50
)

// Known-person matching constants
const (
	// DefaultMatchConfidence is the minimum registry match confidence
	// for auto-labeling a group
	DefaultMatchConfidence = 0.65
)

// Web constants
const (
	// EventChannelBuffer is the buffer size for job event listener channels
	EventChannelBuffer = 64
)

// Thumbnail constants
const (
	// ThumbnailMaxSize is the maximum dimension (width or height) for stored
	// face thumbnails
	ThumbnailMaxSize = 160
)
