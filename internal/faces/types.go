// Package faces holds the per-folder face/group data model and the
// mutation operations that keep it structurally consistent.
package faces

import (
	"time"
)

// RecognitionMode selects the embedding strategy used for similarity.
type RecognitionMode string

const (
	// ModePrimary uses the primary face embedding only.
	ModePrimary RecognitionMode = "primary"
	// ModeFused combines the primary embedding with the context embedding
	// (e.g., clothing) using a weighted sum.
	ModeFused RecognitionMode = "fused"
)

// RecognitionConfig is the explicit clustering configuration threaded
// through scans and clustering. It is constructed once per operation; the
// engine reads no ambient state.
type RecognitionConfig struct {
	Mode             RecognitionMode
	ClusterThreshold float64 // minimum similarity to connect two faces
	ContextWeight    float64 // weight of the primary embedding in fused mode
	QualityWeighting bool    // scale edge weights by quality product
	QualityGate      float64 // minimum quality to anchor a cluster
	AttachLeftovers  bool    // fused mode: second pass attaching leftovers to formed clusters
}

// FileSignature is a cheap change fingerprint for an image file.
type FileSignature struct {
	Size    int64
	ModTime int64 // unix nanoseconds
}

// DetectedFace is one face found in one image.
type DetectedFace struct {
	ID               string
	ImagePath        string
	Quality          float64 // [0,1]
	Confidence       float64 // [0,1] detection confidence
	Embedding        []float32
	ContextEmbedding []float32 // optional, used in fused mode
	GroupID          string    // empty = ungrouped
}

// FaceGroup is a putative identity: a set of faces believed to be the
// same person.
type FaceGroup struct {
	ID               string
	Name             string // human-assigned, empty = unnamed
	RepresentativeID string // must be a member
	MemberIDs        []string
}

// Named reports whether the group carries a human-assigned name.
func (g *FaceGroup) Named() bool {
	return g.Name != ""
}

// Size returns the number of member faces.
func (g *FaceGroup) Size() int {
	return len(g.MemberIDs)
}

// MatchRecord records a known-person registry match for a group,
// kept separately from the group name so the UI can verify the name
// still corresponds to the match.
type MatchRecord struct {
	PersonID   string
	Confidence float64
}

// FolderFaceData is the per-folder aggregate, the unit of persistence.
// The groups slice order is the manual display order.
type FolderFaceData struct {
	Folder       string
	Faces        []*DetectedFace
	Groups       []*FaceGroup
	ScannedFiles map[string]FileSignature
	ScanComplete bool
	Mode         RecognitionMode
	LastScan     time.Time
	Matches      map[string]MatchRecord // group id -> registry match
}

// NewFolderData creates an empty aggregate for a folder.
func NewFolderData(folder string, mode RecognitionMode) *FolderFaceData {
	return &FolderFaceData{
		Folder:       folder,
		ScannedFiles: make(map[string]FileSignature),
		Mode:         mode,
		Matches:      make(map[string]MatchRecord),
	}
}

// NeedsRescan reports whether the aggregate was produced under a different
// recognition mode than the one currently configured.
func (d *FolderFaceData) NeedsRescan(mode RecognitionMode) bool {
	return d.Mode != mode
}
