// Package cluster assigns ungrouped faces to identity groups using graph
// label propagation over pairwise embedding similarity.
package cluster

import (
	"math"

	"github.com/jvanek/facegroups/internal/faces"
)

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical; invalid or
// zero vectors yield -1 (maximally dissimilar).
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return -1
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return similarity
}

// Similarity computes the configured similarity between two faces. In
// fused mode the primary and context embeddings are combined as
// w*primary + (1-w)*context; faces missing a context embedding fall back
// to the primary measure.
func Similarity(a, b *faces.DetectedFace, cfg faces.RecognitionConfig) float64 {
	primary := CosineSimilarity(a.Embedding, b.Embedding)
	if cfg.Mode != faces.ModeFused {
		return primary
	}
	if len(a.ContextEmbedding) == 0 || len(b.ContextEmbedding) == 0 {
		return primary
	}
	context := CosineSimilarity(a.ContextEmbedding, b.ContextEmbedding)
	return cfg.ContextWeight*primary + (1-cfg.ContextWeight)*context
}
