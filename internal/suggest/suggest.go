// Package suggest proposes likely-duplicate group pairs for human
// confirmation. Suggestions are recomputed from current state on demand
// and never mutate it.
package suggest

import (
	"sort"

	"github.com/jvanek/facegroups/internal/cluster"
	"github.com/jvanek/facegroups/internal/faces"
)

// MergeSuggestion is a candidate merge of two groups, scored by the
// similarity of their representative faces. Not persisted; dismissing one
// is a client-side filter.
type MergeSuggestion struct {
	GroupA     string  `json:"group_a"`
	GroupB     string  `json:"group_b"`
	Similarity float64 `json:"similarity"`
}

// pairKey identifies an unordered group pair.
func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

// ComputeMergeSuggestions compares every unordered pair of groups by
// representative similarity and returns the pairs at or above threshold,
// sorted by descending similarity.
func ComputeMergeSuggestions(data *faces.FolderFaceData, cfg faces.RecognitionConfig, threshold float64) []MergeSuggestion {
	var out []MergeSuggestion
	groups := data.Groups

	for i := range groups {
		a := data.FaceByID(groups[i].RepresentativeID)
		if a == nil {
			continue
		}
		for j := i + 1; j < len(groups); j++ {
			b := data.FaceByID(groups[j].RepresentativeID)
			if b == nil {
				continue
			}
			sim := cluster.Similarity(a, b, cfg)
			if sim >= threshold {
				out = append(out, MergeSuggestion{
					GroupA:     groups[i].ID,
					GroupB:     groups[j].ID,
					Similarity: sim,
				})
			}
		}
	}

	sortBySimilarity(out)
	return out
}

// ComputeRefinementSuggestions restricts suggestions to pairs where
// exactly one side is named (the anchor) and the other is unnamed. New
// suggestions are deduplicated against existing by unordered pair, then
// the combined list is re-sorted by descending similarity.
func ComputeRefinementSuggestions(data *faces.FolderFaceData, cfg faces.RecognitionConfig, threshold float64, existing []MergeSuggestion) []MergeSuggestion {
	seen := make(map[[2]string]bool, len(existing))
	for _, s := range existing {
		seen[pairKey(s.GroupA, s.GroupB)] = true
	}

	out := append([]MergeSuggestion(nil), existing...)
	groups := data.Groups

	for i := range groups {
		for j := i + 1; j < len(groups); j++ {
			if groups[i].Named() == groups[j].Named() {
				continue
			}
			key := pairKey(groups[i].ID, groups[j].ID)
			if seen[key] {
				continue
			}

			a := data.FaceByID(groups[i].RepresentativeID)
			b := data.FaceByID(groups[j].RepresentativeID)
			if a == nil || b == nil {
				continue
			}
			sim := cluster.Similarity(a, b, cfg)
			if sim >= threshold {
				out = append(out, MergeSuggestion{
					GroupA:     groups[i].ID,
					GroupB:     groups[j].ID,
					Similarity: sim,
				})
				seen[key] = true
			}
		}
	}

	sortBySimilarity(out)
	return out
}

func sortBySimilarity(s []MergeSuggestion) {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].Similarity > s[j].Similarity
	})
}
