package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/jvanek/facegroups/internal/faces"
)

// Matcher labels groups from the known-person registry and merges
// groups matched to the same person.
type Matcher struct {
	registry      Registry
	minConfidence float64
}

// NewMatcher creates a matcher with the given minimum match confidence.
func NewMatcher(registry Registry, minConfidence float64) *Matcher {
	return &Matcher{registry: registry, minConfidence: minConfidence}
}

// groupMatch pairs a matched group with its confidence.
type groupMatch struct {
	groupID    string
	confidence float64
	named      bool
}

// MatchFolder queries the registry with every group's representative face
// (top-1), named groups included, so one person never ends up split
// across several groups after a pass. Per matched person, one group
// becomes the merge target and carries the person's name; the others are
// merged into it through the mutation layer, so the structural invariants
// hold. A group already hand-named after that person is preferred as the
// target; a group hand-named after someone else keeps its name and is
// left alone. A per-group match record is retained in the aggregate,
// separate from the group name.
func (k *Matcher) MatchFolder(ctx context.Context, m *faces.Mutator) error {
	data := m.Data

	byPerson := make(map[string][]groupMatch)
	for _, g := range data.Groups {
		rep := data.FaceByID(g.RepresentativeID)
		if rep == nil || len(rep.Embedding) == 0 {
			continue
		}

		matches, err := k.registry.MatchFace(ctx, rep.Embedding, k.minConfidence, 1)
		if err != nil {
			return fmt.Errorf("matching group %s: %w", g.ID, err)
		}
		if len(matches) == 0 {
			continue
		}
		byPerson[matches[0].PersonID] = append(byPerson[matches[0].PersonID], groupMatch{
			groupID:    g.ID,
			confidence: matches[0].Confidence,
			named:      g.Named(),
		})
	}

	for personID, matched := range byPerson {
		person, err := k.registry.LookupPerson(ctx, personID)
		if err != nil {
			return fmt.Errorf("looking up person %s: %w", personID, err)
		}
		if person == nil {
			continue
		}

		// Groups hand-named after a different person keep their name.
		want := NormalizeName(person.Name)
		eligible := matched[:0]
		for _, gm := range matched {
			if gm.named {
				g := data.GroupByID(gm.groupID)
				if g == nil || NormalizeName(g.Name) != want {
					continue
				}
			}
			eligible = append(eligible, gm)
		}
		if len(eligible) == 0 {
			continue
		}

		sort.Slice(eligible, func(i, j int) bool {
			if eligible[i].named != eligible[j].named {
				return eligible[i].named
			}
			if eligible[i].confidence != eligible[j].confidence {
				return eligible[i].confidence > eligible[j].confidence
			}
			return eligible[i].groupID < eligible[j].groupID
		})

		target := eligible[0]
		// NameGroup errors are persistence warnings; the name itself is set.
		_, _ = m.NameGroup(target.groupID, person.Name)
		data.Matches[target.groupID] = faces.MatchRecord{
			PersonID:   personID,
			Confidence: target.confidence,
		}

		for _, other := range eligible[1:] {
			if _, err := m.MergeGroups(other.groupID, target.groupID); err != nil {
				return fmt.Errorf("merging group %s into %s: %w", other.groupID, target.groupID, err)
			}
		}
	}
	return nil
}
