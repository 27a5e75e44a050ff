package cluster

import (
	"github.com/google/uuid"

	"github.com/jvanek/facegroups/internal/faces"
)

// Assign clusters the given ungrouped faces against the existing groups.
// Grouped faces act as fixed anchors: a new face pulled to an anchor's
// label extends that group, preserving its id and name. Faces that end up
// with a label no anchor carries form new unnamed groups, singletons
// included. Assign mutates the faces' group references and the groups'
// member lists and returns the updated group list (new groups appended).
func Assign(newFaces []*faces.DetectedFace, data *faces.FolderFaceData, cfg faces.RecognitionConfig) []*faces.FaceGroup {
	if len(newFaces) == 0 {
		return data.Groups
	}

	var anchors []*faces.DetectedFace
	for _, f := range data.Faces {
		if f.GroupID != "" {
			anchors = append(anchors, f)
		}
	}

	g := buildGraph(newFaces, anchors, cfg)
	g.propagate(cfg)

	labels := make(map[string]string, len(newFaces)) // face id -> final label
	for _, n := range g.nodes {
		if !n.fixed {
			labels[n.face.ID] = n.label
		}
	}

	assignLabels(newFaces, labels, data)

	if cfg.Mode == faces.ModeFused && cfg.AttachLeftovers {
		attachLeftovers(newFaces, data, cfg)
	}

	return data.Groups
}

// assignLabels turns final labels into group membership. Labels matching
// an existing group id extend that group; the remaining labels become new
// groups in input order, first member as representative.
func assignLabels(newFaces []*faces.DetectedFace, labels map[string]string, data *faces.FolderFaceData) {
	created := make(map[string]*faces.FaceGroup) // label -> new group

	for _, f := range newFaces {
		label := labels[f.ID]

		if existing := data.GroupByID(label); existing != nil {
			existing.MemberIDs = append(existing.MemberIDs, f.ID)
			f.GroupID = existing.ID
			continue
		}

		group, ok := created[label]
		if !ok {
			group = &faces.FaceGroup{
				ID:               uuid.NewString(),
				RepresentativeID: f.ID,
			}
			created[label] = group
			data.Groups = append(data.Groups, group)
		}
		group.MemberIDs = append(group.MemberIDs, f.ID)
		f.GroupID = group.ID
	}
}

// attachLeftovers is the optional fused-mode second pass: faces that
// formed singleton groups are re-attached to the closest formed cluster
// when any member clears the threshold, ignoring the quality gate. No new
// groups are created here.
func attachLeftovers(newFaces []*faces.DetectedFace, data *faces.FolderFaceData, cfg faces.RecognitionConfig) {
	for _, f := range newFaces {
		g := data.GroupByID(f.GroupID)
		if g == nil || len(g.MemberIDs) != 1 {
			continue
		}

		var bestGroup *faces.FaceGroup
		bestSim := cfg.ClusterThreshold
		for _, candidate := range data.Groups {
			if candidate.ID == g.ID {
				continue
			}
			for _, member := range data.GroupFaces(candidate) {
				if sim := Similarity(f, member, cfg); sim >= bestSim {
					bestSim = sim
					bestGroup = candidate
				}
			}
		}
		if bestGroup == nil {
			continue
		}
		data.ReassignFace(f.ID, bestGroup.ID)
	}
}
